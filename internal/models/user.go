package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// DefaultAvatar is served when a user never uploaded one.
const DefaultAvatar = "/static/default-avatar.svg"

type User struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	PublicID              string    `gorm:"type:varchar(36);uniqueIndex:uq_users_public_id;not null" json:"public_id"`
	Username              string    `gorm:"type:varchar(30);not null" json:"username"`
	Email                 string    `gorm:"type:varchar(100);uniqueIndex:uq_users_email;not null" json:"email"`
	PasswordHash          string    `gorm:"type:varchar(255);not null" json:"-"` // Never expose password hash in JSON
	Role                  Role      `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
	FavoriteQuoteSentence *string   `gorm:"type:varchar(500)" json:"favorite_quote_sentence,omitempty"`
	FavoriteQuoteBook     *string   `gorm:"type:varchar(100)" json:"favorite_quote_book,omitempty"`
	FavoriteQuoteAuthor   *string   `gorm:"type:varchar(100)" json:"favorite_quote_author,omitempty"`
	AvatarPath            *string   `gorm:"type:varchar(255)" json:"-"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// NewUser builds a user with a fresh public id and the default role.
func NewUser(username, email, passwordHash string) *User {
	return &User{
		PublicID:     uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         RoleUser,
	}
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// AvatarURL returns the stored avatar or the default one.
func (u *User) AvatarURL() string {
	if u.AvatarPath == nil || *u.AvatarPath == "" {
		return DefaultAvatar
	}
	return *u.AvatarPath
}

// FavoriteQuote is the profile quote block, nil when unset.
type FavoriteQuote struct {
	Sentence string  `json:"sentence"`
	Book     *string `json:"book"`
	Author   *string `json:"author"`
}

func (u *User) FavoriteQuote() *FavoriteQuote {
	if u.FavoriteQuoteSentence == nil || *u.FavoriteQuoteSentence == "" {
		return nil
	}
	return &FavoriteQuote{
		Sentence: *u.FavoriteQuoteSentence,
		Book:     u.FavoriteQuoteBook,
		Author:   u.FavoriteQuoteAuthor,
	}
}
