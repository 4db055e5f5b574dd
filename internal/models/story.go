package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

const previewLength = 160

// Story is one submission for a daily prompt.
// Identity per prompt is the user id, else the device token, else the ip hash;
// the partial unique indexes created in database.Migrate enforce it.
type Story struct {
	ID          uint      `gorm:"primaryKey"`
	PublicID    string    `gorm:"type:varchar(36);uniqueIndex:uq_stories_public_id;not null"`
	PromptID    uint      `gorm:"not null;index"`
	UserID      *uint     `gorm:"index"`
	DeviceToken *string   `gorm:"type:varchar(64)"`
	GuestName   *string   `gorm:"type:varchar(60)"`
	IPHash      *string   `gorm:"type:varchar(64)"`
	Title       *string   `gorm:"type:varchar(120)"`
	Content     string    `gorm:"type:text;not null"`
	IsAnonymous bool      `gorm:"not null;default:false"`
	WordCount   int       `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"index"`

	Prompt *Quote `gorm:"foreignKey:PromptID;constraint:OnDelete:CASCADE"`
	User   *User  `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL"`
}

// StoryView is a story joined with its author, prompt and flower count.
type StoryView struct {
	ID             uint
	PublicID       string
	PromptID       uint
	UserID         *uint
	GuestName      *string
	Title          *string
	Content        string
	IsAnonymous    bool
	WordCount      int
	CreatedAt      time.Time
	Username       *string
	UserPublicID   *string
	FlowerCount    int64
	PromptDate     string
	PromptSentence string
}

// StoryPayload is the public JSON shape of a story.
// Device tokens and ip hashes never leave the server, and anonymous stories
// carry no author reference.
type StoryPayload struct {
	ID             uint      `json:"id"`
	PublicID       string    `json:"public_id"`
	Title          *string   `json:"title"`
	Content        string    `json:"content"`
	Preview        string    `json:"preview"`
	WordCount      int       `json:"word_count"`
	IsAnonymous    bool      `json:"is_anonymous"`
	AuthorName     string    `json:"author_name"`
	Username       *string   `json:"username"`
	UserPublicID   *string   `json:"user_public_id"`
	FlowerCount    int64     `json:"flower_count"`
	PromptDate     string    `json:"prompt_date"`
	PromptSentence string    `json:"prompt_sentence"`
	CreatedAt      time.Time `json:"created_at"`
}

func (v *StoryView) Payload() StoryPayload {
	p := StoryPayload{
		ID:             v.ID,
		PublicID:       v.PublicID,
		Title:          v.Title,
		Content:        v.Content,
		Preview:        Preview(v.Content),
		WordCount:      v.WordCount,
		IsAnonymous:    v.IsAnonymous,
		AuthorName:     v.AuthorName(),
		FlowerCount:    v.FlowerCount,
		PromptDate:     v.PromptDate,
		PromptSentence: v.PromptSentence,
		CreatedAt:      v.CreatedAt,
	}
	if !v.IsAnonymous {
		p.Username = v.Username
		p.UserPublicID = v.UserPublicID
	}
	return p
}

// AuthorName is what listings show as the byline.
func (v *StoryView) AuthorName() string {
	switch {
	case v.IsAnonymous:
		return "Anonymous"
	case v.Username != nil && *v.Username != "":
		return *v.Username
	case v.GuestName != nil && *v.GuestName != "":
		return *v.GuestName
	default:
		return "Guest"
	}
}

func Payloads(views []StoryView) []StoryPayload {
	out := make([]StoryPayload, 0, len(views))
	for i := range views {
		out = append(out, views[i].Payload())
	}
	return out
}

// CountWords counts whitespace separated tokens.
func CountWords(content string) int {
	return len(strings.Fields(content))
}

// ContainsSentence reports whether content contains sentence once runs of
// whitespace are collapsed, ignoring case.
func ContainsSentence(content, sentence string) bool {
	needle := normalizeText(sentence)
	if needle == "" {
		return true
	}
	return strings.Contains(normalizeText(content), needle)
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Preview returns the first 160 characters followed by an ellipsis when cut.
func Preview(content string) string {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	return strings.TrimRightFunc(TruncateRunes(content, previewLength), isSpace) + "…"
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
