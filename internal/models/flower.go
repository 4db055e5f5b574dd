package models

import "time"

// Flower is one like. The composite primary key keeps it unique per (story, user).
type Flower struct {
	StoryID   uint      `gorm:"primaryKey;autoIncrement:false"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `gorm:"index"`

	Story *Story `gorm:"foreignKey:StoryID;constraint:OnDelete:CASCADE"`
	User  *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}
