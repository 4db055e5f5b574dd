package models

import "time"

// Quote is the daily prompt. There is at most one row per calendar date.
type Quote struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Date         string    `gorm:"column:prompt_date;type:varchar(10);uniqueIndex:uq_daily_prompts_date;not null" json:"date"`
	Sentence     string    `gorm:"type:text;not null" json:"sentence"`
	SourceBook   *string   `gorm:"type:varchar(255)" json:"source_book"`
	SourceAuthor *string   `gorm:"type:varchar(255)" json:"source_author"`
	SourceID     *string   `gorm:"type:varchar(64)" json:"source_id"`
	FetchedAt    time.Time `gorm:"not null" json:"fetched_at"`
}

func (Quote) TableName() string {
	return "daily_prompts"
}
