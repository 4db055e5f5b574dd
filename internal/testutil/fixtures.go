package testutil

import (
	"strings"
	"testing"
	"time"

	"github.com/Baaaki/storyline/internal/models"
	"github.com/Baaaki/storyline/internal/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Default credentials used by fixtures. The password satisfies the strength rules.
const (
	DefaultPassword = "Test123456!"
	AdminPassword   = "Admin123456!"
)

// CreateTestUser inserts a user with a hashed password
func CreateTestUser(t *testing.T, db *gorm.DB, username, email, password string, role models.Role) *models.User {
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	user := models.NewUser(username, strings.ToLower(email), hashedPassword)
	user.Role = role

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// DefaultTestUser inserts a default test user (regular user)
func DefaultTestUser(t *testing.T, db *gorm.DB) *models.User {
	return CreateTestUser(t, db, "testuser", "test@example.com", DefaultPassword, models.RoleUser)
}

// DefaultAdminUser inserts a default admin user
func DefaultAdminUser(t *testing.T, db *gorm.DB) *models.User {
	return CreateTestUser(t, db, "admin", "admin@example.com", AdminPassword, models.RoleAdmin)
}

// CreateTestQuote inserts the daily prompt for date (YYYY-MM-DD)
func CreateTestQuote(t *testing.T, db *gorm.DB, date, sentence string) *models.Quote {
	quote := &models.Quote{
		Date:      date,
		Sentence:  sentence,
		FetchedAt: time.Now(),
	}
	if err := db.Create(quote).Error; err != nil {
		t.Fatalf("Failed to create test quote: %v", err)
	}
	return quote
}

// CreateTestStory inserts a story for a prompt, authored by userID when non-nil
func CreateTestStory(t *testing.T, db *gorm.DB, promptID uint, userID *uint, content string) *models.Story {
	story := &models.Story{
		PublicID:  uuid.NewString(),
		PromptID:  promptID,
		UserID:    userID,
		Content:   content,
		WordCount: models.CountWords(content),
	}
	if userID == nil {
		token := uuid.NewString()
		story.DeviceToken = &token
	}
	if err := db.Create(story).Error; err != nil {
		t.Fatalf("Failed to create test story: %v", err)
	}
	return story
}

// CreateTestStoryAt inserts a story and backdates its creation time
func CreateTestStoryAt(t *testing.T, db *gorm.DB, promptID uint, userID *uint, content string, createdAt time.Time) *models.Story {
	story := CreateTestStory(t, db, promptID, userID, content)
	if err := db.Model(story).Update("created_at", createdAt).Error; err != nil {
		t.Fatalf("Failed to backdate story: %v", err)
	}
	story.CreatedAt = createdAt
	return story
}

// CreateTestFlower inserts a flower from userID on storyID
func CreateTestFlower(t *testing.T, db *gorm.DB, storyID, userID uint) {
	if err := db.Create(&models.Flower{StoryID: storyID, UserID: userID}).Error; err != nil {
		t.Fatalf("Failed to create test flower: %v", err)
	}
}
