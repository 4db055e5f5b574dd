package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/Baaaki/storyline/internal/config"
	"github.com/Baaaki/storyline/internal/database"
	"github.com/Baaaki/storyline/internal/models"
	"github.com/Baaaki/storyline/internal/repository"
	"github.com/Baaaki/storyline/internal/service"
	"github.com/Baaaki/storyline/internal/utils"
)

func main() {
	cfg := config.Load()
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	adminUsername := strings.TrimSpace(os.Getenv("ADMIN_USERNAME"))
	adminEmail := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminUsername == "" || adminEmail == "" || adminPassword == "" {
		log.Fatal("Missing environment variables: ADMIN_USERNAME, ADMIN_EMAIL, ADMIN_PASSWORD")
	}
	if err := service.ValidatePasswordStrength(adminPassword); err != nil {
		log.Fatalf("ADMIN_PASSWORD rejected: %v", err)
	}

	ctx := context.Background()
	users := repository.NewUserRepository(db)

	// Check if a user with this email already exists
	existing, err := users.GetUserByEmail(ctx, adminEmail)
	if err != nil {
		log.Fatalf("Failed to look up admin: %v", err)
	}
	if existing != nil {
		if existing.Role != models.RoleAdmin {
			if err := db.Model(existing).Update("role", models.RoleAdmin).Error; err != nil {
				log.Fatalf("Failed to promote user: %v", err)
			}
			log.Println("Existing user promoted to admin:", existing.Username)
			return
		}
		log.Println("Admin user already exists:", existing.Username)
		return
	}

	passwordHash, err := utils.HashPassword(adminPassword)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	admin := models.NewUser(adminUsername, adminEmail, passwordHash)
	admin.Role = models.RoleAdmin
	if err := users.CreateUser(ctx, admin); err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}

	log.Println("Admin user created")
	log.Println("   Username:", admin.Username)
	log.Println("   Email:", admin.Email)
}
