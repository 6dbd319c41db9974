// Package main provides account management utilities for Huddle operators.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"huddle/internal/config"
	"huddle/internal/database"
	"huddle/internal/models"
	"huddle/internal/repository"
	"huddle/internal/service"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin promote <user_id>   - Grant admin rights")
	fmt.Println("  go run ./cmd/admin demote <user_id>    - Revoke admin rights")
	fmt.Println("  go run ./cmd/admin block <user_id>     - Suspend an account")
	fmt.Println("  go run ./cmd/admin unblock <user_id>   - Lift a suspension")
	fmt.Println("  go run ./cmd/admin list-admins         - List all admins")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	users := service.NewUserService(repository.NewStore(db))

	command := os.Args[1]
	if command == "list-admins" {
		listAdmins(db)
		return
	}
	if len(os.Args) < 3 {
		usage()
	}
	id, err := strconv.ParseUint(os.Args[2], 10, 64)
	if err != nil || id == 0 {
		log.Fatalf("Invalid user ID %q", os.Args[2])
	}

	var (
		user   *models.User
		action string
	)
	switch command {
	case "promote":
		user, err = users.SetAdmin(ctx, uint(id), true)
		action = "promoted to admin"
	case "demote":
		user, err = users.SetAdmin(ctx, uint(id), false)
		action = "demoted from admin"
	case "block":
		user, err = users.SetBlocked(ctx, uint(id), true)
		action = "blocked"
	case "unblock":
		user, err = users.SetBlocked(ctx, uint(id), false)
		action = "unblocked"
	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
	}
	if err != nil {
		log.Fatalf("Failed to update user %d: %v", id, err)
	}

	fmt.Printf("%s (ID: %d) %s\n", user.Username, user.ID, action)
}

func listAdmins(db *gorm.DB) {
	var admins []models.User
	if err := db.Where("is_admin = ?", true).Order("id").Find(&admins).Error; err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No admins found in the system")
		return
	}

	fmt.Println("Current admins:")
	for _, admin := range admins {
		fmt.Printf("ID: %d | Username: %s | Email: %s\n", admin.ID, admin.Username, admin.Email)
	}
}
