// Command main runs the database seeder for Huddle.
package main

import (
	"context"
	"flag"
	"log"

	"huddle/internal/config"
	"huddle/internal/database"
	"huddle/internal/seed"

	"github.com/joho/godotenv"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numGroups := flag.Int("groups", 10, "Number of groups to create")
	numEvents := flag.Int("events", 25, "Number of events to create")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	friends := flag.Int("friends", 6, "Average friendships per user")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	fast := flag.Bool("fast", false, "Store plain-text passwords instead of bcrypt hashes")
	dryRun := flag.Bool("dry-run", false, "Build the data without writing it")
	preset := flag.String("preset", "", "Apply a named preset (minimal, demo, large)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{
		NumUsers:       *numUsers,
		NumGroups:      *numGroups,
		NumEvents:      *numEvents,
		NumPosts:       *numPosts,
		FriendsPerUser: *friends,
		SkipBcrypt:     *fast,
		DryRun:         *dryRun,
	})
	if *preset != "" {
		if err := s.ApplyPreset(*preset); err != nil {
			log.Fatal(err)
		}
		log.Printf("Applying preset: %s (ignoring count flags)", *preset)
	}

	if *shouldClean && !*dryRun {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	if _, err := s.Run(context.Background()); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("All done. Every seeded user has the password: %s", seed.DefaultPassword)
}
