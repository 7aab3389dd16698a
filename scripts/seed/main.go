// Command seed bootstraps a TrainSmart database with the first admin account.
// Run it once after migrations; subsequent runs are no-ops when the email is
// already registered.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trainsmart-io/trainsmart-api/internal/models"
	"github.com/trainsmart-io/trainsmart-api/internal/repository"
	"github.com/trainsmart-io/trainsmart-api/pkg/config"
	"github.com/trainsmart-io/trainsmart-api/pkg/database"
)

func main() {
	var (
		email     string
		password  string
		firstName string
		lastName  string
		timeout   time.Duration
	)

	flag.StringVar(&email, "email", "admin@trainsmart.local", "Admin account email")
	flag.StringVar(&password, "password", "", "Admin password (required)")
	flag.StringVar(&firstName, "first-name", "System", "Admin first name")
	flag.StringVar(&lastName, "last-name", "Admin", "Admin last name")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "Database operation timeout")
	flag.Parse()

	if password == "" {
		log.Println("missing required -password flag")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	users := repository.NewUserRepository(db)

	taken, err := users.ExistsByEmail(ctx, email)
	if err != nil {
		log.Fatalf("failed to check existing account: %v", err)
	}
	if taken {
		fmt.Printf("account %s already exists, nothing to do\n", email)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	admin := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    firstName,
		LastName:     lastName,
		Role:         models.RoleAdmin,
		Active:       true,
	}
	if err := users.Create(ctx, admin); err != nil {
		log.Fatalf("failed to create admin account: %v", err)
	}

	fmt.Printf("admin account %s created (%s)\n", email, admin.ID)
}
