package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/college-eapproval-api/internal/models"
	"github.com/noah-isme/college-eapproval-api/internal/repository"
	"github.com/noah-isme/college-eapproval-api/pkg/config"
	"github.com/noah-isme/college-eapproval-api/pkg/database"
)

type seedUser struct {
	username string
	password string
	role     models.Role
}

// One demo account per role; skipped when the username already exists.
var seedUsers = []seedUser{
	{username: "student1", password: "studentpass", role: models.RoleStudent},
	{username: "classteacher1", password: "teacherpass", role: models.RoleClassTeacher},
	{username: "hod1", password: "hodpass", role: models.RoleHOD},
	{username: "principal1", password: "principalpass", role: models.RolePrincipal},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close() //nolint:errcheck

	repo := repository.NewUserRepository(db)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, seed := range seedUsers {
		if _, err := repo.FindByUsername(ctx, seed.username); err == nil {
			log.Printf("user %s already exists, skipping", seed.username)
			continue
		} else if !errors.Is(err, sql.ErrNoRows) {
			log.Fatalf("failed to check user %s: %v", seed.username, err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(seed.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("failed to hash password for %s: %v", seed.username, err)
		}

		user := &models.User{
			Username:     seed.username,
			PasswordHash: string(hash),
			Role:         seed.role,
		}
		if err := repo.Create(ctx, user); err != nil {
			log.Fatalf("failed to create user %s: %v", seed.username, err)
		}
		log.Printf("created %s user %s", seed.role, seed.username)
	}
}
