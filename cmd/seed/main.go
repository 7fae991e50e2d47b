package main

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/federation/enterprise/config"
	"github.com/federation/enterprise/internal/domain/entity"
	"github.com/federation/enterprise/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	name := "demoUser"
	email := "demo@example.com"
	password := "password123"

	hash, err := helpers.HashPassword(helpers.NormalizePassword(password))
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	u := entity.NewUser(entity.Properties{Name: name, Email: email})

	var id string
	err = db.QueryRow(`
		INSERT INTO enterprise.account (account_id, name, email, password, refresh_token)
		VALUES ($1, $2, $3, $4, '')
		ON CONFLICT (name) DO UPDATE SET email = EXCLUDED.email, password = EXCLUDED.password
		RETURNING account_id
	`, u.ID, u.Name, u.Email, hash).Scan(&id)
	if err != nil {
		log.Fatalf("failed to seed account: %v", err)
	}
	fmt.Printf("seeded account: id=%s name=%s email=%s password=%s\n", id, name, email, password)
}
