package main

import (
	"context"
	"log"
	"os"

	"github.com/NordCoder/checksync/internal/repository/postgres"
)

func main() {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN is empty")
	}
	if err := postgres.Migrate(context.Background(), dsn); err != nil {
		log.Fatal(err)
	}
	log.Println("migrations: up OK")
}
