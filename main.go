package main

import (
	"context"
	"log"

	"gowbic/adapters/api"
	"gowbic/adapters/postgres"
	"gowbic/app"
	"gowbic/internal/config"
	"gowbic/internal/errors"
	"gowbic/internal/migration"
	"gowbic/internal/testkit"
	"gowbic/ports"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// initDatabase initializes the PostgreSQL connection and applies the
// artifact ledger schema
func initDatabase(appConfig *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", appConfig.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	migrator := migration.NewRunner()
	if err := migrator.Run(context.Background(), db); err != nil {
		return nil, errors.Wrap(err, "database migration failed")
	}

	return db, nil
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Select the ledger backing the API: postgres when configured, an empty
	// in-memory adapter otherwise (useful for endpoint smoke tests only)
	var reader ports.LedgerReaderPort
	if appConfig.Database.URL != "" {
		db, err := initDatabase(appConfig)
		if err != nil {
			log.Fatal("Failed to initialize database:", err)
		}
		defer db.Close()
		reader = postgres.NewLedgerRepository(db)
		log.Println("Using postgres artifact ledger")
	} else {
		log.Println("No DATABASE_URL configured, serving an in-memory ledger")
		reader = testkit.NewInMemoryLedgerAdapter()
	}

	server := api.NewServer(app.NewSweepReader(reader))

	log.Printf("🚀 Starting gowbic results API on port %s", appConfig.Server.Port)
	log.Fatal(server.Start(appConfig.Server.Port))
}
