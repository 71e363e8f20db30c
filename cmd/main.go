package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"CollectRecon/internal/appmanager"
	"CollectRecon/internal/config"
)

// connString builds the Postgres DSN from DB_* env vars. An empty DB_HOST
// means no database: the engine then runs on in-memory stores.
func connString() (string, bool) {
	host := os.Getenv("DB_HOST")
	if host == "" {
		return "", false
	}
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), host,
		envOr("DB_PORT", "5432"), os.Getenv("DB_NAME"), envOr("DB_SSLMODE", "disable"),
	), true
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	// Load .env for local dev
	_ = godotenv.Load("../.env", ".env")

	if dsn, ok := connString(); ok {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			log.Fatal("failed to open DB:", err)
		}
		if err := db.Ping(); err != nil {
			log.Fatal("failed to connect to DB:", err)
		}
		defer db.Close()
		appmanager.SetDB(db)

		pool, err := pgxpool.New(context.Background(), dsn)
		if err != nil {
			log.Fatal("failed to create pgx pool:", err)
		}
		defer pool.Close()
		appmanager.SetPgxPool(pool)
	} else {
		log.Println("[WARN] DB_HOST not set, running without a database")
	}

	manager := appmanager.NewAppManager()

	servicesCfg, err := appmanager.LoadServiceSequence(envOr("SERVICES_FILE", config.DefaultServicesFile))
	if err != nil {
		log.Fatal("failed to load service sequence:", err)
	}

	manager.AutoRegisterServices(servicesCfg)

	if err := manager.StartAll(); err != nil {
		log.Fatal("failed to start:", err)
	}

	// Graceful shutdown handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	if err := manager.StopAll(); err != nil {
		log.Println("failed to stop cleanly:", err)
	}
}
