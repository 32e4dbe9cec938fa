package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ManuelReschke/Vahana/internal/pkg/env"
)

func main() {
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	user := env.GetEnv("DB_USER", "vahana")
	host := env.GetEnv("DB_HOST", "db")
	port := env.GetEnv("DB_PORT", "3306")
	name := env.GetEnv("DB_NAME", "vahana_db")

	dbURL := fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true&parseTime=true",
		user, env.GetEnv("DB_PASSWORD", "vahana"), host, port, name)
	log.Printf("Connecting to database %s@%s:%s/%s", user, host, port, name)

	m, err := migrate.New("file://"+env.GetEnv("MIGRATIONS_DIR", "migrations"), dbURL)
	if err != nil {
		log.Fatalf("Could not initialise migrations: %v", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Printf("Could not close migration resources: %v, %v", sourceErr, dbErr)
		}
	}()

	switch command {
	case "up":
		err := m.Up()
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			log.Println("No change: database is up to date")
		case err != nil:
			log.Fatalf("Migration failed: %v", err)
		default:
			log.Println("Migrations applied")
		}

	case "down":
		if err := m.Steps(-1); err != nil {
			log.Fatalf("Could not roll back the last migration: %v", err)
		}
		log.Println("Rolled back the last migration")

	case "goto":
		version := versionArg()
		err := m.Migrate(version)
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			log.Printf("No change: database is already at version %d", version)
		case err != nil:
			log.Fatalf("Could not migrate to version %d: %v", version, err)
		default:
			log.Printf("Migrated to version %d", version)
		}

	case "force":
		// clears the dirty flag after a failed migration was fixed by hand
		version := versionArg()
		if err := m.Force(int(version)); err != nil {
			log.Fatalf("Could not force version %d: %v", version, err)
		}
		log.Printf("Forced version %d", version)

	case "status":
		version, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			log.Println("No migrations applied yet")
		case err != nil:
			log.Fatalf("Could not read the migration version: %v", err)
		default:
			dirtyStatus := ""
			if dirty {
				dirtyStatus = " (dirty)"
			}
			log.Printf("Current migration version: %d%s", version, dirtyStatus)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func versionArg() uint {
	if len(os.Args) < 3 {
		log.Fatalf("Please pass a version number")
	}
	version, err := strconv.ParseUint(os.Args[2], 10, 64)
	if err != nil {
		log.Fatalf("Invalid version number: %v", err)
	}
	return uint(version)
}

func printUsage() {
	fmt.Println("Usage: go run cmd/migrate/main.go [command]")
	fmt.Println("Commands:")
	fmt.Println("  up      - apply all pending migrations")
	fmt.Println("  down    - roll back the last migration")
	fmt.Println("  goto N  - migrate to version N")
	fmt.Println("  force N - set version N without running migrations")
	fmt.Println("  status  - show the current migration version")
}
