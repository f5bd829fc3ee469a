package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"

	"github.com/noah-isme/storefront-checkout/internal/db"
)

const usage = `usage: migrate [up | down <n> | force <version> | version]`

func main() {
	_ = godotenv.Load()
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	m, err := db.NewMigrator(dbURL)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _, _ = m.Close() }()

	args := flag.Args()
	if len(args) == 0 {
		args = []string{"up"}
	}

	switch args[0] {
	case "up":
		err = m.Up()
	case "down":
		n := intArg(args, 1)
		err = m.Steps(-n)
	case "force":
		err = m.Force(intArg(args, 1))
	case "version":
		v, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			log.Fatal(verr)
		}
		fmt.Printf("version=%d dirty=%t\n", v, dirty)
		return
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migrate %s: %v", args[0], err)
	}
	log.Printf("migrate %s: ok", args[0])
}

func intArg(args []string, i int) int {
	if len(args) <= i {
		flag.Usage()
		os.Exit(2)
	}
	n, err := strconv.Atoi(args[i])
	if err != nil || n < 0 {
		log.Fatalf("invalid number %q", args[i])
	}
	return n
}
