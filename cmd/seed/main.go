package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"circle-chat/config"
	"circle-chat/internal/auth"
	"circle-chat/internal/chat"
	"circle-chat/internal/store"
	"circle-chat/internal/store/firestore"
	"circle-chat/internal/store/memstore"
	"circle-chat/pkg/database"
	"circle-chat/pkg/logger"
)

const usage = `
Circle Chat - Development CLI Tool

Usage:
  seed [flags] [command] [args]

Commands:
  seed-dev        Seed users, a direct conversation and a group
  token <userID>  Print a signed ID token for userID
  status          Check that the configured store is reachable

Flags:
  -users int        Number of users to seed (default 4)
  -group string     Name of the seeded group (default "Circle Team")
  -ttl duration     Lifetime of printed tokens (default 24h)

Examples:
  go run ./cmd/seed seed-dev
  go run ./cmd/seed token alice
`

func main() {
	users := flag.Int("users", 4, "Number of users to seed")
	group := flag.String("group", "Circle Team", "Name of the seeded group")
	ttl := flag.Duration("ttl", 24*time.Hour, "Lifetime of printed tokens")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.LoadConfig()
	verifier := auth.NewVerifier(cfg.JWTSecret)

	switch command := flag.Arg(0); command {
	case "token":
		if flag.NArg() < 2 {
			log.Fatal("token requires a user id")
		}
		printToken(verifier, flag.Arg(1), *ttl)
	case "seed-dev":
		s, closeStore := openStore(cfg)
		defer closeStore()
		res, err := database.Seed(context.Background(), s, &database.SeedConfig{UserCount: *users, GroupName: *group})
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		for _, u := range res.Users {
			printToken(verifier, u.ID, *ttl)
		}
	case "status":
		s, closeStore := openStore(cfg)
		defer closeStore()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		docs, err := s.Documents(ctx, store.Query{Collection: chat.CollectionUsers})
		if err != nil {
			log.Fatalf("Store unreachable: %v", err)
		}
		fmt.Printf("Store %s is reachable, %d users\n", cfg.StoreBackend, len(docs))
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (store.DocumentStore, func()) {
	if cfg.StoreBackend == config.StoreMemory {
		log.Println("Memory store selected; seeded data lives only for this process")
		return memstore.New(), func() {}
	}
	fs, err := firestore.New(context.Background(), cfg.FirestoreProjectID, logger.New(cfg.AppMode))
	if err != nil {
		log.Fatalf("Failed to open firestore: %v", err)
	}
	return fs, func() { _ = fs.Close() }
}

func printToken(v *auth.Verifier, userID string, ttl time.Duration) {
	token, err := v.Issue(userID, ttl)
	if err != nil {
		log.Fatalf("Failed to sign token for %s: %v", userID, err)
	}
	fmt.Printf("%s\t%s\n", userID, token)
}
