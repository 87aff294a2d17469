package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/angelmondragon/stockroom-backend/internal/users"
	pkgAuth "github.com/angelmondragon/stockroom-backend/pkg/auth"
	"github.com/angelmondragon/stockroom-backend/pkg/config"
	"github.com/angelmondragon/stockroom-backend/pkg/db"
	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "devtoken"})

	_ = godotenv.Load()

	email := flag.String("email", "", "profile email to mint a token for")
	id := flag.String("id", "", "profile id to mint a token for")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	if cfg.App.IsProd() {
		fmt.Fprintln(os.Stderr, "devtoken refuses to run in production")
		os.Exit(1)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	profile, err := findProfile(ctx, users.NewRepository(dbClient.DB()), *id, *email)
	requireResource(ctx, logg, "profile", err)

	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: profile.ID,
		Role:   profile.Role,
	})
	requireResource(ctx, logg, "token", err)

	fmt.Println(token)
}

func findProfile(ctx context.Context, repo *users.Repository, id, email string) (*models.Profile, error) {
	switch {
	case strings.TrimSpace(id) != "":
		parsed, err := uuid.Parse(strings.TrimSpace(id))
		if err != nil {
			return nil, fmt.Errorf("invalid -id: %w", err)
		}
		return repo.FindByID(ctx, parsed)
	case strings.TrimSpace(email) != "":
		return repo.FindByEmail(ctx, strings.TrimSpace(email))
	default:
		return nil, fmt.Errorf("one of -id or -email is required")
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
