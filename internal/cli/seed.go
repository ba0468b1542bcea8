package cli

import (
	"context"
	"fmt"

	"matrix-quest-service/internal/catalog"
	"matrix-quest-service/internal/config"
	"matrix-quest-service/internal/infra/memory"
	"matrix-quest-service/internal/infra/postgres"
	pgmigrations "matrix-quest-service/internal/infra/postgres/migrations"
	"matrix-quest-service/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewSeedCmd loads the catalog and the static users into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert questions and user profiles into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, cost)
		},
	}
	cmd.Flags().IntVar(&cost, "bcrypt-cost", 0, "bcrypt cost for plain passwords (0 uses the library default)")
	return cmd
}

func runSeed(ctx context.Context, configPath string, cost int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	log, err := logger.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cat := catalog.Default()
	if cfg.Catalog.Source == "file" {
		if cat, err = catalog.LoadFile(cfg.Catalog.Path); err != nil {
			return err
		}
	}

	if err := pgmigrations.Apply(ctx, cfg.Postgres.URL); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	pool, err := postgres.NewPool(ctx, cfg.Postgres.URL, postgres.PoolConfig{MaxConns: cfg.Postgres.MaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.NewQuestionLoader(pool).SeedQuestions(ctx, cat.Questions()); err != nil {
		return err
	}
	log.Info("questions seeded", zap.Int("count", cat.Len()))

	users := cfg.Credentials.Users
	if len(users) == 0 {
		users = memory.DefaultCredentials()
	}
	creds := postgres.NewCredentialStore(pool)
	for _, u := range users {
		user, err := creds.UpsertProfile(ctx, u, cost)
		if err != nil {
			return err
		}
		log.Info("profile seeded", zap.String("username", user.Username), zap.String("id", user.Key))
	}
	return nil
}
