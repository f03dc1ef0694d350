package migrate

import (
	"context"
	"fmt"

	"github.com/haatbazaar/marketplace-backend/pkg/config"
	"github.com/haatbazaar/marketplace-backend/pkg/db"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on boot when running in dev
// with MARKET_AUTO_MIGRATE set. SQLite runs skip it.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate || cfg.FeatureFlags.UseSQLite {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, Embedded())
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "service_kind": cfg.Service.Kind})
	applied, err := runner.Up(ctx)
	if err != nil {
		return err
	}
	for _, m := range applied {
		logg.Info(logg.WithFields(ctx, map[string]any{"version": m.Version, "path": m.Path}), "migration applied")
	}
	logg.Info(logg.WithField(ctx, "applied", len(applied)), "dev auto-migrate complete")
	return nil
}
