package archive

import (
	"context"
	"fmt"

	"github.com/yielddelta/backtester/pkg/config"
	"github.com/yielddelta/backtester/pkg/database"
)

// Open returns the store selected by cfg.Archive.Driver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Archive.Driver {
	case "", "none":
		return Nop{}, nil
	case "sqlite":
		return NewSQLiteStore(cfg.Archive.SQLitePath)
	case "postgres":
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		store, err := NewPostgresStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("archive: unknown driver %q", cfg.Archive.Driver)
	}
}
