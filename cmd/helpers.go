package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/agrisense/maizeguard/internal/config"
	"github.com/agrisense/maizeguard/internal/store"
)

// initStore opens the configured store backend and runs migrations.
func initStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)

	switch cfg.Store.Driver {
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	return st, nil
}

func fmtFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}
