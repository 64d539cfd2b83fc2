package sqlserver

import (
	"context"
	"database/sql"

	"github.com/askdb/askdb/internal/catalog"
)

type Dialer struct {
	config DBConfig
	open   OpenFunc
}

func NewDialer(cfg DBConfig) *Dialer {
	return &Dialer{
		config: cfg,
		open: func(ctx context.Context, profile catalog.Profile, database string) (*sql.DB, error) {
			return Open(ctx, cfg, profile, database)
		},
	}
}

// NewDialerWithOpener swaps the connection factory; tests hand in sqlmock.
func NewDialerWithOpener(cfg DBConfig, open OpenFunc) *Dialer {
	return &Dialer{config: cfg, open: open}
}

func (d *Dialer) Dial(ctx context.Context, profile catalog.Profile, database string) (catalog.Browser, error) {
	db, err := d.open(ctx, profile, database)
	if err != nil {
		return nil, &catalog.ConnectivityError{Op: "connect to " + database, Err: err}
	}
	return NewRepository(db, d.config.QueryTimeout), nil
}
