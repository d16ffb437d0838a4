package config

import (
	"fmt"

	dbm "github.com/tendermint/tm-db"
)

// DBContext names the database to open and the config it lives under.
type DBContext struct {
	ID     string
	Config *Config
}

// DBProvider opens the database described by a DBContext.
type DBProvider func(*DBContext) (dbm.DB, error)

// DefaultDBProvider opens ctx.ID with the configured backend under DBDir.
// The memdb backend ignores the directory.
func DefaultDBProvider(ctx *DBContext) (dbm.DB, error) {
	backend := dbm.BackendType(ctx.Config.DBBackend)
	db, err := dbm.NewDB(ctx.ID, backend, ctx.Config.DBDir())
	if err != nil {
		return nil, fmt.Errorf("opening %s database %q: %w", backend, ctx.ID, err)
	}
	return db, nil
}
