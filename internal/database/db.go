// Package database opens the MySQL pool and owns the schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/seat-block-booking/internal/config"
)

// Pool limits applied to every connection pool.
const (
	maxOpenConns    = 25
	connMaxLifetime = 30 * time.Minute
	pingTimeout     = 5 * time.Second
)

// DriverConfig maps the DB_* settings onto the driver's config.  Times are
// parsed into time.Time in UTC and the connection uses utf8mb4.
func DriverConfig(cfg config.Config) *mysql.Config {
	dc := mysql.NewConfig()
	dc.User = cfg.DBUser
	dc.Passwd = cfg.DBPass
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	dc.DBName = cfg.DBName
	dc.ParseTime = true
	dc.Loc = time.UTC
	dc.Params = map[string]string{"charset": "utf8mb4"}
	return dc
}

// Open builds a pool from cfg and pings it before returning.
func Open(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	dc := DriverConfig(cfg)
	connector, err := mysql.NewConnector(dc)
	if err != nil {
		return nil, fmt.Errorf("mysql config: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql %s: %w", dc.Addr, err)
	}
	return db, nil
}
