package sqlserver

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/askdb/askdb/internal/catalog"
)

const driverName = "sqlserver"

type DBConfig struct {
	Encrypt                string
	TrustServerCertificate bool
	AppName                string
	DialTimeout            time.Duration
	QueryTimeout           time.Duration
}

// OpenFunc opens a connection scoped to one database.
type OpenFunc func(ctx context.Context, profile catalog.Profile, database string) (*sql.DB, error)

// Open connects to database on the server named by profile and pings it.
// The pool is capped at one connection: every caller owns a single session.
func Open(ctx context.Context, cfg DBConfig, profile catalog.Profile, database string) (*sql.DB, error) {
	if strings.TrimSpace(profile.Host) == "" {
		return nil, fmt.Errorf("host is required")
	}
	if strings.TrimSpace(profile.Username) == "" {
		return nil, fmt.Errorf("username is required")
	}

	db, err := sql.Open(driverName, DSN(cfg, profile, database))
	if err != nil {
		return nil, fmt.Errorf("open sql server connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sql server: %w", err)
	}
	return db, nil
}

// DSN renders a go-mssqldb URL. Host accepts HOST, HOST\INSTANCE and a
// trailing ",PORT"; profile.Port wins over the comma form, and any port wins
// over instance resolution.
func DSN(cfg DBConfig, profile catalog.Profile, database string) string {
	host := strings.TrimSpace(profile.Host)
	port := strings.TrimSpace(profile.Port)
	if idx := strings.LastIndex(host, ","); idx >= 0 {
		if port == "" {
			port = strings.TrimSpace(host[idx+1:])
		}
		host = strings.TrimSpace(host[:idx])
	}
	instance := ""
	if idx := strings.Index(host, `\`); idx >= 0 {
		instance = host[idx+1:]
		host = host[:idx]
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	}

	u := &url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(profile.Username, profile.Password),
		Host:   host,
	}
	if instance != "" {
		u.Path = "/" + instance
	}

	query := url.Values{}
	if database != "" {
		query.Set("database", database)
	}
	if cfg.Encrypt != "" {
		query.Set("encrypt", cfg.Encrypt)
	}
	if cfg.TrustServerCertificate {
		query.Set("TrustServerCertificate", "true")
	}
	if cfg.AppName != "" {
		query.Set("app name", cfg.AppName)
	}
	if cfg.DialTimeout > 0 {
		query.Set("dial timeout", strconv.Itoa(int(cfg.DialTimeout.Round(time.Second).Seconds())))
	}
	u.RawQuery = query.Encode()
	return u.String()
}
