package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
	"projecthub/internal/platform/config"
)

const (
	DriverCGO    = "sqlite3"
	DriverPureGo = "sqlite"
)

// Open connects to the shared store. The driver is either the cgo sqlite3
// driver or the pure Go one; both speak the same SQL.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverCGO
	}
	if driver != DriverCGO && driver != DriverPureGo {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn(driver, cfg.URL))
	if err != nil {
		return nil, err
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	if !isMemory(cfg.URL) {
		db.SetConnMaxLifetime(time.Hour)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func isMemory(url string) bool {
	return strings.Contains(url, ":memory:")
}

// dsn appends the busy timeout pragma in the syntax each driver expects.
func dsn(driver, url string) string {
	if isMemory(url) || strings.Contains(url, "?") {
		return url
	}
	if driver == DriverPureGo {
		return url + "?_pragma=busy_timeout(5000)"
	}
	return url + "?_busy_timeout=5000"
}
