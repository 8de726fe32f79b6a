// Package database opens the MySQL pool the repositories run on.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Options carries the connection and pool settings. Pool sizing comes
// from configuration rather than constants so deployments can tune it
// per instance.
type Options struct {
	User, Pass      string
	Host, Port      string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// dsn renders the driver connection string. parseTime maps DATETIME
// columns onto time.Time, and pinning loc to UTC keeps order
// timestamps comparable regardless of the server's zone.
func dsn(o Options) string {
	auth := o.User
	if o.Pass != "" {
		auth = fmt.Sprintf("%s:%s", o.User, o.Pass)
	}
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, o.Host, o.Port, o.Name)
}

// Open connects to MySQL, applies the pool settings and verifies the
// connection with a short ping so a bad DSN fails at startup instead
// of on the first request.
func Open(o Options) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn(o))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(o.MaxOpenConns)
	db.SetMaxIdleConns(o.MaxIdleConns)
	db.SetConnMaxLifetime(o.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
