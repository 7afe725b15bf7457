package database

import (
	"context"
	"database/sql"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Settings locates the MySQL account store and sizes its pool.
type Settings struct {
	User, Pass string
	Host, Port string
	Name       string

	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Config builds the driver configuration on top of the driver defaults
// (utf8mb4).  Times are read as UTC time.Time values, and clientFoundRows
// makes RowsAffected count matched rows so rewriting an unchanged value is
// not mistaken for a missing row.
func (s Settings) Config() *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = s.User
	mc.Passwd = s.Pass
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(s.Host, s.Port)
	mc.DBName = s.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.ClientFoundRows = true
	return mc
}

// Open connects to MySQL and pings it within ctx.
func Open(ctx context.Context, s Settings) (*sql.DB, error) {
	conn, err := mysql.NewConnector(s.Config())
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(conn)

	if s.MaxOpenConns <= 0 {
		s.MaxOpenConns = 25
	}
	if s.ConnMaxLifetime <= 0 {
		s.ConnMaxLifetime = 30 * time.Minute
	}
	db.SetMaxOpenConns(s.MaxOpenConns)
	db.SetMaxIdleConns(s.MaxOpenConns)
	db.SetConnMaxLifetime(s.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
