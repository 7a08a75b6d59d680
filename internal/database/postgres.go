package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewPostgres opens a PostgreSQL connection through lib/pq and hands it to gorm
func NewPostgres(host string, port int, user, password, dbname, sslmode, logLevel string) (*GormDB, error) {
	if sslmode == "" {
		sslmode = "disable"
	}
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), gormConfig(logLevel))
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &GormDB{db: db}, nil
}
