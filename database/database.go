package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mbolis/quick-survey/config"
)

// ErrNotFound is returned when a row does not exist or is not visible to
// the caller (wrong owner, inactive survey).
var ErrNotFound = errors.New("not found")

func Open(cfg config.Config) (db *sql.DB, err error) {
	db, err = sql.Open("sqlite3", cfg.DBUrl)
	if err != nil {
		return
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		db.Close()
		return
	}

	// db tuning options
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	err = migrateDB(db)
	if err != nil {
		db.Close()
		return
	}

	return
}

// Timestamps are stored as fixed-width UTC text so that they sort lexically.
const timeLayout = "2006-01-02 15:04:05.000000000"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

type sqlTime struct {
	time.Time
}

func (t *sqlTime) Scan(src any) (err error) {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
	case string:
		t.Time, err = time.ParseInLocation(timeLayout, v, time.UTC)
	case []byte:
		t.Time, err = time.ParseInLocation(timeLayout, string(v), time.UTC)
	case nil:
		t.Time = time.Time{}
	default:
		err = fmt.Errorf("cannot scan %T into time", src)
	}
	return
}

type rowScanner interface {
	Scan(dest ...any) error
}

func newID() string {
	return uuid.Must(uuid.NewV4()).String()
}

var now = time.Now
