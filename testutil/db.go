// Package testutil provides fixtures shared by package tests: a seeded catalog
// database and a mock CDN.
package testutil

import (
	"database/sql"
	"os"
	"strings"
	"testing"

	"github.com/onnwee/vod-danmaku/db"
)

// Schema is the catalog DDL used by tests. It is valid on both sqlite and
// postgres; production schemas are managed outside this repository.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS room (
		id BIGINT PRIMARY KEY,
		short_id BIGINT,
		username TEXT NOT NULL,
		image TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS video (
		uuid TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		cover TEXT,
		room BIGINT NOT NULL,
		stream_time BIGINT NOT NULL,
		record_time BIGINT NOT NULL,
		restricted INTEGER NOT NULL DEFAULT 0,
		restricted_hash TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_video_room_stream ON video(room, stream_time)`,
}

// TestDB is an open catalog database and the driver it was opened with.
type TestDB struct {
	*sql.DB
	Driver string
}

// Store returns a db.Store over the fixture.
func (d *TestDB) Store() *db.Store { return db.NewStore(d.DB, d.Driver) }

// SetupTestDB opens an in-memory sqlite database with the catalog schema.
// When TEST_PG_DSN is set the postgres database it names is used instead and
// the catalog tables are emptied first.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	driver, dsn := db.DriverSQLite, ":memory:"
	if pg := os.Getenv("TEST_PG_DSN"); pg != "" {
		driver, dsn = db.DriverPostgres, pg
	}
	database, err := db.Open(driver, dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	for _, stmt := range Schema {
		if _, err := database.Exec(stmt); err != nil {
			t.Fatalf("failed to apply schema: %v", err)
		}
	}
	if driver == db.DriverPostgres {
		for _, table := range []string{"video", "room"} {
			if _, err := database.Exec("DELETE FROM " + table); err != nil {
				t.Fatalf("failed to reset %s: %v", table, err)
			}
		}
	}
	return &TestDB{DB: database, Driver: driver}
}

// InsertRoom adds a room row.
func (d *TestDB) InsertRoom(t *testing.T, r db.Room) {
	t.Helper()
	d.exec(t, `INSERT INTO room (id, short_id, username, image) VALUES (?, ?, ?, ?)`, r.ID, r.ShortID, r.Username, r.Image)
}

// InsertVideo adds a video row.
func (d *TestDB) InsertVideo(t *testing.T, v db.Video) {
	t.Helper()
	d.exec(t, `INSERT INTO video (uuid, title, cover, room, stream_time, record_time, restricted, restricted_hash) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.ToLower(v.UUID), v.Title, v.Cover, v.Room, v.StreamTime, v.RecordTime, v.Restricted, v.RestrictedHash)
}

func (d *TestDB) exec(t *testing.T, query string, args ...any) {
	t.Helper()
	if _, err := d.Exec(db.Rebind(d.Driver, query), args...); err != nil {
		t.Fatalf("exec %s: %v", firstWords(query), err)
	}
}

func firstWords(q string) string {
	f := strings.Fields(q)
	if len(f) > 3 {
		f = f[:3]
	}
	return strings.Join(f, " ")
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
