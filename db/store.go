package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrNotFound is returned when a room or video does not exist.
var ErrNotFound = errors.New("not found")

// MaxPageSize caps list queries.
const MaxPageSize = 100

// Video is a catalog entry. Times are unix milliseconds.
type Video struct {
	UUID           string  `json:"uuid"`
	Title          string  `json:"title"`
	Cover          *string `json:"cover"`
	Room           int64   `json:"room"`
	StreamTime     int64   `json:"stream_time"`
	RecordTime     int64   `json:"record_time"`
	Restricted     int     `json:"restricted"`
	RestrictedHash *string `json:"-"`
}

// IsRestricted reports whether the video needs an access hash.
func (v Video) IsRestricted() bool { return v.Restricted != 0 }

// Room is a live room whose streams are archived.
type Room struct {
	ID       int64  `json:"id"`
	ShortID  *int64 `json:"short_id"`
	Username string `json:"username"`
	Image    string `json:"image"`
}

// Store reads the catalog.
type Store struct {
	db     *sql.DB
	driver string
}

// NewStore wraps database opened with driver.
func NewStore(database *sql.DB, driver string) *Store {
	return &Store{db: database, driver: driver}
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) q(query string) string { return Rebind(s.driver, query) }

const videoColumns = `uuid, title, cover, room, stream_time, record_time, restricted, restricted_hash`

func scanVideo(sc interface{ Scan(...any) error }) (Video, error) {
	var v Video
	var cover, hash sql.NullString
	if err := sc.Scan(&v.UUID, &v.Title, &cover, &v.Room, &v.StreamTime, &v.RecordTime, &v.Restricted, &hash); err != nil {
		return Video{}, err
	}
	if cover.Valid {
		v.Cover = &cover.String
	}
	if hash.Valid {
		v.RestrictedHash = &hash.String
	}
	return v, nil
}

func (s *Store) videos(ctx context.Context, query string, args ...any) ([]Video, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", slog.Any("err", err))
		}
	}()
	out := make([]Video, 0)
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetVideo loads a video by uuid (case-insensitive).
func (s *Store) GetVideo(ctx context.Context, uuid string) (Video, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+videoColumns+` FROM video WHERE uuid = ?`), strings.ToLower(uuid))
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Video{}, fmt.Errorf("video %s: %w", uuid, ErrNotFound)
	}
	if err != nil {
		return Video{}, fmt.Errorf("get video %s: %w", uuid, err)
	}
	return v, nil
}

// ListParts returns every recording of the same stream as uuid, oldest first.
func (s *Store) ListParts(ctx context.Context, uuid string) ([]Video, error) {
	v, err := s.GetVideo(ctx, uuid)
	if err != nil {
		return nil, err
	}
	parts, err := s.videos(ctx, `SELECT `+videoColumns+` FROM video WHERE room = ? AND stream_time = ? ORDER BY record_time ASC`, v.Room, v.StreamTime)
	if err != nil {
		return nil, fmt.Errorf("list parts of %s: %w", uuid, err)
	}
	return parts, nil
}

// ListRoomVideos returns a room's videos, newest stream first.
func (s *Store) ListRoomVideos(ctx context.Context, room int64, limit, offset int) ([]Video, error) {
	limit, offset = page(limit, offset)
	out, err := s.videos(ctx, `SELECT `+videoColumns+` FROM video WHERE room = ? ORDER BY stream_time DESC, record_time ASC LIMIT ? OFFSET ?`, room, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list videos of room %d: %w", room, err)
	}
	return out, nil
}

// GetRoom loads a room by id.
func (s *Store) GetRoom(ctx context.Context, id int64) (Room, error) {
	var r Room
	var short sql.NullInt64
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id, short_id, username, image FROM room WHERE id = ?`), id).
		Scan(&r.ID, &short, &r.Username, &r.Image)
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, fmt.Errorf("room %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Room{}, fmt.Errorf("get room %d: %w", id, err)
	}
	if short.Valid {
		r.ShortID = &short.Int64
	}
	return r, nil
}

// ListRooms returns a page of rooms ordered by id.
func (s *Store) ListRooms(ctx context.Context, limit, offset int) ([]Room, error) {
	limit, offset = page(limit, offset)
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, short_id, username, image FROM room ORDER BY id LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", slog.Any("err", err))
		}
	}()
	out := make([]Room, 0)
	for rows.Next() {
		var r Room
		var short sql.NullInt64
		if err := rows.Scan(&r.ID, &short, &r.Username, &r.Image); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		if short.Valid {
			v := short.Int64
			r.ShortID = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// page applies the default size of 50 and the MaxPageSize cap.
func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
