package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"strings"
	"testing"
	"time"
)

// badRowDriver serves a single row whose candidate_name / details column
// is NULL, which fails the Scan into a plain string.
type badRowDriver struct{}

func (badRowDriver) Open(name string) (driver.Conn, error) { return &badRowConn{}, nil }

type badRowConn struct{}

func (c *badRowConn) Prepare(query string) (driver.Stmt, error) {
	return &badRowStmt{query: query}, nil
}
func (c *badRowConn) Close() error              { return nil }
func (c *badRowConn) Begin() (driver.Tx, error) { return nil, driver.ErrSkip }

type badRowStmt struct{ query string }

func (s *badRowStmt) Close() error  { return nil }
func (s *badRowStmt) NumInput() int { return -1 }
func (s *badRowStmt) Exec(args []driver.Value) (driver.Result, error) {
	return driver.ResultNoRows, nil
}
func (s *badRowStmt) Query(args []driver.Value) (driver.Rows, error) {
	if strings.Contains(s.query, "FROM events") {
		return &badRows{cols: []string{
			"id", "session_id", "event_type", "timestamp",
			"duration_seconds", "details", "severity",
		}, row: []driver.Value{
			"11111111-1111-1111-1111-111111111111", int64(1), "no_face",
			time.Now(), nil, nil, "high",
		}}, nil
	}
	return &badRows{cols: []string{
		"id", "candidate_name", "start_time", "end_time", "duration_seconds",
		"focus_lost_count", "suspicious_event_count", "integrity_score",
		"video_url", "version",
	}, row: []driver.Value{
		int64(1), nil, time.Now(), nil, int64(0),
		int64(0), int64(0), int64(100), "", int64(1),
	}}, nil
}

type badRows struct {
	cols []string
	row  []driver.Value
	done bool
}

func (r *badRows) Columns() []string { return r.cols }
func (r *badRows) Close() error      { return nil }
func (r *badRows) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	r.done = true
	copy(dest, r.row)
	return nil
}

func TestListingsSurfaceScanErrors(t *testing.T) {
	sql.Register("proctor-bad-row", badRowDriver{})
	db, err := sql.Open("proctor-bad-row", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	p := NewPostgres(db)

	sessions, err := p.ListSessions(context.Background())
	if err == nil {
		t.Errorf("ListSessions returned %d sessions and no error for an unscannable row", len(sessions))
	}

	events, err := p.ListEvents(context.Background(), 1)
	if err == nil {
		t.Errorf("ListEvents returned %d events and no error for an unscannable row", len(events))
	}
}
