package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"lamportd/internal/clock"
)

// Kind is the type of a recorded event.
type Kind string

const (
	Sent     Kind = "sent"
	Received Kind = "received"
	Dropped  Kind = "dropped"
)

// Event is one journal entry.
type Event struct {
	NodeID    string
	Kind      Kind
	Timestamp clock.Time // packet timestamp, 0 if none
	Clock     clock.Time // local clock after the event
	Payload   string
	Detail    string
	At        time.Time
}

// Sink receives events from the control loop.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

// Record does nothing.
func (Nop) Record(context.Context, Event) error { return nil }

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	node_id   TEXT    NOT NULL,
	kind      TEXT    NOT NULL,
	timestamp INTEGER NOT NULL,
	clock     INTEGER NOT NULL,
	payload   TEXT    NOT NULL,
	detail    TEXT    NOT NULL,
	at_unix_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS events_node_clock ON events (node_id, clock);
`

// SQLite is a Sink backed by a SQLite database file.
type SQLite struct {
	db     *sql.DB
	insert *sql.Stmt
}

// Open opens (creating if needed) the journal at path.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	// One writer: the control loop.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}

	insert, err := db.Prepare(`INSERT INTO events
		(node_id, kind, timestamp, clock, payload, detail, at_unix_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare journal insert: %w", err)
	}

	return &SQLite{db: db, insert: insert}, nil
}

// Record appends an event.
func (j *SQLite) Record(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := j.insert.ExecContext(ctx,
		e.NodeID,
		string(e.Kind),
		int64(e.Timestamp),
		int64(e.Clock),
		e.Payload,
		e.Detail,
		e.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record %s event: %w", e.Kind, err)
	}
	return nil
}

// Events returns the events of a node ordered by insertion.
func (j *SQLite) Events(ctx context.Context, nodeID string) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT node_id, kind, timestamp, clock, payload, detail, at_unix_ns
		FROM events WHERE node_id = ? ORDER BY id`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e         Event
			kind      string
			timestamp int64
			clk       int64
			atNs      int64
		)
		if err := rows.Scan(&e.NodeID, &kind, &timestamp, &clk, &e.Payload, &e.Detail, &atNs); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		e.Kind = Kind(kind)
		e.Timestamp = clock.Time(timestamp)
		e.Clock = clock.Time(clk)
		e.At = time.Unix(0, atNs)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close closes the database.
func (j *SQLite) Close() error {
	j.insert.Close()
	return j.db.Close()
}
