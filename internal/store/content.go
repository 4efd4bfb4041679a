package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sitecopy/api/internal/content"
)

// documentID is the primary key of the single content row.
const documentID = 1

var ErrNotFound = errors.New("content document not found")

// TransportError wraps any failure to reach or use the backing store.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("content store %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type Record struct {
	Document  content.Document
	UpdatedAt time.Time
}

type ContentStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewContentStore(db *sql.DB, dialect Dialect) *ContentStore {
	return &ContentStore{db: db, dialect: dialect, now: time.Now}
}

func (s *ContentStore) DB() *sql.DB {
	return s.db
}

func (s *ContentStore) Dialect() Dialect {
	return s.dialect
}

// Load reads the committed document. ErrNotFound means the row has never been
// written; everything else is a *TransportError.
func (s *ContentStore) Load(ctx context.Context) (Record, error) {
	const query = `SELECT content, updated_at FROM site_content WHERE id = $1`
	var (
		raw       []byte
		updatedAt any
	)
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), documentID).Scan(&raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, &TransportError{Op: "load", Err: err}
	}

	doc, err := content.Decode(raw)
	if err != nil {
		return Record{}, &TransportError{Op: "load", Err: err}
	}
	at, err := scanTime(updatedAt)
	if err != nil {
		return Record{}, &TransportError{Op: "load", Err: err}
	}
	return Record{Document: doc, UpdatedAt: at}, nil
}

// Save upserts the whole document in one statement, so a failure leaves the
// previous row untouched.
func (s *ContentStore) Save(ctx context.Context, doc content.Document) (time.Time, error) {
	raw, err := doc.Encode()
	if err != nil {
		return time.Time{}, &TransportError{Op: "save", Err: err}
	}
	updatedAt := s.now().UTC().Truncate(time.Microsecond)

	const upsert = `
		INSERT INTO site_content (id, content, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET content = excluded.content, updated_at = excluded.updated_at
	`
	var stamp any = updatedAt
	if s.dialect == DialectSQLite {
		stamp = updatedAt.Format(time.RFC3339Nano)
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(upsert), documentID, string(raw), stamp); err != nil {
		return time.Time{}, &TransportError{Op: "save", Err: err}
	}
	return updatedAt, nil
}

func (s *ContentStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &TransportError{Op: "ping", Err: err}
	}
	return nil
}

func scanTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", value)
	}
}

func parseTime(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q", value)
}
