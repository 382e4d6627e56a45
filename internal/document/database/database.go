// Package database stores raw surveillance documents in PostgreSQL.
// Documents are kept as JSONB bodies per facility so that metrics can be derived from the latest import.
package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/ipsurveil/ipmetrics/internal/document"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ubuntu/decorate"
)

const table = "surveillance_documents"

// ErrNotFound is returned when no document matches the request.
var ErrNotFound = errors.New("document not found")

// Config holds the configuration for connecting to the PostgreSQL database.
type Config struct {
	Host     string `mapstructure:"db-host"`
	Port     int    `mapstructure:"db-port"`
	User     string `mapstructure:"db-user"`
	Password string `mapstructure:"db-password"`
	DBName   string `mapstructure:"db-name"`
	SSLMode  string `mapstructure:"db-sslmode"`
}

type dbPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Manager manages the PostgreSQL database connection pool.
type Manager struct {
	dbpool dbPool
}

type options struct {
	newPool func(ctx context.Context, dsn string) (dbPool, error)
}

// Options represents an optional function to override Manager default values.
type Options func(*options)

// Stored is a document as kept in the database.
type Stored struct {
	ID         uuid.UUID
	Facility   string
	CapturedAt time.Time
	Document   document.Document
}

// Connect creates database manager with a PostgreSQL connection pool using the provided configuration.
// Note: The connection is validated with a ping, but it is not maintained.
func Connect(ctx context.Context, cfg Config, args ...Options) (*Manager, error) {
	opts := options{
		newPool: func(ctx context.Context, dsn string) (dbPool, error) {
			return pgxpool.New(ctx, dsn)
		},
	}

	for _, opt := range args {
		opt(&opts)
	}

	dbpool, err := opts.newPool(ctx, cfg.URI("postgres"))
	if err != nil {
		return nil, fmt.Errorf("unable to create database connection pool: %w", err)
	}

	slog.Debug("Testing database connection", "host", cfg.Host, "port", cfg.Port)
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := dbpool.Ping(pingCtx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("unable to ping database: %v", err)
	}

	slog.Info("Successfully pinged PostgreSQL database", "host", cfg.Host, "port", cfg.Port)
	return &Manager{dbpool: dbpool}, nil
}

// Put stores doc as the document captured now for facility and returns its id.
func (db Manager) Put(ctx context.Context, facility string, doc document.Document) (id uuid.UUID, err error) {
	defer decorate.OnError(&err, "could not store document for facility %q", facility)

	if db.dbpool == nil {
		return uuid.Nil, fmt.Errorf("database not initialized")
	}

	body, err := json.Marshal(doc.Map())
	if err != nil {
		return uuid.Nil, fmt.Errorf("could not marshal document: %v", err)
	}

	id = uuid.New()
	query := fmt.Sprintf(
		`INSERT INTO %s (
			id,
			facility,
			captured_at,
			body
		) VALUES ($1, $2, $3, $4)`,
		pgx.Identifier{table}.Sanitize(),
	)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := db.dbpool.Exec(ctx, query,
		id,           // id
		facility,     // facility
		time.Now(),   // captured_at
		string(body), // body
	); err != nil {
		if errors.Is(err, context.Canceled) {
			return uuid.Nil, fmt.Errorf("insert canceled: %v", err)
		}
		return uuid.Nil, fmt.Errorf("failed to insert document: %v", err)
	}
	slog.Debug("Stored document", "id", id, "facility", facility)
	return id, nil
}

// Latest returns the most recently captured document of facility.
func (db Manager) Latest(ctx context.Context, facility string) (s Stored, err error) {
	defer decorate.OnError(&err, "could not get latest document for facility %q", facility)

	query := fmt.Sprintf(
		`SELECT id, facility, captured_at, body FROM %s
		WHERE facility = $1
		ORDER BY captured_at DESC
		LIMIT 1`,
		pgx.Identifier{table}.Sanitize(),
	)
	return db.queryOne(ctx, query, facility)
}

// Get returns the document stored with id.
func (db Manager) Get(ctx context.Context, id uuid.UUID) (s Stored, err error) {
	defer decorate.OnError(&err, "could not get document %s", id)

	query := fmt.Sprintf(
		`SELECT id, facility, captured_at, body FROM %s WHERE id = $1`,
		pgx.Identifier{table}.Sanitize(),
	)
	return db.queryOne(ctx, query, id)
}

func (db Manager) queryOne(ctx context.Context, query string, args ...any) (Stored, error) {
	if db.dbpool == nil {
		return Stored{}, fmt.Errorf("database not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var s Stored
	var body []byte
	err := db.dbpool.QueryRow(ctx, query, args...).Scan(&s.ID, &s.Facility, &s.CapturedAt, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stored{}, ErrNotFound
	}
	if err != nil {
		return Stored{}, fmt.Errorf("failed to query document: %v", err)
	}

	s.Document, err = document.Parse(bytes.NewReader(body), document.JSON)
	if err != nil {
		return Stored{}, err
	}
	return s, nil
}

// Source returns a document source reading from the database.
// A nil id selects the latest document of facility.
func (db *Manager) Source(facility string, id uuid.UUID) document.Source {
	return source{db: db, facility: facility, id: id}
}

type source struct {
	db       *Manager
	facility string
	id       uuid.UUID
}

func (s source) Document(ctx context.Context) (document.Document, error) {
	var stored Stored
	var err error
	if s.id == uuid.Nil {
		stored, err = s.db.Latest(ctx, s.facility)
	} else {
		stored, err = s.db.Get(ctx, s.id)
	}
	if err != nil {
		return document.Document{}, err
	}
	slog.Info("Loaded document from database", "id", stored.ID, "facility", stored.Facility, "captured_at", stored.CapturedAt)
	return stored.Document, nil
}

// Close closes the database connection.
//
// If the connection is already closed, it does nothing.
// If the connection does not close within 10 seconds, it returns an error.
func (db *Manager) Close() error {
	if db.dbpool == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		db.dbpool.Close()
	}()

	select {
	case <-done:
		db.dbpool = nil
		return nil
	case <-time.After(10 * time.Second):
		return fmt.Errorf("timeout while closing database, connection may still be open")
	}
}

// URI is a helper method that returns a connection URI for PostgreSQL.
// It does not check the validity of the configuration values.
//
// Security warning: the returned string may include credentials.
func (c Config) URI(scheme string) string {
	host := c.Host
	if c.Port != 0 {
		host = fmt.Sprintf("%s:%d", c.Host, c.Port)
	}

	user := url.User(c.User)
	if c.Password != "" {
		user = url.UserPassword(c.User, c.Password)
	}

	u := &url.URL{
		Scheme: scheme,
		User:   user,
		Host:   host,
		Path:   c.DBName,
	}

	q := u.Query()
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
