package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/persona-lab/internal/domain"
	"github.com/ashureev/persona-lab/internal/shared"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // sqlite driver
)

// dialect captures the SQL differences between the supported databases.
type dialect struct {
	name         string
	schema       string
	mergeProfile string
	retryBusy    bool
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS personas (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		characteristics TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_personas_user_created ON personas(user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		persona_id TEXT NOT NULL,
		messages TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_owner ON conversations(user_id, persona_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`,
	mergeProfile: `
	INSERT INTO profiles (user_id, data, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		data = json_patch(profiles.data, excluded.data),
		updated_at = excluded.updated_at`,
	retryBusy: true,
}

var postgresDialect = dialect{
	name: "postgres",
	schema: `
	CREATE TABLE IF NOT EXISTS personas (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		characteristics TEXT NOT NULL DEFAULT '[]',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_personas_user_created ON personas(user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		persona_id TEXT NOT NULL,
		messages TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_owner ON conversations(user_id, persona_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	);
	`,
	mergeProfile: `
	INSERT INTO profiles (user_id, data, updated_at) VALUES (?, ?, ?)
	ON CONFLICT (user_id) DO UPDATE SET
		data = (profiles.data::jsonb || EXCLUDED.data::jsonb)::text,
		updated_at = EXCLUDED.updated_at`,
}

// SQLStore implements Repository on a relational database, keeping
// list-valued fields as JSON text columns.
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
	now     func() time.Time
}

type personaRow struct {
	ID              string `db:"id"`
	UserID          string `db:"user_id"`
	Name            string `db:"name"`
	Description     string `db:"description"`
	Characteristics string `db:"characteristics"`
	CreatedAt       int64  `db:"created_at"`
	UpdatedAt       int64  `db:"updated_at"`
}

type conversationRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	PersonaID string `db:"persona_id"`
	Messages  string `db:"messages"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.Wrap(err, "create database directory")
	}

	// WAL mode for concurrent readers while a request writes.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return openSQLStore(db, sqliteDialect)
}

// NewPostgres creates a new PostgreSQL-backed repository.
func NewPostgres(databaseURL string) (*SQLStore, error) {
	db, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return openSQLStore(db, postgresDialect)
}

func openSQLStore(db *sqlx.DB, d dialect) (*SQLStore, error) {
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	s := newSQLStore(db, d)
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "initialize schema")
	}
	return s, nil
}

func newSQLStore(db *sqlx.DB, d dialect) *SQLStore {
	return &SQLStore{db: db, dialect: d, now: time.Now}
}

func (s *SQLStore) initSchema() error {
	if _, err := s.db.Exec(s.dialect.schema); err != nil {
		return errors.Wrap(err, "create schema")
	}
	return nil
}

// exec runs a rebound statement, retrying SQLite busy errors with exponential backoff.
func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	query = s.db.Rebind(query)

	maxRetries := 1
	if s.dialect.retryBusy {
		maxRetries = 3
	}
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		var res sql.Result
		res, err = s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		if !shared.IsSQLiteConflictError(err) || i == maxRetries-1 {
			break
		}
		delay := baseDelay * time.Duration(1<<i)
		slog.Debug("Database locked, retrying", "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, err
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "close database")
	}
	return nil
}

// CreatePersona persists a new persona.
func (s *SQLStore) CreatePersona(ctx context.Context, p *domain.Persona) (*domain.Persona, error) {
	now := s.now().UTC()
	created := *p
	created.ID = uuid.NewString()
	created.CreatedAt = now
	created.UpdatedAt = now
	if created.Characteristics == nil {
		created.Characteristics = []string{}
	}

	traits, err := json.Marshal(created.Characteristics)
	if err != nil {
		return nil, errors.Wrap(err, "encode characteristics")
	}

	_, err = s.exec(ctx, `
		INSERT INTO personas (id, user_id, name, description, characteristics, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		created.ID, created.UserID, created.Name, created.Description, string(traits),
		now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "insert persona")
	}

	return fromMillis(&created), nil
}

// GetPersona retrieves a persona by ID.
func (s *SQLStore) GetPersona(ctx context.Context, id string) (*domain.Persona, error) {
	var row personaRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT id, user_id, name, description, characteristics, created_at, updated_at
		FROM personas WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query persona")
	}
	return row.toDomain()
}

// ListPersonas returns the personas owned by userID, newest first.
func (s *SQLStore) ListPersonas(ctx context.Context, userID string) ([]*domain.Persona, error) {
	var rows []personaRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT id, user_id, name, description, characteristics, created_at, updated_at
		FROM personas WHERE user_id = ?
		ORDER BY created_at DESC`), userID)
	if err != nil {
		return nil, errors.Wrap(err, "query personas")
	}

	personas := make([]*domain.Persona, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		personas = append(personas, p)
	}
	return personas, nil
}

// UpdatePersona writes only the columns present in upd, so concurrent updates
// of different fields do not overwrite each other.
func (s *SQLStore) UpdatePersona(ctx context.Context, id string, upd domain.PersonaUpdate) (*domain.Persona, error) {
	var sets []string
	var args []any
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.Characteristics != nil {
		traits, err := json.Marshal(*upd.Characteristics)
		if err != nil {
			return nil, errors.Wrap(err, "encode characteristics")
		}
		sets = append(sets, "characteristics = ?")
		args = append(args, string(traits))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.now().UTC().UnixMilli(), id)

	res, err := s.exec(ctx, `UPDATE personas SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "update persona")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "get rows affected")
	}
	if n == 0 {
		return nil, domain.ErrNotFound
	}

	p, err := s.GetPersona(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// DeletePersona removes a persona.
func (s *SQLStore) DeletePersona(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM personas WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete persona")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "get rows affected")
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CreateConversation persists a conversation and returns its ID.
func (s *SQLStore) CreateConversation(ctx context.Context, c *domain.Conversation) (string, error) {
	id := uuid.NewString()
	now := s.now().UTC()
	createdAt, updatedAt := c.CreatedAt, c.UpdatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	messages, err := json.Marshal(c.Messages)
	if err != nil {
		return "", errors.Wrap(err, "encode messages")
	}

	_, err = s.exec(ctx, `
		INSERT INTO conversations (id, user_id, persona_id, messages, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, c.UserID, c.PersonaID, string(messages), createdAt.UnixMilli(), updatedAt.UnixMilli(),
	)
	if err != nil {
		return "", errors.Wrap(err, "insert conversation")
	}
	return id, nil
}

// ListConversations returns the conversations of userID with personaID, newest first.
func (s *SQLStore) ListConversations(ctx context.Context, userID, personaID string, limit int) ([]*domain.Conversation, error) {
	var rows []conversationRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT id, user_id, persona_id, messages, created_at, updated_at
		FROM conversations WHERE user_id = ? AND persona_id = ?
		ORDER BY created_at DESC
		LIMIT ?`), userID, personaID, normalizeLimit(limit))
	if err != nil {
		return nil, errors.Wrap(err, "query conversations")
	}

	conversations := make([]*domain.Conversation, 0, len(rows))
	for _, row := range rows {
		c := &domain.Conversation{
			ID:        row.ID,
			UserID:    row.UserID,
			PersonaID: row.PersonaID,
			CreatedAt: time.UnixMilli(row.CreatedAt).UTC(),
			UpdatedAt: time.UnixMilli(row.UpdatedAt).UTC(),
		}
		if err := json.Unmarshal([]byte(row.Messages), &c.Messages); err != nil {
			return nil, errors.Wrapf(err, "decode messages of conversation %s", row.ID)
		}
		conversations = append(conversations, c)
	}
	return conversations, nil
}

// GetProfile returns the profile document of a user.
func (s *SQLStore) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var data string
	err := s.db.GetContext(ctx, &data, s.db.Rebind(`SELECT data FROM profiles WHERE user_id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query profile")
	}

	profile := domain.Profile{}
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, errors.Wrap(err, "decode profile")
	}
	return profile, nil
}

// MergeProfile merges fields into the profile document.
func (s *SQLStore) MergeProfile(ctx context.Context, userID string, fields domain.Profile) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return errors.Wrap(err, "encode profile")
	}
	if _, err := s.exec(ctx, s.dialect.mergeProfile, userID, string(data), s.now().UTC().UnixMilli()); err != nil {
		return errors.Wrap(err, "merge profile")
	}
	return nil
}

// DeleteProfile removes the profile document of a user.
func (s *SQLStore) DeleteProfile(ctx context.Context, userID string) error {
	if _, err := s.exec(ctx, `DELETE FROM profiles WHERE user_id = ?`, userID); err != nil {
		return errors.Wrap(err, "delete profile")
	}
	return nil
}

func (r personaRow) toDomain() (*domain.Persona, error) {
	p := &domain.Persona{
		ID:          r.ID,
		UserID:      r.UserID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   time.UnixMilli(r.CreatedAt).UTC(),
		UpdatedAt:   time.UnixMilli(r.UpdatedAt).UTC(),
	}
	if err := json.Unmarshal([]byte(r.Characteristics), &p.Characteristics); err != nil {
		return nil, errors.Wrapf(err, "decode characteristics of persona %s", r.ID)
	}
	if p.Characteristics == nil {
		p.Characteristics = []string{}
	}
	return p, nil
}

// fromMillis truncates timestamps to the stored millisecond precision so
// a returned document equals what a later read yields.
func fromMillis(p *domain.Persona) *domain.Persona {
	p.CreatedAt = time.UnixMilli(p.CreatedAt.UnixMilli()).UTC()
	p.UpdatedAt = time.UnixMilli(p.UpdatedAt.UnixMilli()).UTC()
	return p
}

var _ Repository = (*SQLStore)(nil)
