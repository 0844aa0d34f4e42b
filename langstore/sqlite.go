package langstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	translator "github.com/mc-mysterria/mysterria-translator-sub000"
)

// SQLiteStore keeps preferences in an actor_langs table.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("langstore: sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS actor_langs (
		actor_id TEXT PRIMARY KEY,
		lang TEXT NOT NULL
	)`)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, actor translator.ActorID, lang string) error {
	if err := validate(actor, lang); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `REPLACE INTO actor_langs (actor_id, lang) VALUES (?, ?)`, string(actor), lang)
	if err != nil {
		return fmt.Errorf("langstore: save %s: %w", actor, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, actor translator.ActorID) (string, bool, error) {
	var lang string
	err := s.db.QueryRowContext(ctx, `SELECT lang FROM actor_langs WHERE actor_id = ?`, string(actor)).Scan(&lang)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("langstore: get %s: %w", actor, err)
	}
	return lang, true, nil
}

func (s *SQLiteStore) Remove(ctx context.Context, actor translator.ActorID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM actor_langs WHERE actor_id = ?`, string(actor)); err != nil {
		return fmt.Errorf("langstore: remove %s: %w", actor, err)
	}
	return nil
}

func (s *SQLiteStore) LoadAll(ctx context.Context) (map[translator.ActorID]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT actor_id, lang FROM actor_langs`)
	if err != nil {
		return nil, fmt.Errorf("langstore: load: %w", err)
	}
	defer rows.Close()

	out := make(map[translator.ActorID]string)
	for rows.Next() {
		var id, lang string
		if err := rows.Scan(&id, &lang); err != nil {
			return nil, fmt.Errorf("langstore: load: %w", err)
		}
		out[translator.ActorID(id)] = lang
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
