package replication

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yourusername/bgtable/internal/positionid"
	"github.com/yourusername/bgtable/pkg/engine"
	"github.com/yourusername/bgtable/pkg/external"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	game_id     TEXT PRIMARY KEY,
	version     INTEGER NOT NULL,
	position_id TEXT NOT NULL,
	state       BLOB NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS snapshots_position ON snapshots(position_id);
`

// SQLiteStore keeps the latest snapshot of every game in a SQLite database.
// Subscribers in the same process are notified after each save; other
// processes only see snapshots through Load.
type SQLiteStore struct {
	db    *sql.DB
	local *Hub
	now   func() time.Time
}

// OpenSQLite opens or creates the database at path. Use ":memory:" for a
// private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared and writes serialized
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, local: NewHub(), now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save upserts the snapshot unless a newer version is already stored, then
// notifies local subscribers.
func (s *SQLiteStore) Save(ctx context.Context, gameID string, gs engine.GameState) error {
	data, err := external.MarshalState(gs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (game_id, version, position_id, state, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(game_id) DO UPDATE SET
			version = excluded.version,
			position_id = excluded.position_id,
			state = excluded.state,
			updated_at = excluded.updated_at
		WHERE excluded.version >= snapshots.version`,
		gameID, int64(gs.Version), positionid.Encode(gs.Board, gs.Turn), data, s.now().UTC())
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", gameID, err)
	}
	return s.local.Save(ctx, gameID, gs)
}

// Subscribe registers fn for saves made through this store.
func (s *SQLiteStore) Subscribe(ctx context.Context, gameID string, fn Listener) (func(), error) {
	return s.local.Subscribe(ctx, gameID, fn)
}

// Load reads the stored snapshot.
func (s *SQLiteStore) Load(ctx context.Context, gameID string) (engine.GameState, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT state FROM snapshots WHERE game_id = ?`, gameID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.GameState{}, ErrNoSnapshot
	}
	if err != nil {
		return engine.GameState{}, fmt.Errorf("load snapshot %s: %w", gameID, err)
	}
	return external.UnmarshalState(data)
}

// Games lists the stored game IDs, most recently updated first.
func (s *SQLiteStore) Games(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT game_id FROM snapshots ORDER BY updated_at DESC, game_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FindPosition returns the games whose latest snapshot has the given
// position ID.
func (s *SQLiteStore) FindPosition(ctx context.Context, posID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT game_id FROM snapshots WHERE position_id = ? ORDER BY game_id`, posID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
