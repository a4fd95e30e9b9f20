package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GameResult is one classified game outcome.
type GameResult struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	PlayerUUID string    `json:"player_uuid"`
	PlayerName string    `json:"player_name"`
	GameKey    string    `json:"game_key"`
	Outcome    string    `json:"outcome"`
	RecordedAt time.Time `json:"recorded_at"`
}

// GameTally aggregates results for one game key.
type GameTally struct {
	GameKey string `json:"game_key"`
	Games   int    `json:"games"`
	Wins    int    `json:"wins"`
	Losses  int    `json:"losses"`
}

// Results records game starts and outcomes.
type Results struct {
	db *Database
}

// NewResults returns the result store.
func NewResults(db *Database) *Results {
	return &Results{db: db}
}

// StartGame notes that a session entered a game mode.
func (r *Results) StartGame(ctx context.Context, sessionID, playerUUID, gameKey string, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO game_sessions (session_id, player_uuid, game_key, started_at) VALUES (?, ?, ?, ?)`,
		sessionID, playerUUID, gameKey, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("record game start: %w", err)
	}
	return nil
}

// Record stores a game outcome.
func (r *Results) Record(ctx context.Context, res GameResult) (int64, error) {
	out, err := r.db.Exec(ctx, `
		INSERT INTO game_results (session_id, player_uuid, player_name, game_key, outcome, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		res.SessionID, res.PlayerUUID, res.PlayerName, res.GameKey, res.Outcome, res.RecordedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("record game result: %w", err)
	}
	return out.LastInsertId()
}

// Recent returns up to limit results, newest first.
func (r *Results) Recent(ctx context.Context, limit int) ([]GameResult, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, session_id, player_uuid, player_name, game_key, outcome, recorded_at
		FROM game_results ORDER BY recorded_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []GameResult
	for rows.Next() {
		var (
			res GameResult
			at  int64
		)
		if err := rows.Scan(&res.ID, &res.SessionID, &res.PlayerUUID, &res.PlayerName, &res.GameKey, &res.Outcome, &at); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		res.RecordedAt = time.UnixMilli(at)
		out = append(out, res)
	}
	return out, rows.Err()
}

// Summary tallies results recorded since the given time, per game key.
func (r *Results) Summary(ctx context.Context, since time.Time) ([]GameTally, error) {
	rows, err := r.db.Query(ctx, `
		SELECT game_key,
			COUNT(*),
			SUM(CASE WHEN outcome = 'win' THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = 'loss' THEN 1 ELSE 0 END)
		FROM game_results WHERE recorded_at >= ?
		GROUP BY game_key ORDER BY game_key`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var out []GameTally
	for rows.Next() {
		var t GameTally
		if err := rows.Scan(&t.GameKey, &t.Games, &t.Wins, &t.Losses); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Prune deletes game starts and results older than cutoff in one
// transaction and returns the number of results removed.
func (r *Results) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM game_sessions WHERE started_at < ?`, cutoff.UnixMilli()); err != nil {
			return fmt.Errorf("prune game sessions: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM game_results WHERE recorded_at < ?`, cutoff.UnixMilli())
		if err != nil {
			return fmt.Errorf("prune game results: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}
