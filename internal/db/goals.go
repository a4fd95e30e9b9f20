package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoGoal is returned when a player has no active goal.
var ErrNoGoal = errors.New("no active goal")

// Goal is a stat target a player is working towards.
type Goal struct {
	PlayerUUID string    `json:"player_uuid"`
	Game       string    `json:"game"`
	Stat       string    `json:"stat"`
	Name       string    `json:"name"`
	Target     float64   `json:"target"`
	Initial    float64   `json:"initial"`
	SetAt      time.Time `json:"set_at"`
}

// Goals stores one active goal per player.
type Goals struct {
	db *Database
}

// NewGoals returns the goal store.
func NewGoals(db *Database) *Goals {
	return &Goals{db: db}
}

// Set replaces the player's active goal.
func (g *Goals) Set(ctx context.Context, goal Goal) error {
	_, err := g.db.Exec(ctx, `
		INSERT INTO goals (player_uuid, game, stat, name, target, initial, set_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(player_uuid) DO UPDATE SET
			game = excluded.game, stat = excluded.stat, name = excluded.name,
			target = excluded.target, initial = excluded.initial, set_at = excluded.set_at`,
		goal.PlayerUUID, goal.Game, goal.Stat, goal.Name, goal.Target, goal.Initial, goal.SetAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save goal: %w", err)
	}
	return nil
}

// Get returns the player's active goal or ErrNoGoal.
func (g *Goals) Get(ctx context.Context, playerUUID string) (Goal, error) {
	var (
		goal  = Goal{PlayerUUID: playerUUID}
		setAt int64
	)
	err := g.db.QueryRow(ctx, `
		SELECT game, stat, name, target, initial, set_at FROM goals WHERE player_uuid = ?`, playerUUID).
		Scan(&goal.Game, &goal.Stat, &goal.Name, &goal.Target, &goal.Initial, &setAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Goal{}, ErrNoGoal
	}
	if err != nil {
		return Goal{}, fmt.Errorf("load goal: %w", err)
	}
	goal.SetAt = time.UnixMilli(setAt)
	return goal, nil
}

// Cancel deletes the player's active goal. It returns ErrNoGoal when there
// was none.
func (g *Goals) Cancel(ctx context.Context, playerUUID string) error {
	res, err := g.db.Exec(ctx, `DELETE FROM goals WHERE player_uuid = ?`, playerUUID)
	if err != nil {
		return fmt.Errorf("cancel goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoGoal
	}
	return nil
}
