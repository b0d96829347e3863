package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"derby-bot/internal/model"
)

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrPlayerExists   = errors.New("player already exists")
)

const playerColumns = `id, game_nick, telegram, name, birthday`

// PlayerRepository stores the global player directory.
type PlayerRepository struct {
	pool *pgxpool.Pool
}

// NewPlayerRepository creates a new PlayerRepository instance.
func NewPlayerRepository(pool *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{pool: pool}
}

func scanPlayers(rows pgx.Rows) ([]*model.Player, error) {
	defer rows.Close()

	var players []*model.Player
	for rows.Next() {
		var p model.Player
		if err := rows.Scan(&p.ID, &p.GameNick, &p.Telegram, &p.Name, &p.Birthday); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate players: %w", err)
	}
	return players, nil
}

// Add inserts a player. Nicknames are unique case-insensitively.
func (r *PlayerRepository) Add(ctx context.Context, p model.Player) (*model.Player, error) {
	const query = `
		INSERT INTO players (game_nick, telegram, name, birthday)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
		RETURNING ` + playerColumns

	var out model.Player
	err := r.pool.QueryRow(ctx, query, p.GameNick, p.Telegram, p.Name, p.Birthday).Scan(
		&out.ID, &out.GameNick, &out.Telegram, &out.Name, &out.Birthday,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerExists
		}
		return nil, fmt.Errorf("failed to add player: %w", err)
	}
	return &out, nil
}

// List returns the whole directory ordered by nickname.
func (r *PlayerRepository) List(ctx context.Context) ([]*model.Player, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+playerColumns+` FROM players ORDER BY LOWER(game_nick)`)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	return scanPlayers(rows)
}

// Find searches nickname, Telegram handle and name for a case-insensitive substring.
func (r *PlayerRepository) Find(ctx context.Context, needle string) ([]*model.Player, error) {
	const query = `
		SELECT ` + playerColumns + `
		FROM players
		WHERE game_nick ILIKE '%' || $1 || '%'
		   OR telegram ILIKE '%' || $1 || '%'
		   OR name ILIKE '%' || $1 || '%'
		ORDER BY LOWER(game_nick)
	`
	rows, err := r.pool.Query(ctx, query, needle)
	if err != nil {
		return nil, fmt.Errorf("failed to find players: %w", err)
	}
	return scanPlayers(rows)
}

// Remove deletes the player whose nickname or Telegram handle equals key, ignoring case.
func (r *PlayerRepository) Remove(ctx context.Context, key string) (*model.Player, error) {
	const query = `
		DELETE FROM players
		WHERE LOWER(game_nick) = LOWER($1) OR (telegram <> '-' AND LOWER(telegram) = LOWER($1))
		RETURNING ` + playerColumns

	rows, err := r.pool.Query(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("failed to remove player: %w", err)
	}
	removed, err := scanPlayers(rows)
	if err != nil {
		return nil, err
	}
	if len(removed) == 0 {
		return nil, ErrPlayerNotFound
	}
	return removed[0], nil
}

// SetBirthday sets or clears (nil) a player's birthday.
func (r *PlayerRepository) SetBirthday(ctx context.Context, nick string, birthday *string) (*model.Player, error) {
	const query = `
		UPDATE players SET birthday = $2
		WHERE LOWER(game_nick) = LOWER($1)
		RETURNING ` + playerColumns

	var out model.Player
	err := r.pool.QueryRow(ctx, query, nick, birthday).Scan(
		&out.ID, &out.GameNick, &out.Telegram, &out.Name, &out.Birthday,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to set birthday: %w", err)
	}
	return &out, nil
}

// WithBirthdays returns the players that have a birthday set.
func (r *PlayerRepository) WithBirthdays(ctx context.Context) ([]*model.Player, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+playerColumns+` FROM players WHERE birthday IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to list birthdays: %w", err)
	}
	return scanPlayers(rows)
}

// BornOn returns the players whose birthday is day ("DD.MM").
func (r *PlayerRepository) BornOn(ctx context.Context, day string) ([]*model.Player, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+playerColumns+` FROM players WHERE birthday = $1 ORDER BY LOWER(game_nick)`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list birthdays on %s: %w", day, err)
	}
	return scanPlayers(rows)
}
