package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{"subscribers table", `
		CREATE TABLE IF NOT EXISTS subscribers (
			chat_id BIGINT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"settings table", `
		CREATE TABLE IF NOT EXISTS settings (
			key VARCHAR(64) PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"participants table", `
		CREATE TABLE IF NOT EXISTS participants (
			chat_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			username VARCHAR(255) NOT NULL DEFAULT '',
			display_name VARCHAR(255) NOT NULL DEFAULT '',
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (chat_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_participants_chat_joined ON participants(chat_id, joined_at);
	`},
	{"players table", `
		CREATE TABLE IF NOT EXISTS players (
			id BIGSERIAL PRIMARY KEY,
			game_nick VARCHAR(255) NOT NULL,
			telegram VARCHAR(255) NOT NULL DEFAULT '-',
			name VARCHAR(255) NOT NULL DEFAULT '',
			birthday VARCHAR(5)
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_players_nick ON players(LOWER(game_nick));
	`},
	{"chat_stats table", `
		CREATE TABLE IF NOT EXISTS chat_stats (
			chat_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			username VARCHAR(255) NOT NULL DEFAULT '',
			messages BIGINT NOT NULL DEFAULT 0,
			duel_wins BIGINT NOT NULL DEFAULT 0,
			duel_losses BIGINT NOT NULL DEFAULT 0,
			coin_wins BIGINT NOT NULL DEFAULT 0,
			coin_losses BIGINT NOT NULL DEFAULT 0,
			word_explained BIGINT NOT NULL DEFAULT 0,
			word_guessed BIGINT NOT NULL DEFAULT 0,
			word_points BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (chat_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_chat_stats_points ON chat_stats(chat_id, word_points DESC);
	`},
	{"words table", `
		CREATE TABLE IF NOT EXISTS words (
			id BIGSERIAL PRIMARY KEY,
			text VARCHAR(255) NOT NULL,
			category VARCHAR(64) NOT NULL,
			difficulty SMALLINT NOT NULL CHECK (difficulty BETWEEN 1 AND 3),
			UNIQUE (text, category)
		);
		CREATE INDEX IF NOT EXISTS idx_words_category_difficulty ON words(category, difficulty);
	`},
}

// Migrate creates the schema. Every statement is idempotent, so it runs on each start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Msgf("Migration %d: %s ready", i+1, m.name)
	}

	log.Info().Msg("Database migrations completed")
	return nil
}
