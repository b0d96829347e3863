package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"derby-bot/internal/model"
)

var ErrWordNotFound = errors.New("word not found")

// WordRepository is the word bank of the guessing game.
type WordRepository struct {
	pool *pgxpool.Pool
}

// NewWordRepository creates a new WordRepository instance.
func NewWordRepository(pool *pgxpool.Pool) *WordRepository {
	return &WordRepository{pool: pool}
}

// RandomWord draws one word uniformly. An empty category or a zero difficulty matches any.
// Returns ErrWordNotFound when the filter matches nothing.
func (r *WordRepository) RandomWord(ctx context.Context, category string, difficulty int) (*model.Word, error) {
	const query = `
		SELECT id, text, category, difficulty
		FROM words
		WHERE ($1::text = '' OR category = $1::text)
		  AND ($2::int = 0 OR difficulty = $2::int)
		ORDER BY random()
		LIMIT 1
	`
	var w model.Word
	err := r.pool.QueryRow(ctx, query, category, difficulty).Scan(&w.ID, &w.Text, &w.Category, &w.Difficulty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWordNotFound
		}
		return nil, fmt.Errorf("failed to draw word: %w", err)
	}
	return &w, nil
}

// Categories lists the distinct categories in the bank.
func (r *WordRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT category FROM words ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return out, nil
}

// Count returns the number of words in the bank.
func (r *WordRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM words`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count words: %w", err)
	}
	return n, nil
}

// Seed upserts words in one batch. Existing (text, category) pairs get the new difficulty.
func (r *WordRepository) Seed(ctx context.Context, words []model.Word) error {
	if len(words) == 0 {
		return nil
	}
	const query = `
		INSERT INTO words (text, category, difficulty)
		VALUES ($1, $2, $3)
		ON CONFLICT (text, category) DO UPDATE SET difficulty = EXCLUDED.difficulty
	`
	batch := &pgx.Batch{}
	for _, w := range words {
		batch.Queue(query, w.Text, w.Category, w.Difficulty)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to seed words: %w", err)
	}
	return nil
}

type wordFile struct {
	Categories []struct {
		Name  string `yaml:"name"`
		Words []struct {
			Text       string `yaml:"text"`
			Difficulty int    `yaml:"difficulty"`
		} `yaml:"words"`
	} `yaml:"categories"`
}

// ParseWords reads a word bank document:
//
//	categories:
//	  - name: фрукты
//	    words:
//	      - { text: яблоко, difficulty: 1 }
func ParseWords(data []byte) ([]model.Word, error) {
	var f wordFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse word file: %w", err)
	}

	var out []model.Word
	for _, c := range f.Categories {
		category := strings.TrimSpace(c.Name)
		if category == "" {
			return nil, errors.New("word file: category without a name")
		}
		for _, w := range c.Words {
			text := strings.TrimSpace(w.Text)
			if text == "" {
				return nil, fmt.Errorf("word file: empty word in %s", category)
			}
			if w.Difficulty < 1 || w.Difficulty > 3 {
				return nil, fmt.Errorf("word file: %s/%s: difficulty %d out of 1..3", category, text, w.Difficulty)
			}
			out = append(out, model.Word{Text: text, Category: category, Difficulty: w.Difficulty})
		}
	}
	return out, nil
}

// LoadWords reads and parses a word bank file.
func LoadWords(path string) ([]model.Word, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read word file: %w", err)
	}
	return ParseWords(data)
}
