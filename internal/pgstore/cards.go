package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/models"
)

const cardColumns = `id, name, type, industry, country, side, description, links, image_url, likes, dislikes, created_at`

func scanCard(row pgx.Row) (models.Card, error) {
	var c models.Card
	if err := row.Scan(&c.ID, &c.Name, &c.Type, &c.Industry, &c.Country, &c.Side,
		&c.Description, &c.Links, &c.ImageURL, &c.Likes, &c.Dislikes, &c.CreatedAt); err != nil {
		return models.Card{}, err
	}
	if c.Links == nil {
		c.Links = []string{}
	}
	return c, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func links(l []string) []string {
	if l == nil {
		return []string{}
	}
	return l
}

// CreateCard inserts a new card with zero counters.
func (db *DB) CreateCard(ctx context.Context, c models.NewCard) (models.Card, error) {
	card, err := scanCard(db.pool.QueryRow(ctx, `
		INSERT INTO cards (name, type, industry, country, side, description, links, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+cardColumns,
		c.Name, c.Type, optional(c.Industry), c.Country, c.Side, c.Description, links(c.Links), optional(c.ImageURL)))
	if err != nil {
		if isUniqueViolation(err) {
			return models.Card{}, fmt.Errorf("pgstore: card %q: %w", c.Name, apperr.ErrAlreadyExists)
		}
		return models.Card{}, fmt.Errorf("pgstore: insert card: %w", err)
	}
	return card, nil
}

// UpsertCardByName inserts c or replaces the descriptive fields of the card
// with the same name. Counters are left untouched.
func (db *DB) UpsertCardByName(ctx context.Context, c models.NewCard) (models.Card, error) {
	card, err := scanCard(db.pool.QueryRow(ctx, `
		INSERT INTO cards (name, type, industry, country, side, description, links, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name) DO UPDATE SET
			type        = EXCLUDED.type,
			industry    = EXCLUDED.industry,
			country     = EXCLUDED.country,
			side        = EXCLUDED.side,
			description = EXCLUDED.description,
			links       = EXCLUDED.links,
			image_url   = EXCLUDED.image_url
		RETURNING `+cardColumns,
		c.Name, c.Type, optional(c.Industry), c.Country, c.Side, c.Description, links(c.Links), optional(c.ImageURL)))
	if err != nil {
		return models.Card{}, fmt.Errorf("pgstore: upsert card: %w", err)
	}
	return card, nil
}

// GetCard returns the card with id or apperr.ErrNotFound.
func (db *DB) GetCard(ctx context.Context, id int64) (models.Card, error) {
	return getCard(ctx, db.pool, id)
}

func getCard(ctx context.Context, q querier, id int64) (models.Card, error) {
	c, err := scanCard(q.QueryRow(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Card{}, fmt.Errorf("pgstore: card %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Card{}, fmt.Errorf("pgstore: get card: %w", err)
	}
	return c, nil
}

// ListCards returns cards newest first, optionally filtered by type and side.
func (db *DB) ListCards(ctx context.Context, f models.CardFilter) ([]models.Card, error) {
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		args = append(args, f.Type)
		where = append(where, "type = $"+strconv.Itoa(len(args)))
	}
	if f.Side != "" {
		args = append(args, f.Side)
		where = append(where, "side = $"+strconv.Itoa(len(args)))
	}
	query := `SELECT ` + cardColumns + ` FROM cards`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list cards: %w", err)
	}
	defer rows.Close()

	out := []models.Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("pgstore: scan card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
