package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/models"
)

const cardColumns = `id, name, type, industry, country, side, description, links, image_url, likes, dislikes, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (models.Card, error) {
	var (
		c        models.Card
		industry sql.NullString
		imageURL sql.NullString
		links    string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Type, &industry, &c.Country, &c.Side,
		&c.Description, &links, &imageURL, &c.Likes, &c.Dislikes, &c.CreatedAt); err != nil {
		return models.Card{}, err
	}
	if industry.Valid {
		c.Industry = &industry.String
	}
	if imageURL.Valid {
		c.ImageURL = &imageURL.String
	}
	if err := json.Unmarshal([]byte(links), &c.Links); err != nil {
		return models.Card{}, fmt.Errorf("sqlstore: decode links: %w", err)
	}
	if c.Links == nil {
		c.Links = []string{}
	}
	return c, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// CreateCard inserts a new card with zero counters.
func (db *DB) CreateCard(ctx context.Context, c models.NewCard) (models.Card, error) {
	linksJSON, _ := json.Marshal(c.Links)
	var id int64
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO cards (name, type, industry, country, side, description, links, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`, c.Name, c.Type, nullable(c.Industry), c.Country, c.Side, c.Description,
		string(linksJSON), nullable(c.ImageURL), time.Now().UTC()).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Card{}, fmt.Errorf("sqlstore: card %q: %w", c.Name, apperr.ErrAlreadyExists)
		}
		return models.Card{}, fmt.Errorf("sqlstore: insert card: %w", err)
	}
	return db.GetCard(ctx, id)
}

// UpsertCardByName inserts c or replaces the descriptive fields of the card
// with the same name. Counters are left untouched.
func (db *DB) UpsertCardByName(ctx context.Context, c models.NewCard) (models.Card, error) {
	linksJSON, _ := json.Marshal(c.Links)
	var id int64
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO cards (name, type, industry, country, side, description, links, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			type        = excluded.type,
			industry    = excluded.industry,
			country     = excluded.country,
			side        = excluded.side,
			description = excluded.description,
			links       = excluded.links,
			image_url   = excluded.image_url
		RETURNING id
	`, c.Name, c.Type, nullable(c.Industry), c.Country, c.Side, c.Description,
		string(linksJSON), nullable(c.ImageURL), time.Now().UTC()).Scan(&id)
	if err != nil {
		return models.Card{}, fmt.Errorf("sqlstore: upsert card: %w", err)
	}
	return db.GetCard(ctx, id)
}

// GetCard returns the card with id or apperr.ErrNotFound.
func (db *DB) GetCard(ctx context.Context, id int64) (models.Card, error) {
	return getCard(ctx, db.conn, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getCard(ctx context.Context, q queryer, id int64) (models.Card, error) {
	c, err := scanCard(q.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Card{}, fmt.Errorf("sqlstore: card %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Card{}, fmt.Errorf("sqlstore: get card: %w", err)
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
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.Side != "" {
		where = append(where, "side = ?")
		args = append(args, f.Side)
	}
	query := `SELECT ` + cardColumns + ` FROM cards`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list cards: %w", err)
	}
	defer rows.Close()

	var out []models.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scan card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
