package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/starford/tally/internal/models"
)

const (
	statsWindowDays = 30
	topGroupLimit   = 10
	topCardLimit    = 5
)

// Stats computes the dashboard aggregates.
func (db *DB) Stats(ctx context.Context) (models.Stats, error) {
	var s models.Stats

	err := db.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM cards),
			(SELECT COUNT(*) FROM votes),
			(SELECT COUNT(*) FROM disputes),
			(SELECT COALESCE(SUM(likes), 0) FROM cards),
			(SELECT COALESCE(SUM(dislikes), 0) FROM cards)
	`).Scan(&s.Overview.TotalCards, &s.Overview.TotalVotes, &s.Overview.TotalDisputes,
		&s.Overview.TotalLikes, &s.Overview.TotalDislikes)
	if err != nil {
		return models.Stats{}, fmt.Errorf("pgstore: stats overview: %w", err)
	}

	s.CardsByType = []models.TypeCount{}
	err = collect(ctx, db.pool, `SELECT type, COUNT(*) FROM cards GROUP BY type ORDER BY type`, nil,
		func(rows pgx.Rows) error {
			var tc models.TypeCount
			if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
				return err
			}
			s.CardsByType = append(s.CardsByType, tc)
			return nil
		})
	if err != nil {
		return models.Stats{}, err
	}

	if s.CardsBySide, err = sideCounts(ctx, db.pool, ""); err != nil {
		return models.Stats{}, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -statsWindowDays)
	s.CardsOverTime = []models.DateCount{}
	err = collect(ctx, db.pool, `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*)
		FROM cards
		WHERE created_at >= $1
		GROUP BY day
		ORDER BY day
	`, []any{cutoff}, func(rows pgx.Rows) error {
		var dc models.DateCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return err
		}
		s.CardsOverTime = append(s.CardsOverTime, dc)
		return nil
	})
	if err != nil {
		return models.Stats{}, err
	}

	if s.Organizations, err = sectionStats(ctx, db.pool, models.TypeOrganization); err != nil {
		return models.Stats{}, err
	}
	if s.People, err = sectionStats(ctx, db.pool, models.TypePerson); err != nil {
		return models.Stats{}, err
	}
	return s, nil
}

func sectionStats(ctx context.Context, q querier, cardType string) (models.SectionStats, error) {
	var (
		sec models.SectionStats
		err error
	)
	if err = q.QueryRow(ctx, `SELECT COUNT(*) FROM cards WHERE type = $1`, cardType).Scan(&sec.Total); err != nil {
		return sec, fmt.Errorf("pgstore: section total: %w", err)
	}
	if sec.BySide, err = sideCounts(ctx, q, cardType); err != nil {
		return sec, err
	}

	sec.TopIndustries = []models.IndustryCount{}
	err = collect(ctx, q, `
		SELECT industry, COUNT(*) AS n FROM cards
		WHERE type = $1 AND industry IS NOT NULL AND industry <> ''
		GROUP BY industry ORDER BY n DESC, industry LIMIT $2
	`, []any{cardType, topGroupLimit}, func(rows pgx.Rows) error {
		var ic models.IndustryCount
		if err := rows.Scan(&ic.Industry, &ic.Count); err != nil {
			return err
		}
		sec.TopIndustries = append(sec.TopIndustries, ic)
		return nil
	})
	if err != nil {
		return sec, err
	}

	sec.TopCountries = []models.CountryCount{}
	err = collect(ctx, q, `
		SELECT country, COUNT(*) AS n FROM cards
		WHERE type = $1
		GROUP BY country ORDER BY n DESC, country LIMIT $2
	`, []any{cardType, topGroupLimit}, func(rows pgx.Rows) error {
		var cc models.CountryCount
		if err := rows.Scan(&cc.Country, &cc.Count); err != nil {
			return err
		}
		sec.TopCountries = append(sec.TopCountries, cc)
		return nil
	})
	if err != nil {
		return sec, err
	}

	if sec.MostLiked, err = rankedCards(ctx, q, cardType, "likes"); err != nil {
		return sec, err
	}
	if sec.MostDisliked, err = rankedCards(ctx, q, cardType, "dislikes"); err != nil {
		return sec, err
	}
	return sec, nil
}

func sideCounts(ctx context.Context, q querier, cardType string) ([]models.SideCount, error) {
	query := `SELECT side, COUNT(*) FROM cards GROUP BY side ORDER BY side`
	var args []any
	if cardType != "" {
		query = `SELECT side, COUNT(*) FROM cards WHERE type = $1 GROUP BY side ORDER BY side`
		args = []any{cardType}
	}
	out := []models.SideCount{}
	err := collect(ctx, q, query, args, func(rows pgx.Rows) error {
		var sc models.SideCount
		if err := rows.Scan(&sc.Side, &sc.Count); err != nil {
			return err
		}
		out = append(out, sc)
		return nil
	})
	return out, err
}

// rankedCards lists the top cards of cardType by column, which must be
// "likes" or "dislikes".
func rankedCards(ctx context.Context, q querier, cardType, column string) ([]models.RankedCard, error) {
	out := []models.RankedCard{}
	query := `SELECT id, name, ` + column + `, industry FROM cards
		WHERE type = $1 AND ` + column + ` > 0
		ORDER BY ` + column + ` DESC, id LIMIT $2`
	err := collect(ctx, q, query, []any{cardType, topCardLimit}, func(rows pgx.Rows) error {
		var rc models.RankedCard
		if err := rows.Scan(&rc.ID, &rc.Name, &rc.Count, &rc.Industry); err != nil {
			return err
		}
		out = append(out, rc)
		return nil
	})
	return out, err
}

func collect(ctx context.Context, q querier, query string, args []any, scan func(pgx.Rows) error) error {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("pgstore: stats query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("pgstore: stats scan: %w", err)
		}
	}
	return rows.Err()
}
