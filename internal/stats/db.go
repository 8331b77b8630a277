package stats

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-cursos/internal/models"
)

var ErrNotFound = errors.New("not found")

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetCourseBySlug(ctx context.Context, slug string) (*models.Course, error) {
	var course models.Course
	err := d.Bun.NewSelect().
		Model(&course).
		Where("slug = ?", slug).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (d *DB) ListCourses(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	err := d.Bun.NewSelect().
		Model(&courses).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return courses, nil
}

// EmailSummaries collapses the payment attempts for a course version down to
// one row per email. The representative row is the most favorable attempt:
// a charged one if any exists, otherwise the earliest. Rows come back ordered
// by each buyer's earliest attempt, which may predate the representative row.
func (d *DB) EmailSummaries(ctx context.Context, courseID string, version int) ([]EmailSummary, error) {
	rows, err := d.Bun.QueryContext(ctx,
		`SELECT email, name, country, method, quantity, charged, attempts, first_seen FROM (
			SELECT email, name, country, method, quantity, charged,
				ROW_NUMBER() OVER (PARTITION BY email ORDER BY charged DESC, created_at ASC) AS rn,
				COUNT(*) OVER (PARTITION BY email) AS attempts,
				MIN(created_at) OVER (PARTITION BY email) AS first_seen
			FROM payments
			WHERE course_id = ? AND version = ?
		) ranked
		WHERE rn = 1
		ORDER BY first_seen ASC`,
		courseID, version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []EmailSummary
	for rows.Next() {
		var s EmailSummary
		var firstSeen time.Time
		if err := rows.Scan(&s.Email, &s.Name, &s.Country, &s.Method, &s.Quantity, &s.Charged, &s.Attempts, &firstSeen); err != nil {
			return nil, err
		}
		s.FirstSeen = firstSeen
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
