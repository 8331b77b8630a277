package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-cursos/internal/models"
)

// ErrNotFound is returned when a slug or id does not resolve to a stored
// row. The API layer maps it to a 404.
var ErrNotFound = errors.New("not found")

type DB struct {
	Bun *bun.DB
}

// ---------------- COURSES ----------------

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

func (d *DB) GetCourseByID(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	err := d.Bun.NewSelect().
		Model(&course).
		Where("course_id = ?", id).
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

func (d *DB) CreateCourse(ctx context.Context, course *models.Course) error {
	_, err := d.Bun.NewInsert().Model(course).Exec(ctx)
	return err
}

func (d *DB) UpdateCourse(ctx context.Context, course *models.Course) error {
	_, err := d.Bun.NewUpdate().
		Model(course).
		Column("name", "slug", "price", "country", "address", "map_ref",
			"image", "description", "payment_info", "active", "version", "mailing_list").
		Where("course_id = ?", course.CourseID).
		Exec(ctx)
	return err
}

// DeleteCourse removes the course together with its days, payments and the
// registrations hanging off those payments. Instructor rows survive; only
// the join rows go.
func (d *DB) DeleteCourse(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.Registration)(nil)).
			Where("payment_id IN (SELECT payment_id FROM payments WHERE course_id = ?)", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete registrations: %w", err)
		}
		if _, err := tx.NewDelete().
			Model((*models.Payment)(nil)).
			Where("course_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete payments: %w", err)
		}
		if _, err := tx.NewDelete().
			Model((*models.CourseDay)(nil)).
			Where("course_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete course days: %w", err)
		}
		if _, err := tx.NewDelete().
			Model((*models.CourseInstructor)(nil)).
			Where("course_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete instructor links: %w", err)
		}
		if _, err := tx.NewDelete().
			Model((*models.Course)(nil)).
			Where("course_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete course: %w", err)
		}
		return nil
	})
}

// BumpVersion increments the course version counter, starting a new
// registration cycle. Returns the new version.
func (d *DB) BumpVersion(ctx context.Context, id string) (int, error) {
	var version int
	err := d.Bun.NewRaw(
		"UPDATE courses SET version = version + 1 WHERE course_id = ? RETURNING version", id).
		Scan(ctx, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

// ---------------- COURSE DAYS ----------------

func (d *DB) ListDays(ctx context.Context, courseID string) ([]models.CourseDay, error) {
	var days []models.CourseDay
	err := d.Bun.NewSelect().
		Model(&days).
		Where("course_id = ?", courseID).
		Order("date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return days, nil
}

func (d *DB) CreateDay(ctx context.Context, day *models.CourseDay) error {
	_, err := d.Bun.NewInsert().Model(day).Exec(ctx)
	return err
}

func (d *DB) UpdateDay(ctx context.Context, day *models.CourseDay) error {
	_, err := d.Bun.NewUpdate().
		Model(day).
		Column("date", "topic", "agenda").
		Where("day_id = ?", day.DayID).
		Exec(ctx)
	return err
}

func (d *DB) DeleteDay(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.CourseDay)(nil)).
		Where("day_id = ?", id).
		Exec(ctx)
	return err
}

// ---------------- INSTRUCTORS ----------------

func (d *DB) ListInstructors(ctx context.Context, courseID string) ([]models.Instructor, error) {
	var instructors []models.Instructor
	err := d.Bun.NewSelect().
		Model(&instructors).
		Join("JOIN course_instructors ci ON ci.instructor_id = instructor.instructor_id").
		Where("ci.course_id = ?", courseID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return instructors, nil
}

func (d *DB) GetInstructorByID(ctx context.Context, id string) (*models.Instructor, error) {
	var instructor models.Instructor
	err := d.Bun.NewSelect().
		Model(&instructor).
		Where("instructor_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &instructor, nil
}

func (d *DB) CreateInstructor(ctx context.Context, instructor *models.Instructor) error {
	_, err := d.Bun.NewInsert().Model(instructor).Exec(ctx)
	return err
}

func (d *DB) UpdateInstructor(ctx context.Context, instructor *models.Instructor) error {
	_, err := d.Bun.NewUpdate().
		Model(instructor).
		Column("name", "twitter", "bio", "image").
		Where("instructor_id = ?", instructor.InstructorID).
		Exec(ctx)
	return err
}

func (d *DB) AssignInstructor(ctx context.Context, courseID, instructorID string) error {
	link := models.CourseInstructor{CourseID: courseID, InstructorID: instructorID}
	_, err := d.Bun.NewInsert().Model(&link).Exec(ctx)
	return err
}

func (d *DB) UnassignInstructor(ctx context.Context, courseID, instructorID string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.CourseInstructor)(nil)).
		Where("course_id = ? AND instructor_id = ?", courseID, instructorID).
		Exec(ctx)
	return err
}

// ---------------- DERIVED ----------------

// CountDistinctVersions counts distinct payment versions recorded for the
// course.
func (d *DB) CountDistinctVersions(ctx context.Context, courseID string) (int, error) {
	var count int
	err := d.Bun.NewRaw(
		"SELECT COUNT(DISTINCT version) FROM payments WHERE course_id = ?", courseID).
		Scan(ctx, &count)
	return count, err
}
