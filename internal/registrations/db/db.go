package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-cursos/internal/models"
)

// ErrNotFound is returned when a registration id does not resolve to a
// stored row.
var ErrNotFound = errors.New("not found")

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateRegistration(ctx context.Context, reg *models.Registration) error {
	_, err := d.Bun.NewInsert().Model(reg).Exec(ctx)
	return err
}

func (d *DB) GetRegistrationByID(ctx context.Context, id string) (*models.Registration, error) {
	var reg models.Registration
	err := d.Bun.NewSelect().
		Model(&reg).
		Where("registration_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (d *DB) DeleteRegistration(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Registration)(nil)).
		Where("registration_id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) ListByPayment(ctx context.Context, paymentID string) ([]models.Registration, error) {
	var regs []models.Registration
	err := d.Bun.NewSelect().
		Model(&regs).
		Where("payment_id = ?", paymentID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return regs, nil
}

func (d *DB) CountByPayment(ctx context.Context, paymentID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Registration)(nil)).
		Where("payment_id = ?", paymentID).
		Count(ctx)
}

func (d *DB) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	err := d.Bun.NewSelect().
		Model(&payment).
		Where("payment_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
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
