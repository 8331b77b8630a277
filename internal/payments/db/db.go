package db

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/uptrace/bun"

	"ms-cursos/internal/models"
)

// ErrNotFound is returned when a payment id does not resolve to a stored row.
var ErrNotFound = errors.New("not found")

type DB struct {
	Bun *bun.DB
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

func (d *DB) CreatePayment(ctx context.Context, payment *models.Payment) error {
	_, err := d.Bun.NewInsert().Model(payment).Exec(ctx)
	return err
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

// UpdatePayment persists the editable payment fields. The charged and sent
// columns are excluded on purpose: charged moves only through MarkCharged and
// sent only through ClaimReceiptSend, so a writer holding a stale struct can
// never roll either flag back.
func (d *DB) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	_, err := d.Bun.NewUpdate().
		Model(payment).
		Column("name", "email", "phone", "country", "quantity",
			"method", "error", "ip", "user_agent", "intent_id").
		Where("payment_id = ?", payment.PaymentID).
		Exec(ctx)
	return err
}

// MarkCharged flips the charged flag and clears any recorded provider error.
func (d *DB) MarkCharged(ctx context.Context, paymentID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Payment)(nil)).
		Set("charged = TRUE").
		Set("error = ''").
		Where("payment_id = ?", paymentID).
		Exec(ctx)
	return err
}

func (d *DB) ListByStatus(ctx context.Context, courseID string, charged bool) ([]models.Payment, error) {
	var payments []models.Payment
	err := d.Bun.NewSelect().
		Model(&payments).
		Where("course_id = ?", courseID).
		Where("charged = ?", charged).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (d *DB) ListByMethod(ctx context.Context, courseID string, method models.PaymentMethod, chargedOnly bool) ([]models.Payment, error) {
	var payments []models.Payment
	q := d.Bun.NewSelect().
		Model(&payments).
		Where("course_id = ?", courseID).
		Where("method = ?", method).
		Order("created_at DESC")
	if chargedOnly {
		q = q.Where("charged = TRUE")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return payments, nil
}

func (d *DB) CountByStatus(ctx context.Context, courseID string, version int, charged bool) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Payment)(nil)).
		Where("course_id = ?", courseID).
		Where("version = ?", version).
		Where("charged = ?", charged).
		Count(ctx)
}

func (d *DB) CountByMethod(ctx context.Context, courseID string, method models.PaymentMethod, chargedOnly bool) (int, error) {
	q := d.Bun.NewSelect().
		Model((*models.Payment)(nil)).
		Where("course_id = ?", courseID).
		Where("method = ?", method)
	if chargedOnly {
		q = q.Where("charged = TRUE")
	}
	return q.Count(ctx)
}

// MethodTotals counts payments per method across every course, for the
// overview dashboard.
func (d *DB) MethodTotals(ctx context.Context, chargedOnly bool) (map[models.PaymentMethod]int, error) {
	totals := map[models.PaymentMethod]int{
		models.MethodCard:    0,
		models.MethodPaypal:  0,
		models.MethodDeposit: 0,
	}
	q := "SELECT method, COUNT(*) FROM payments GROUP BY method"
	if chargedOnly {
		q = "SELECT method, COUNT(*) FROM payments WHERE charged GROUP BY method"
	}
	rows, err := d.Bun.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var method models.PaymentMethod
		var count int
		if err := rows.Scan(&method, &count); err != nil {
			return nil, err
		}
		totals[method] = count
	}
	return totals, rows.Err()
}

// AttemptCount counts every payment row recorded for the course version,
// charged or not.
func (d *DB) AttemptCount(ctx context.Context, courseID string, version int) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Payment)(nil)).
		Where("course_id = ?", courseID).
		Where("version = ?", version).
		Count(ctx)
}

// AttemptCountByEmail counts repeated submissions by one buyer for the course
// with the given method. Informational only; no limit hangs off it.
func (d *DB) AttemptCountByEmail(ctx context.Context, courseID, email string, method models.PaymentMethod) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Payment)(nil)).
		Where("course_id = ?", courseID).
		Where("email = ?", email).
		Where("method = ?", method).
		Count(ctx)
}

// TotalUnitsSold sums the seat quantity across charged payments for the
// course version. Returns 0 when no rows match.
func (d *DB) TotalUnitsSold(ctx context.Context, courseID string, version int) (int, error) {
	var total int
	err := d.Bun.NewRaw(
		"SELECT COALESCE(SUM(quantity), 0) FROM payments WHERE course_id = ? AND version = ? AND charged",
		courseID, version).
		Scan(ctx, &total)
	return total, err
}

// RegistrationCount counts redeemed seats for the course version through the
// payment join.
func (d *DB) RegistrationCount(ctx context.Context, courseID string, version int) (int, error) {
	var count int
	err := d.Bun.NewRaw(
		`SELECT COUNT(*) FROM registrations r
		 JOIN payments p ON p.payment_id = r.payment_id
		 WHERE p.course_id = ? AND p.version = ?`,
		courseID, version).
		Scan(ctx, &count)
	return count, err
}

// Shortfall is units sold minus seats redeemed for the course version. A
// negative value means more registrations than paid seats.
func (d *DB) Shortfall(ctx context.Context, courseID string, version int) (int, error) {
	sold, err := d.TotalUnitsSold(ctx, courseID, version)
	if err != nil {
		return 0, err
	}
	redeemed, err := d.RegistrationCount(ctx, courseID, version)
	if err != nil {
		return 0, err
	}
	return sold - redeemed, nil
}

// Regions breaks down charged registrations for the course version by the
// payer's country, largest group first.
func (d *DB) Regions(ctx context.Context, courseID string, version int) ([]models.RegionCount, error) {
	var regions []models.RegionCount
	rows, err := d.Bun.QueryContext(ctx,
		`SELECT p.country, COUNT(*) AS count
		 FROM registrations r
		 JOIN payments p ON p.payment_id = r.payment_id
		 WHERE p.course_id = ? AND p.version = ? AND p.charged
		 GROUP BY p.country
		 ORDER BY count DESC, p.country ASC`,
		courseID, version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var rc models.RegionCount
		if err := rows.Scan(&rc.Country, &rc.Count); err != nil {
			return nil, err
		}
		regions = append(regions, rc)
	}
	return regions, rows.Err()
}

// Timeline buckets charged payments for the course version per calendar day,
// oldest first. Grouping happens here rather than in SQL so the labels come
// out identical on every dialect.
func (d *DB) Timeline(ctx context.Context, courseID string, version int) ([]models.TimelinePoint, error) {
	var stamps []time.Time
	err := d.Bun.NewSelect().
		Model((*models.Payment)(nil)).
		Column("created_at").
		Where("course_id = ?", courseID).
		Where("version = ?", version).
		Where("charged = TRUE").
		Scan(ctx, &stamps)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	days := make(map[string]time.Time)
	for _, ts := range stamps {
		day := ts.UTC().Truncate(24 * time.Hour)
		key := day.Format("2006-01-02")
		counts[key]++
		days[key] = day
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	points := make([]models.TimelinePoint, 0, len(keys))
	for _, k := range keys {
		points = append(points, models.TimelinePoint{
			Label: days[k].Format("Jan/02"),
			Count: counts[k],
		})
	}
	return points, nil
}

// ClaimReceiptSend flips sent for a charged, unsent payment. It reports true
// only for the caller that actually flipped the flag, so concurrent saves
// cannot both win the receipt email.
func (d *DB) ClaimReceiptSend(ctx context.Context, paymentID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Payment)(nil)).
		Set("sent = TRUE").
		Where("payment_id = ?", paymentID).
		Where("charged = TRUE").
		Where("sent = FALSE").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
