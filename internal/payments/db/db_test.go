package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-cursos/internal/models"
	"ms-cursos/internal/payments/db"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	for _, model := range []interface{}{
		(*models.Course)(nil),
		(*models.Payment)(nil),
		(*models.Registration)(nil),
	} {
		_, err = bunDB.NewCreateTable().Model(model).Exec(context.Background())
		if err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func insertPayment(t *testing.T, bunDB *bun.DB, p models.Payment) models.Payment {
	if p.PaymentID == "" {
		p.PaymentID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Quantity == 0 {
		p.Quantity = 1
	}
	if p.Method == "" {
		p.Method = models.MethodCard
	}
	if p.Version == 0 {
		p.Version = 1
	}
	_, err := bunDB.NewInsert().Model(&p).Exec(context.Background())
	assert.NoError(t, err)
	return p
}

func TestGetPaymentByID(t *testing.T) {
	paymentDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	payment := insertPayment(t, bunDB, models.Payment{
		CourseID: "curso1",
		Name:     "Carlos",
		Email:    "carlos@example.com",
	})

	found, err := paymentDB.GetPaymentByID(context.Background(), payment.PaymentID)
	assert.NoError(t, err)
	assert.Equal(t, payment.PaymentID, found.PaymentID)
	assert.Equal(t, "carlos@example.com", found.Email)

	_, err = paymentDB.GetPaymentByID(context.Background(), "non-existent")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestTotalUnitsSold(t *testing.T) {
	paymentDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	total, err := paymentDB.TotalUnitsSold(context.Background(), "curso1", 1)
	assert.NoError(t, err)
	assert.Equal(t, 0, total)

	insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "a", Email: "a@x.com", Quantity: 2, Charged: true})
	insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "b", Email: "b@x.com", Quantity: 3, Charged: true})
	// Uncharged and other-version rows must not count.
	insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "c", Email: "c@x.com", Quantity: 4, Charged: false})
	insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "d", Email: "d@x.com", Quantity: 7, Charged: true, Version: 2})

	total, err = paymentDB.TotalUnitsSold(context.Background(), "curso1", 1)
	assert.NoError(t, err)
	assert.Equal(t, 5, total)
}

func TestShortfall(t *testing.T) {
	paymentDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	paid := insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "a", Email: "a@x.com", Quantity: 5, Charged: true})

	for i := 0; i < 3; i++ {
		reg := models.Registration{
			RegistrationID: uuid.NewString(),
			PaymentID:      paid.PaymentID,
			Email:          "a@x.com",
		}
		_, err := bunDB.NewInsert().Model(&reg).Exec(context.Background())
		assert.NoError(t, err)
	}

	shortfall, err := paymentDB.Shortfall(context.Background(), "curso1", 1)
	assert.NoError(t, err)
	assert.Equal(t, 2, shortfall)
}

func TestRegions(t *testing.T) {
	paymentDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	register := func(p models.Payment) {
		reg := models.Registration{
			RegistrationID: uuid.NewString(),
			PaymentID:      p.PaymentID,
			Email:          p.Email,
		}
		_, err := bunDB.NewInsert().Model(&reg).Exec(context.Background())
		assert.NoError(t, err)
	}

	register(insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "a", Email: "a@x.com", Country: "CL", Charged: true}))
	register(insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "b", Email: "b@x.com", Country: "CL", Charged: true}))
	register(insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "c", Email: "c@x.com", Country: "AR", Charged: true}))
	// Uncharged payments contribute no region rows even when registered.
	register(insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "d", Email: "d@x.com", Country: "PE", Charged: false}))

	regions, err := paymentDB.Regions(context.Background(), "curso1", 1)
	assert.NoError(t, err)
	assert.Len(t, regions, 2)
	assert.Equal(t, models.RegionCount{Country: "CL", Count: 2}, regions[0])
	assert.Equal(t, models.RegionCount{Country: "AR", Count: 1}, regions[1])

	total := 0
	for _, r := range regions {
		total += r.Count
	}
	assert.Equal(t, 3, total)
}

func TestTimeline(t *testing.T) {
	paymentDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	day1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 4, 18, 30, 0, 0, time.UTC)

	insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "a", Email: "a@x.com", Charged: true, CreatedAt: day1})
	insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "b", Email: "b@x.com", Charged: true, CreatedAt: day1.Add(2 * time.Hour)})
	insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "c", Email: "c@x.com", Charged: true, CreatedAt: day2})
	insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "d", Email: "d@x.com", Charged: false, CreatedAt: day2})

	points, err := paymentDB.Timeline(context.Background(), "curso1", 1)
	assert.NoError(t, err)
	assert.Len(t, points, 2)
	assert.Equal(t, models.TimelinePoint{Label: "Mar/01", Count: 2}, points[0])
	assert.Equal(t, models.TimelinePoint{Label: "Mar/04", Count: 1}, points[1])
}

func TestAttemptCount(t *testing.T) {
	paymentDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "a", Email: "a@x.com", Charged: true})
	insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "a", Email: "a@x.com", Charged: false})
	insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "b", Email: "b@x.com", Charged: false, Version: 2})

	count, err := paymentDB.AttemptCount(context.Background(), "curso1", 1)
	assert.NoError(t, err)
	assert.Equal(t, 2, count)

	byEmail, err := paymentDB.AttemptCountByEmail(context.Background(), "curso1", "a@x.com", models.MethodCard)
	assert.NoError(t, err)
	assert.Equal(t, 2, byEmail)

	byEmail, err = paymentDB.AttemptCountByEmail(context.Background(), "curso1", "a@x.com", models.MethodDeposit)
	assert.NoError(t, err)
	assert.Equal(t, 0, byEmail)
}

func TestClaimReceiptSend(t *testing.T) {
	paymentDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	charged := insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "a", Email: "a@x.com", Charged: true})
	pending := insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "b", Email: "b@x.com", Charged: false})

	claimed, err := paymentDB.ClaimReceiptSend(context.Background(), charged.PaymentID)
	assert.NoError(t, err)
	assert.True(t, claimed)

	// A second claim on the same payment must lose.
	claimed, err = paymentDB.ClaimReceiptSend(context.Background(), charged.PaymentID)
	assert.NoError(t, err)
	assert.False(t, claimed)

	// Uncharged payments can never be claimed.
	claimed, err = paymentDB.ClaimReceiptSend(context.Background(), pending.PaymentID)
	assert.NoError(t, err)
	assert.False(t, claimed)

	stored, err := paymentDB.GetPaymentByID(context.Background(), charged.PaymentID)
	assert.NoError(t, err)
	assert.True(t, stored.Sent)
}

func TestCountByMethod(t *testing.T) {
	paymentDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "a", Email: "a@x.com", Method: models.MethodCard, Charged: true})
	insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "b", Email: "b@x.com", Method: models.MethodCard, Charged: false})
	insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "c", Email: "c@x.com", Method: models.MethodDeposit, Charged: true})
	insertPayment(t, bunDB, models.Payment{CourseID: "curso2", Name: "d", Email: "d@x.com", Method: models.MethodCard, Charged: true})

	count, err := paymentDB.CountByMethod(context.Background(), "curso1", models.MethodCard, true)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = paymentDB.CountByMethod(context.Background(), "curso1", models.MethodCard, false)
	assert.NoError(t, err)
	assert.Equal(t, 2, count)

	totals, err := paymentDB.MethodTotals(context.Background(), true)
	assert.NoError(t, err)
	assert.Equal(t, 2, totals[models.MethodCard])
	assert.Equal(t, 1, totals[models.MethodDeposit])
	assert.Equal(t, 0, totals[models.MethodPaypal])
}

func TestListByStatusAndMethod(t *testing.T) {
	paymentDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	charged := insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "a", Email: "a@x.com", Method: models.MethodCard, Charged: true})
	pending := insertPayment(t, bunDB, models.Payment{CourseID: "curso1", Name: "b", Email: "b@x.com", Method: models.MethodPaypal, Charged: false})
	insertPayment(t, bunDB, models.Payment{CourseID: "curso2", Name: "c", Email: "c@x.com", Method: models.MethodCard, Charged: true})

	byStatus, err := paymentDB.ListByStatus(context.Background(), "curso1", true)
	assert.NoError(t, err)
	assert.Len(t, byStatus, 1)
	assert.Equal(t, charged.PaymentID, byStatus[0].PaymentID)

	byStatus, err = paymentDB.ListByStatus(context.Background(), "curso1", false)
	assert.NoError(t, err)
	assert.Len(t, byStatus, 1)
	assert.Equal(t, pending.PaymentID, byStatus[0].PaymentID)

	byMethod, err := paymentDB.ListByMethod(context.Background(), "curso1", models.MethodPaypal, false)
	assert.NoError(t, err)
	assert.Len(t, byMethod, 1)
	assert.Equal(t, pending.PaymentID, byMethod[0].PaymentID)

	// The charged filter hides the pending paypal row.
	byMethod, err = paymentDB.ListByMethod(context.Background(), "curso1", models.MethodPaypal, true)
	assert.NoError(t, err)
	assert.Empty(t, byMethod)
}
