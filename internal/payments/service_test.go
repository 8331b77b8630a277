package payments_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-cursos/internal/logger"
	"ms-cursos/internal/models"
	"ms-cursos/internal/notifier"
	"ms-cursos/internal/payments"
	payments_db "ms-cursos/internal/payments/db"
)

// Mock implementations
type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) CreatePayment(ctx context.Context, payment *models.Payment) error {
	args := m.Called(payment)
	return args.Error(0)
}

func (m *MockDBLayer) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockDBLayer) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	args := m.Called(payment)
	return args.Error(0)
}

func (m *MockDBLayer) MarkCharged(ctx context.Context, paymentID string) error {
	args := m.Called(paymentID)
	return args.Error(0)
}

func (m *MockDBLayer) ClaimReceiptSend(ctx context.Context, paymentID string) (bool, error) {
	args := m.Called(paymentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBLayer) GetCourseByID(ctx context.Context, id string) (*models.Course, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Course), args.Error(1)
}

func (m *MockDBLayer) GetCourseBySlug(ctx context.Context, slug string) (*models.Course, error) {
	args := m.Called(slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Course), args.Error(1)
}

// SpySender records every send instead of talking to SMTP.
type SpySender struct {
	Calls []SpyCall
}

type SpyCall struct {
	Template string
	To       string
	Data     map[string]interface{}
}

func (s *SpySender) Send(ctx context.Context, templateName string, data map[string]interface{}, subject, to string) error {
	s.Calls = append(s.Calls, SpyCall{Template: templateName, To: to, Data: data})
	return nil
}

func newTestService(db *MockDBLayer, sender *SpySender) *payments.Service {
	return payments.NewService(db, sender, notifier.NewFeeCalculator(), nil, logger.NewLogger())
}

func testCourse() *models.Course {
	return &models.Course{
		CourseID:    "curso1",
		Name:        "Curso de Go",
		Slug:        "curso-go",
		Price:       10000,
		Active:      true,
		Version:     3,
		PaymentInfo: "Cuenta 12345",
	}
}

func TestCreatePaymentStampsCourseVersion(t *testing.T) {
	mockDB := new(MockDBLayer)
	sender := &SpySender{}
	service := newTestService(mockDB, sender)

	mockDB.On("GetCourseBySlug", "curso-go").Return(testCourse(), nil)
	mockDB.On("CreatePayment", mock.AnythingOfType("*models.Payment")).Return(nil)

	payment, err := service.CreatePayment(context.Background(), models.PaymentRequest{
		CourseSlug: "curso-go",
		Name:       "Carlos",
		Email:      "carlos@example.com",
		Quantity:   2,
		Method:     models.MethodCard,
	}, "1.2.3.4", "test-agent")

	assert.NoError(t, err)
	assert.Equal(t, 3, payment.Version)
	assert.Equal(t, "curso1", payment.CourseID)
	assert.Equal(t, "1.2.3.4", payment.IP)
	assert.False(t, payment.Charged)
	assert.Empty(t, sender.Calls)
	mockDB.AssertExpectations(t)
}

func TestCreatePaymentRejectsInvalidMethod(t *testing.T) {
	mockDB := new(MockDBLayer)
	service := newTestService(mockDB, &SpySender{})

	_, err := service.CreatePayment(context.Background(), models.PaymentRequest{
		CourseSlug: "curso-go",
		Name:       "Carlos",
		Email:      "carlos@example.com",
		Method:     "bitcoin",
	}, "", "")

	assert.ErrorIs(t, err, payments.ErrInvalidMethod)
	mockDB.AssertNotCalled(t, "CreatePayment", mock.Anything)
}

func TestCreatePaymentRejectsInactiveCourse(t *testing.T) {
	mockDB := new(MockDBLayer)
	service := newTestService(mockDB, &SpySender{})

	course := testCourse()
	course.Active = false
	mockDB.On("GetCourseBySlug", "curso-go").Return(course, nil)

	_, err := service.CreatePayment(context.Background(), models.PaymentRequest{
		CourseSlug: "curso-go",
		Name:       "Carlos",
		Email:      "carlos@example.com",
		Method:     models.MethodCard,
	}, "", "")

	assert.ErrorIs(t, err, payments.ErrCourseInactive)
}

func TestCreateDepositPaymentSendsInstructions(t *testing.T) {
	mockDB := new(MockDBLayer)
	sender := &SpySender{}
	service := newTestService(mockDB, sender)

	mockDB.On("GetCourseBySlug", "curso-go").Return(testCourse(), nil)
	mockDB.On("CreatePayment", mock.AnythingOfType("*models.Payment")).Return(nil)

	_, err := service.CreatePayment(context.Background(), models.PaymentRequest{
		CourseSlug: "curso-go",
		Name:       "Carlos",
		Email:      "carlos@example.com",
		Method:     models.MethodDeposit,
	}, "", "")

	assert.NoError(t, err)
	assert.Len(t, sender.Calls, 1)
	assert.Equal(t, notifier.TemplateCourseInfo, sender.Calls[0].Template)
	assert.Equal(t, "carlos@example.com", sender.Calls[0].To)
}

func TestMarkChargedDeliversReceiptOnce(t *testing.T) {
	mockDB := new(MockDBLayer)
	sender := &SpySender{}
	service := newTestService(mockDB, sender)

	payment := &models.Payment{
		PaymentID: "pago1",
		CourseID:  "curso1",
		Name:      "Carlos",
		Email:     "carlos@example.com",
		Quantity:  2,
		Method:    models.MethodCard,
		Version:   3,
	}

	mockDB.On("GetPaymentByID", "pago1").Return(payment, nil)
	mockDB.On("MarkCharged", "pago1").Return(nil)
	mockDB.On("UpdatePayment", mock.AnythingOfType("*models.Payment")).Return(nil)
	mockDB.On("ClaimReceiptSend", "pago1").Return(true, nil).Once()
	mockDB.On("ClaimReceiptSend", "pago1").Return(false, nil)
	mockDB.On("GetCourseByID", "curso1").Return(testCourse(), nil)

	charged, err := service.MarkCharged(context.Background(), "pago1")
	assert.NoError(t, err)
	assert.True(t, charged.Charged)
	assert.True(t, charged.Sent)
	assert.Len(t, sender.Calls, 1)
	assert.Equal(t, notifier.TemplateCourseReceipt, sender.Calls[0].Template)

	// The breakdown reaches the template context already formatted.
	assert.Equal(t, "$200.00", sender.Calls[0].Data["subtotal"])

	// Re-running the charged path must not send a second receipt.
	charged.Sent = false
	err = service.SavePayment(context.Background(), charged)
	assert.NoError(t, err)
	assert.Len(t, sender.Calls, 1)
}

func TestSavePaymentSkipsReceiptWhenNotCharged(t *testing.T) {
	mockDB := new(MockDBLayer)
	sender := &SpySender{}
	service := newTestService(mockDB, sender)

	payment := &models.Payment{
		PaymentID: "pago1",
		CourseID:  "curso1",
		Email:     "carlos@example.com",
		Charged:   false,
	}

	mockDB.On("UpdatePayment", mock.AnythingOfType("*models.Payment")).Return(nil)

	err := service.SavePayment(context.Background(), payment)
	assert.NoError(t, err)
	assert.Empty(t, sender.Calls)
	mockDB.AssertNotCalled(t, "ClaimReceiptSend", mock.Anything)
}

func TestMarkChargedSurvivesReceiptFailure(t *testing.T) {
	mockDB := new(MockDBLayer)
	sender := &SpySender{}
	service := newTestService(mockDB, sender)

	payment := &models.Payment{
		PaymentID: "pago1",
		CourseID:  "curso1",
		Email:     "carlos@example.com",
		Quantity:  1,
		Method:    models.MethodCard,
	}

	mockDB.On("GetPaymentByID", "pago1").Return(payment, nil)
	mockDB.On("MarkCharged", "pago1").Return(nil)
	mockDB.On("ClaimReceiptSend", "pago1").Return(false, errors.New("database is locked"))

	// A broken receipt path must not surface as a charge failure.
	charged, err := service.MarkCharged(context.Background(), "pago1")
	assert.NoError(t, err)
	assert.True(t, charged.Charged)
	assert.Empty(t, sender.Calls)
}

// newSQLiteService wires the service to a real store so the sent flag's
// update semantics are exercised end to end, not through mocks.
func newSQLiteService(t *testing.T, sender *SpySender) (*payments.Service, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	for _, model := range []interface{}{
		(*models.Course)(nil),
		(*models.Payment)(nil),
	} {
		_, err = bunDB.NewCreateTable().Model(model).Exec(context.Background())
		if err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	service := payments.NewService(
		&payments_db.DB{Bun: bunDB},
		sender,
		notifier.NewFeeCalculator(),
		nil,
		logger.NewLogger(),
	)
	return service, bunDB
}

func TestStaleSaveCannotResendReceipt(t *testing.T) {
	sender := &SpySender{}
	service, bunDB := newSQLiteService(t, sender)
	defer bunDB.Close()

	course := models.Course{
		CourseID:  "curso1",
		Name:      "Curso de Go",
		Slug:      "curso-go",
		Price:     10000,
		Active:    true,
		Version:   1,
		CreatedAt: time.Now(),
	}
	_, err := bunDB.NewInsert().Model(&course).Exec(context.Background())
	assert.NoError(t, err)

	payment := models.Payment{
		PaymentID: uuid.NewString(),
		CourseID:  "curso1",
		Name:      "Carlos",
		Email:     "carlos@example.com",
		Quantity:  1,
		CreatedAt: time.Now(),
		Method:    models.MethodCard,
		Version:   1,
	}
	_, err = bunDB.NewInsert().Model(&payment).Exec(context.Background())
	assert.NoError(t, err)

	// A writer loads the row before the charge lands.
	stale, err := service.GetPayment(context.Background(), payment.PaymentID)
	assert.NoError(t, err)
	assert.False(t, stale.Sent)

	charged, err := service.MarkCharged(context.Background(), payment.PaymentID)
	assert.NoError(t, err)
	assert.True(t, charged.Sent)
	assert.Len(t, sender.Calls, 1)

	// Re-saving the stale view must not roll sent back or win a second
	// claim, even when the caller believes the payment is charged.
	stale.Charged = true
	err = service.SavePayment(context.Background(), stale)
	assert.NoError(t, err)
	assert.Len(t, sender.Calls, 1)

	stored, err := service.GetPayment(context.Background(), payment.PaymentID)
	assert.NoError(t, err)
	assert.True(t, stored.Sent)
	assert.True(t, stored.Charged)

	// A webhook retry replays the charge without a second receipt.
	_, err = service.MarkCharged(context.Background(), payment.PaymentID)
	assert.NoError(t, err)
	assert.Len(t, sender.Calls, 1)
}

func TestRecordFailureStoresError(t *testing.T) {
	mockDB := new(MockDBLayer)
	service := newTestService(mockDB, &SpySender{})

	payment := &models.Payment{PaymentID: "pago1", CourseID: "curso1", Email: "x@x.com"}
	mockDB.On("GetPaymentByID", "pago1").Return(payment, nil)
	mockDB.On("UpdatePayment", mock.AnythingOfType("*models.Payment")).Return(nil)

	err := service.RecordFailure(context.Background(), "pago1", "card declined")
	assert.NoError(t, err)
	assert.Equal(t, "card declined", payment.Error)
	assert.False(t, payment.Charged)
}
