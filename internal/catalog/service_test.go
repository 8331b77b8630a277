package catalog_test

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

	"ms-cursos/internal/catalog"
	"ms-cursos/internal/catalog/db"
	"ms-cursos/internal/logger"
	"ms-cursos/internal/models"
)

// spyResizer records enqueued resize jobs.
type spyResizer struct {
	jobs []string
}

func (s *spyResizer) Enqueue(path string, width, height int) {
	s.jobs = append(s.jobs, path)
}

func setupTestService(t *testing.T) (*catalog.Service, *spyResizer, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	for _, model := range []interface{}{
		(*models.Course)(nil),
		(*models.CourseDay)(nil),
		(*models.Instructor)(nil),
		(*models.CourseInstructor)(nil),
		(*models.Payment)(nil),
		(*models.Registration)(nil),
	} {
		_, err = bunDB.NewCreateTable().Model(model).Exec(context.Background())
		if err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	resizer := &spyResizer{}
	service := catalog.NewService(&db.DB{Bun: bunDB}, resizer, logger.NewLogger())
	return service, resizer, bunDB
}

func TestCreateCourseDefaults(t *testing.T) {
	service, resizer, bunDB := setupTestService(t)
	defer bunDB.Close()

	created, err := service.CreateCourse(context.Background(), models.Course{
		Name:  "Curso de Go",
		Slug:  "curso-go",
		Image: "uploads/curso-go.jpg",
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, created.CourseID)
	assert.Equal(t, 1, created.Version)

	// Fresh images go through the resize queue.
	assert.Equal(t, []string{"uploads/curso-go.jpg"}, resizer.jobs)

	found, err := service.GetCourse(context.Background(), "curso-go")
	assert.NoError(t, err)
	assert.Equal(t, created.CourseID, found.CourseID)
}

func TestGetCourseUnknownSlug(t *testing.T) {
	service, _, bunDB := setupTestService(t)
	defer bunDB.Close()

	_, err := service.GetCourse(context.Background(), "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestIsOnline(t *testing.T) {
	service, _, bunDB := setupTestService(t)
	defer bunDB.Close()

	assert.True(t, service.IsOnline(&models.Course{Country: "Online"}))
	assert.True(t, service.IsOnline(&models.Course{Country: "ONLINE"}))
	assert.False(t, service.IsOnline(&models.Course{Country: "MX"}))
}

func TestStartDate(t *testing.T) {
	service, _, bunDB := setupTestService(t)
	defer bunDB.Close()

	course, err := service.CreateCourse(context.Background(), models.Course{Name: "Curso", Slug: "curso"})
	assert.NoError(t, err)

	// No days scheduled yet.
	_, ok, err := service.StartDate(context.Background(), course.CourseID)
	assert.NoError(t, err)
	assert.False(t, ok)

	later := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	earlier := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	_, err = service.CreateDay(context.Background(), models.CourseDay{CourseID: course.CourseID, Date: later, Topic: "Cierre"})
	assert.NoError(t, err)
	_, err = service.CreateDay(context.Background(), models.CourseDay{CourseID: course.CourseID, Date: earlier, Topic: "Inicio"})
	assert.NoError(t, err)

	start, ok, err := service.StartDate(context.Background(), course.CourseID)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, start.Equal(earlier))
}

func TestBumpVersion(t *testing.T) {
	service, _, bunDB := setupTestService(t)
	defer bunDB.Close()

	course, err := service.CreateCourse(context.Background(), models.Course{Name: "Curso", Slug: "curso"})
	assert.NoError(t, err)

	version, err := service.BumpVersion(context.Background(), course.CourseID)
	assert.NoError(t, err)
	assert.Equal(t, 2, version)

	found, err := service.GetCourse(context.Background(), "curso")
	assert.NoError(t, err)
	assert.Equal(t, 2, found.Version)
}

func TestHasVersions(t *testing.T) {
	service, _, bunDB := setupTestService(t)
	defer bunDB.Close()

	course, err := service.CreateCourse(context.Background(), models.Course{Name: "Curso", Slug: "curso"})
	assert.NoError(t, err)

	insert := func(version int) {
		payment := models.Payment{
			PaymentID: uuid.NewString(),
			CourseID:  course.CourseID,
			Name:      "Alumno",
			Email:     "a@x.com",
			Quantity:  1,
			CreatedAt: time.Now(),
			Method:    models.MethodCard,
			Version:   version,
		}
		_, err := bunDB.NewInsert().Model(&payment).Exec(context.Background())
		assert.NoError(t, err)
	}

	insert(1)
	has, err := service.HasVersions(context.Background(), course.CourseID)
	assert.NoError(t, err)
	assert.False(t, has)

	insert(2)
	has, err = service.HasVersions(context.Background(), course.CourseID)
	assert.NoError(t, err)
	assert.True(t, has)
}

func TestUpdateCourseResizesOnlyFreshImages(t *testing.T) {
	service, resizer, bunDB := setupTestService(t)
	defer bunDB.Close()

	course, err := service.CreateCourse(context.Background(), models.Course{
		Name:  "Curso",
		Slug:  "curso",
		Image: "uploads/v1.jpg",
	})
	assert.NoError(t, err)
	assert.Len(t, resizer.jobs, 1)

	// Same image: no new resize.
	err = service.UpdateCourse(context.Background(), *course)
	assert.NoError(t, err)
	assert.Len(t, resizer.jobs, 1)

	course.Image = "uploads/v2.jpg"
	err = service.UpdateCourse(context.Background(), *course)
	assert.NoError(t, err)
	assert.Equal(t, "uploads/v2.jpg", resizer.jobs[1])
}

func TestDeleteCourseCascades(t *testing.T) {
	service, _, bunDB := setupTestService(t)
	defer bunDB.Close()

	course, err := service.CreateCourse(context.Background(), models.Course{Name: "Curso", Slug: "curso"})
	assert.NoError(t, err)

	payment := models.Payment{
		PaymentID: uuid.NewString(),
		CourseID:  course.CourseID,
		Name:      "Alumno",
		Email:     "a@x.com",
		Quantity:  1,
		CreatedAt: time.Now(),
		Method:    models.MethodCard,
		Version:   1,
	}
	_, err = bunDB.NewInsert().Model(&payment).Exec(context.Background())
	assert.NoError(t, err)

	reg := models.Registration{
		RegistrationID: uuid.NewString(),
		PaymentID:      payment.PaymentID,
		Email:          "a@x.com",
	}
	_, err = bunDB.NewInsert().Model(&reg).Exec(context.Background())
	assert.NoError(t, err)

	err = service.DeleteCourse(context.Background(), course.CourseID)
	assert.NoError(t, err)

	_, err = service.GetCourse(context.Background(), "curso")
	assert.ErrorIs(t, err, db.ErrNotFound)

	count, err := bunDB.NewSelect().Model((*models.Registration)(nil)).Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
}
