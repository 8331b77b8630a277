package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-cursos/internal/logger"
	"ms-cursos/internal/models"
)

type DBLayer interface {
	ListCourses(ctx context.Context) ([]models.Course, error)
	GetCourseByID(ctx context.Context, id string) (*models.Course, error)
	GetCourseBySlug(ctx context.Context, slug string) (*models.Course, error)
	CreateCourse(ctx context.Context, course *models.Course) error
	UpdateCourse(ctx context.Context, course *models.Course) error
	DeleteCourse(ctx context.Context, id string) error
	BumpVersion(ctx context.Context, id string) (int, error)
	ListDays(ctx context.Context, courseID string) ([]models.CourseDay, error)
	CreateDay(ctx context.Context, day *models.CourseDay) error
	UpdateDay(ctx context.Context, day *models.CourseDay) error
	DeleteDay(ctx context.Context, id string) error
	ListInstructors(ctx context.Context, courseID string) ([]models.Instructor, error)
	GetInstructorByID(ctx context.Context, id string) (*models.Instructor, error)
	CreateInstructor(ctx context.Context, instructor *models.Instructor) error
	UpdateInstructor(ctx context.Context, instructor *models.Instructor) error
	AssignInstructor(ctx context.Context, courseID, instructorID string) error
	UnassignInstructor(ctx context.Context, courseID, instructorID string) error
	CountDistinctVersions(ctx context.Context, courseID string) (int, error)
}

// ImageResizer receives resize jobs for freshly attached images. Resize
// outcome never affects the save.
type ImageResizer interface {
	Enqueue(path string, width, height int)
}

type Service struct {
	DB      DBLayer
	Resizer ImageResizer
	Logger  *logger.Logger
}

func NewService(db DBLayer, resizer ImageResizer, log *logger.Logger) *Service {
	return &Service{DB: db, Resizer: resizer, Logger: log}
}

func (s *Service) ListCourses(ctx context.Context) ([]models.Course, error) {
	return s.DB.ListCourses(ctx)
}

func (s *Service) GetCourse(ctx context.Context, slug string) (*models.Course, error) {
	return s.DB.GetCourseBySlug(ctx, slug)
}

func (s *Service) CreateCourse(ctx context.Context, course models.Course) (*models.Course, error) {
	if course.CourseID == "" {
		course.CourseID = uuid.NewString()
	}
	if course.Version == 0 {
		course.Version = 1
	}
	course.CreatedAt = time.Now()

	if err := s.DB.CreateCourse(ctx, &course); err != nil {
		return nil, fmt.Errorf("failed to create course: %w", err)
	}

	if course.Image != "" && s.Resizer != nil {
		s.Resizer.Enqueue(course.Image, models.CourseImageWidth, models.CourseImageHeight)
	}
	return &course, nil
}

func (s *Service) UpdateCourse(ctx context.Context, course models.Course) error {
	existing, err := s.DB.GetCourseByID(ctx, course.CourseID)
	if err != nil {
		return fmt.Errorf("course %s not found: %w", course.CourseID, err)
	}

	if err := s.DB.UpdateCourse(ctx, &course); err != nil {
		return fmt.Errorf("failed to update course: %w", err)
	}

	if course.Image != "" && course.Image != existing.Image && s.Resizer != nil {
		s.Resizer.Enqueue(course.Image, models.CourseImageWidth, models.CourseImageHeight)
	}
	return nil
}

func (s *Service) DeleteCourse(ctx context.Context, id string) error {
	if err := s.DB.DeleteCourse(ctx, id); err != nil {
		return err
	}
	s.Logger.LogDatabase("DELETE", "courses", fmt.Sprintf("Course %s removed with its payments and registrations", id))
	return nil
}

// BumpVersion starts a new registration cycle for the course.
func (s *Service) BumpVersion(ctx context.Context, id string) (int, error) {
	version, err := s.DB.BumpVersion(ctx, id)
	if err != nil {
		return 0, err
	}
	s.Logger.Info("CATALOG", fmt.Sprintf("Course %s rolled over to version %d", id, version))
	return version, nil
}

// IsOnline reports whether the course runs fully online, derived from the
// country field.
func (s *Service) IsOnline(course *models.Course) bool {
	return strings.EqualFold(course.Country, "online")
}

// StartDate returns the earliest scheduled day. ok is false when the course
// has no days yet.
func (s *Service) StartDate(ctx context.Context, courseID string) (time.Time, bool, error) {
	days, err := s.DB.ListDays(ctx, courseID)
	if err != nil {
		return time.Time{}, false, err
	}
	if len(days) == 0 {
		return time.Time{}, false, nil
	}
	return days[0].Date, true, nil
}

// HasVersions reports whether more than one distinct payment version exists
// for the course.
func (s *Service) HasVersions(ctx context.Context, courseID string) (bool, error) {
	count, err := s.DB.CountDistinctVersions(ctx, courseID)
	if err != nil {
		return false, err
	}
	return count > 1, nil
}

// MapLink builds a maps search URL from the course address.
func (s *Service) MapLink(course *models.Course) string {
	query := url.QueryEscape(fmt.Sprintf("%s, %s", course.Address, course.Country))
	return "https://maps.google.com/maps?q=" + query
}

// MapImage builds a static-map thumbnail URL around the stored marker ref.
func (s *Service) MapImage(course *models.Course) string {
	return fmt.Sprintf(
		"https://maps.googleapis.com/maps/api/staticmap?size=335x125&maptype=roadmap&markers=%s&zoom=17",
		url.QueryEscape(course.MapRef))
}

// ---------------- COURSE DAYS ----------------

func (s *Service) ListDays(ctx context.Context, courseID string) ([]models.CourseDay, error) {
	return s.DB.ListDays(ctx, courseID)
}

func (s *Service) CreateDay(ctx context.Context, day models.CourseDay) (*models.CourseDay, error) {
	if _, err := s.DB.GetCourseByID(ctx, day.CourseID); err != nil {
		return nil, fmt.Errorf("course %s not found: %w", day.CourseID, err)
	}
	if day.DayID == "" {
		day.DayID = uuid.NewString()
	}
	if err := s.DB.CreateDay(ctx, &day); err != nil {
		return nil, fmt.Errorf("failed to create course day: %w", err)
	}
	return &day, nil
}

func (s *Service) UpdateDay(ctx context.Context, day models.CourseDay) error {
	return s.DB.UpdateDay(ctx, &day)
}

func (s *Service) DeleteDay(ctx context.Context, id string) error {
	return s.DB.DeleteDay(ctx, id)
}

// ---------------- INSTRUCTORS ----------------

func (s *Service) ListInstructors(ctx context.Context, courseID string) ([]models.Instructor, error) {
	return s.DB.ListInstructors(ctx, courseID)
}

func (s *Service) CreateInstructor(ctx context.Context, instructor models.Instructor) (*models.Instructor, error) {
	if instructor.InstructorID == "" {
		instructor.InstructorID = uuid.NewString()
	}
	if err := s.DB.CreateInstructor(ctx, &instructor); err != nil {
		return nil, fmt.Errorf("failed to create instructor: %w", err)
	}
	if instructor.Image != "" && s.Resizer != nil {
		s.Resizer.Enqueue(instructor.Image, models.InstructorImageWidth, models.InstructorImageHeight)
	}
	return &instructor, nil
}

func (s *Service) UpdateInstructor(ctx context.Context, instructor models.Instructor) error {
	existing, err := s.DB.GetInstructorByID(ctx, instructor.InstructorID)
	if err != nil {
		return fmt.Errorf("instructor %s not found: %w", instructor.InstructorID, err)
	}
	if err := s.DB.UpdateInstructor(ctx, &instructor); err != nil {
		return fmt.Errorf("failed to update instructor: %w", err)
	}
	if instructor.Image != "" && instructor.Image != existing.Image && s.Resizer != nil {
		s.Resizer.Enqueue(instructor.Image, models.InstructorImageWidth, models.InstructorImageHeight)
	}
	return nil
}

func (s *Service) AssignInstructor(ctx context.Context, courseID, instructorID string) error {
	return s.DB.AssignInstructor(ctx, courseID, instructorID)
}

func (s *Service) UnassignInstructor(ctx context.Context, courseID, instructorID string) error {
	return s.DB.UnassignInstructor(ctx, courseID, instructorID)
}
