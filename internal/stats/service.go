package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-cursos/internal/logger"
	"ms-cursos/internal/models"
)

type DBLayer interface {
	GetCourseBySlug(ctx context.Context, slug string) (*models.Course, error)
	ListCourses(ctx context.Context) ([]models.Course, error)
	EmailSummaries(ctx context.Context, courseID string, version int) ([]EmailSummary, error)
}

// Ledger answers the aggregate questions the payment store can already
// compute.
type Ledger interface {
	CountByStatus(ctx context.Context, courseID string, version int, charged bool) (int, error)
	AttemptCount(ctx context.Context, courseID string, version int) (int, error)
	TotalUnitsSold(ctx context.Context, courseID string, version int) (int, error)
	RegistrationCount(ctx context.Context, courseID string, version int) (int, error)
	Shortfall(ctx context.Context, courseID string, version int) (int, error)
	Regions(ctx context.Context, courseID string, version int) ([]models.RegionCount, error)
	Timeline(ctx context.Context, courseID string, version int) ([]models.TimelinePoint, error)
	MethodTotals(ctx context.Context, chargedOnly bool) (map[models.PaymentMethod]int, error)
}

// Cache stores computed stats payloads for a short window.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// EmailSummary is one deduplicated buyer line for a course version. The
// representative fields come from the most favorable attempt: a charged one
// if any exists, otherwise the earliest.
type EmailSummary struct {
	Email     string               `json:"email"`
	Name      string               `json:"name"`
	Country   string               `json:"country"`
	Method    models.PaymentMethod `json:"method"`
	Quantity  int                  `json:"quantity"`
	Charged   bool                 `json:"charged"`
	Attempts  int                  `json:"attempts"`
	FirstSeen time.Time            `json:"first_seen"`
}

// CourseStats is the full report for one course version.
type CourseStats struct {
	CourseID      string                 `json:"course_id"`
	Slug          string                 `json:"slug"`
	Name          string                 `json:"name"`
	Version       int                    `json:"version"`
	Charged       int                    `json:"charged"`
	Pending       int                    `json:"pending"`
	Attempts      int                    `json:"attempts"`
	UnitsSold     int                    `json:"units_sold"`
	Registrations int                    `json:"registrations"`
	Shortfall     int                    `json:"shortfall"`
	Regions       []models.RegionCount   `json:"regions"`
	Timeline      []models.TimelinePoint `json:"timeline"`
	Emails        []EmailSummary         `json:"emails"`
}

// CourseSummary is one course line in the overview.
type CourseSummary struct {
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	Version   int    `json:"version"`
	Charged   int    `json:"charged"`
	UnitsSold int    `json:"units_sold"`
	Shortfall int    `json:"shortfall"`
}

// Overview is the cross-course dashboard payload.
type Overview struct {
	Courses []CourseSummary `json:"courses"`
	Methods map[string]int  `json:"methods"`
}

type Service struct {
	DB     DBLayer
	Ledger Ledger
	Cache  Cache
	Logger *logger.Logger
}

func NewService(db DBLayer, ledger Ledger, cache Cache, log *logger.Logger) *Service {
	return &Service{DB: db, Ledger: ledger, Cache: cache, Logger: log}
}

// CourseStats builds the report for slug at the given version. A version of 0
// or below means the course's current cycle. Results are served from cache
// when fresh.
func (s *Service) CourseStats(ctx context.Context, slug string, version int) (*CourseStats, error) {
	course, err := s.DB.GetCourseBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if version <= 0 {
		version = course.Version
	}

	key := fmt.Sprintf("stats:curso:%s:%d", slug, version)
	if cached, ok := s.cacheGet(ctx, key); ok {
		var report CourseStats
		if err := json.Unmarshal(cached, &report); err == nil {
			return &report, nil
		}
	}

	report := &CourseStats{
		CourseID: course.CourseID,
		Slug:     course.Slug,
		Name:     course.Name,
		Version:  version,
	}

	if report.Charged, err = s.Ledger.CountByStatus(ctx, course.CourseID, version, true); err != nil {
		return nil, err
	}
	if report.Pending, err = s.Ledger.CountByStatus(ctx, course.CourseID, version, false); err != nil {
		return nil, err
	}
	if report.Attempts, err = s.Ledger.AttemptCount(ctx, course.CourseID, version); err != nil {
		return nil, err
	}
	if report.UnitsSold, err = s.Ledger.TotalUnitsSold(ctx, course.CourseID, version); err != nil {
		return nil, err
	}
	if report.Registrations, err = s.Ledger.RegistrationCount(ctx, course.CourseID, version); err != nil {
		return nil, err
	}
	report.Shortfall = report.UnitsSold - report.Registrations

	if report.Regions, err = s.Ledger.Regions(ctx, course.CourseID, version); err != nil {
		return nil, err
	}
	if report.Timeline, err = s.Ledger.Timeline(ctx, course.CourseID, version); err != nil {
		return nil, err
	}
	if report.Emails, err = s.DB.EmailSummaries(ctx, course.CourseID, version); err != nil {
		return nil, err
	}

	s.cacheSet(ctx, key, report)
	return report, nil
}

// Overview summarizes every course at its current version plus the global
// per-method charged totals.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	key := "stats:overview"
	if cached, ok := s.cacheGet(ctx, key); ok {
		var overview Overview
		if err := json.Unmarshal(cached, &overview); err == nil {
			return &overview, nil
		}
	}

	courses, err := s.DB.ListCourses(ctx)
	if err != nil {
		return nil, err
	}

	overview := &Overview{
		Courses: make([]CourseSummary, 0, len(courses)),
		Methods: make(map[string]int, 3),
	}
	for _, course := range courses {
		summary := CourseSummary{
			Slug:    course.Slug,
			Name:    course.Name,
			Version: course.Version,
		}
		if summary.Charged, err = s.Ledger.CountByStatus(ctx, course.CourseID, course.Version, true); err != nil {
			return nil, err
		}
		if summary.UnitsSold, err = s.Ledger.TotalUnitsSold(ctx, course.CourseID, course.Version); err != nil {
			return nil, err
		}
		if summary.Shortfall, err = s.Ledger.Shortfall(ctx, course.CourseID, course.Version); err != nil {
			return nil, err
		}
		overview.Courses = append(overview.Courses, summary)
	}

	totals, err := s.Ledger.MethodTotals(ctx, true)
	if err != nil {
		return nil, err
	}
	for method, count := range totals {
		overview.Methods[string(method)] = count
	}

	s.cacheSet(ctx, key, overview)
	return overview, nil
}

func (s *Service) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if s.Cache == nil {
		return nil, false
	}
	return s.Cache.Get(ctx, key)
}

func (s *Service) cacheSet(ctx context.Context, key string, payload interface{}) {
	if s.Cache == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		s.Logger.Warn("STATS", fmt.Sprintf("Failed to marshal cache payload for %s: %v", key, err))
		return
	}
	s.Cache.Set(ctx, key, raw)
}
