package student

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/campusportal/portal-rest/internal/integration"
	"github.com/campusportal/portal-rest/internal/person"
)

// Records runs integration queries.
type Records interface {
	Records(ctx context.Context, sql string, args ...any) ([]integration.Record, error)
}

// People resolves portal users to their directory attributes.
type People interface {
	Person(ctx context.Context, username string) (person.Person, error)
}

// Service reads a student's schedule and awards.
type Service struct {
	records Records
	people  People
	cfg     Config
	logger  *slog.Logger
}

// NewService constructs a Service. Blank links fall back to DefaultConfig.
func NewService(records Records, people People, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, people: people, cfg: cfg.withDefaults(), logger: logger}
}

// StudentID returns the student id of username, or "" when the user has none.
func (s *Service) StudentID(ctx context.Context, username string) (string, error) {
	if username == "" {
		return "", nil
	}
	p, err := s.people.Person(ctx, username)
	if errors.Is(err, person.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("student: person %s: %w", username, err)
	}
	return p.StudentID(), nil
}

// Schedule returns the course schedule of username.
func (s *Service) Schedule(ctx context.Context, username string) (Schedule, error) {
	out := Schedule{HelpURL: s.cfg.HelpURL}
	id, err := s.StudentID(ctx, username)
	if err != nil || id == "" {
		return out, err
	}
	recs, err := s.records.Records(ctx, CoursesQuery, id)
	if err != nil {
		return Schedule{}, fmt.Errorf("student: sections: %w", err)
	}
	sections := make([]Section, len(recs))
	for i, rec := range recs {
		sections[i] = SectionFrom(rec)
	}
	out.Waitlisted = CountWaitlisted(sections)
	out.Courses = GroupCourses(sections)
	s.logger.DebugContext(ctx, "course schedule",
		slog.String("student_id", id),
		slog.Int("sections", len(sections)),
		slog.Int("courses", len(out.Courses)),
		slog.Int("waitlisted", out.Waitlisted),
	)
	return out, nil
}

// Aid returns the payments and financial aid of username.
func (s *Service) Aid(ctx context.Context, username string) (Aid, error) {
	id, err := s.StudentID(ctx, username)
	if err != nil || id == "" {
		return Aid{}, err
	}
	recs, err := s.records.Records(ctx, AwardsQuery, id)
	if err != nil {
		return Aid{}, fmt.Errorf("student: awards: %w", err)
	}
	aid := BuildAid(s.cfg, recs)
	s.logger.DebugContext(ctx, "financial aid",
		slog.String("student_id", id),
		slog.Int("records", len(recs)),
		slog.Int("payments", len(aid.Payments.Payments)),
		slog.Int("accounts", len(aid.FinancialAid.Accounts)),
	)
	return aid, nil
}
