// Package teacher aggregates the learning activity of a school cohort
// into the report served to teacher accounts.
package teacher

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/example/applearn/internal/games"
	"github.com/example/applearn/internal/identity"
	"github.com/example/applearn/internal/platform/auth"
)

// ErrNotTeacher is returned when the caller does not hold the teacher role.
var ErrNotTeacher = errors.New("teacher role required")

// StudentStat is one student's roll-up across all videos and games.
type StudentStat struct {
	ID               string `json:"id"`
	FullName         string `json:"full_name"`
	TotalViews       int64  `json:"total_views"`
	TotalAttempts    int64  `json:"total_attempts"`
	TotalCompletions int64  `json:"total_completions"`
}

// Summary is the cohort-wide total line.
type Summary struct {
	StudentCount     int   `json:"student_count"`
	TotalViews       int64 `json:"total_views"`
	TotalAttempts    int64 `json:"total_attempts"`
	TotalCompletions int64 `json:"total_completions"`
}

// Report is the full teacher-stats payload for one school.
type Report struct {
	School   string        `json:"school"`
	Students []StudentStat `json:"students"`
	Summary  Summary       `json:"summary"`
}

// Roster lists the student accounts of a school.
type Roster interface {
	ListStudents(ctx context.Context, school string) ([]identity.User, error)
}

// ViewCounter supplies per-user counted-view totals.
type ViewCounter interface {
	ViewTotals(ctx context.Context, userIDs []string) (map[string]int64, error)
}

// GameCounter supplies per-user game attempt totals.
type GameCounter interface {
	AttemptTotals(ctx context.Context, userIDs []string) (map[string]games.AttemptTotals, error)
}

type Service struct {
	Roster Roster
	Views  ViewCounter
	Games  GameCounter
	Cache  *Cache
	Logger *zap.Logger
}

// Stats builds the cohort report for the calling teacher's school.
// Results are cached per school; a stale-by-TTL report is acceptable here.
func (s *Service) Stats(ctx context.Context, caller auth.Identity) (Report, error) {
	if caller.Role != auth.RoleTeacher {
		return Report{}, ErrNotTeacher
	}

	key := "teacher:stats:" + caller.School
	var cached Report
	if hit, err := s.Cache.Get(ctx, key, &cached); err != nil {
		s.log().Warn("stats cache read failed", zap.Error(err))
	} else if hit {
		return cached, nil
	}

	report, err := s.build(ctx, caller.School)
	if err != nil {
		return Report{}, err
	}

	if err := s.Cache.Set(ctx, key, report); err != nil {
		s.log().Warn("stats cache write failed", zap.Error(err))
	}
	return report, nil
}

func (s *Service) build(ctx context.Context, school string) (Report, error) {
	students, err := s.Roster.ListStudents(ctx, school)
	if err != nil {
		return Report{}, err
	}

	report := Report{School: school, Students: []StudentStat{}}
	if len(students) == 0 {
		return report, nil
	}

	ids := make([]string, 0, len(students))
	for _, u := range students {
		ids = append(ids, u.ID)
	}

	views, err := s.Views.ViewTotals(ctx, ids)
	if err != nil {
		return Report{}, err
	}
	plays, err := s.Games.AttemptTotals(ctx, ids)
	if err != nil {
		return Report{}, err
	}

	for _, u := range students {
		stat := StudentStat{
			ID:               u.ID,
			FullName:         u.FullName,
			TotalViews:       views[u.ID],
			TotalAttempts:    plays[u.ID].Attempts,
			TotalCompletions: plays[u.ID].Completions,
		}
		report.Students = append(report.Students, stat)
		report.Summary.TotalViews += stat.TotalViews
		report.Summary.TotalAttempts += stat.TotalAttempts
		report.Summary.TotalCompletions += stat.TotalCompletions
	}
	report.Summary.StudentCount = len(report.Students)

	sort.Slice(report.Students, func(i, j int) bool {
		a, b := report.Students[i], report.Students[j]
		if a.FullName != b.FullName {
			return a.FullName < b.FullName
		}
		return a.ID < b.ID
	})
	return report, nil
}

func (s *Service) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
