package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	availabilityRepo "teleclinic/database/repository/availability"
	"teleclinic/models"
)

type memAvailabilityRepo struct {
	mu        sync.Mutex
	templates map[string]models.AvailabilityTemplate
	timeOff   []models.TimeOff
}

func newMemAvailabilityRepo() *memAvailabilityRepo {
	return &memAvailabilityRepo{templates: make(map[string]models.AvailabilityTemplate)}
}

func (r *memAvailabilityRepo) GetTemplate(ctx context.Context, doctorID string) (*models.AvailabilityTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tmpl, ok := r.templates[doctorID]
	if !ok {
		return nil, availabilityRepo.ErrNotFound
	}
	out := tmpl
	return &out, nil
}

func (r *memAvailabilityRepo) UpsertTemplate(ctx context.Context, tmpl *models.AvailabilityTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[tmpl.DoctorID] = *tmpl
	return nil
}

func (r *memAvailabilityRepo) AddTimeOff(ctx context.Context, off *models.TimeOff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeOff = append(r.timeOff, *off)
	return nil
}

func (r *memAvailabilityRepo) ListTimeOff(ctx context.Context, doctorID string, within models.TimeInterval) ([]models.TimeOff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TimeOff
	for _, off := range r.timeOff {
		if off.DoctorID == doctorID && off.Interval.Overlaps(within) {
			out = append(out, off)
		}
	}
	return out, nil
}

// nextWeekday returns the next occurrence of the weekday at midnight, at
// least one day out.
func nextWeekday(from time.Time, day time.Weekday) time.Time {
	d := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location()).AddDate(0, 0, 1)
	for d.Weekday() != day {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func TestGetOpenIntervalsSubtractsTimeOff(t *testing.T) {
	repo := newMemAvailabilityRepo()
	svc := &DefaultAvailabilityService{Repo: repo}
	ctx := context.Background()

	// Mondays 09:00-12:00.
	weekly := map[string][]models.DayWindow{
		"monday": {{Start: 9 * 60, End: 12 * 60}},
	}
	if _, err := svc.SetTemplate(ctx, "doc-1", weekly); err != nil {
		t.Fatalf("SetTemplate failed: %v", err)
	}

	monday := nextWeekday(time.Now(), time.Monday)
	// 10:00-10:30 blocked.
	off := models.TimeInterval{Start: monday.Add(10 * time.Hour), End: monday.Add(10*time.Hour + 30*time.Minute)}
	if _, err := svc.DeclareTimeOff(ctx, "doc-1", off, "meeting"); err != nil {
		t.Fatalf("DeclareTimeOff failed: %v", err)
	}

	dayRange := models.TimeInterval{Start: monday, End: monday.AddDate(0, 0, 1)}
	open, err := svc.GetOpenIntervals(ctx, "doc-1", dayRange)
	if err != nil {
		t.Fatalf("GetOpenIntervals failed: %v", err)
	}

	want := []models.TimeInterval{
		{Start: monday.Add(9 * time.Hour), End: off.Start},
		{Start: off.End, End: monday.Add(12 * time.Hour)},
	}
	if len(open) != len(want) {
		t.Fatalf("got %d open intervals, want %d: %v", len(open), len(want), open)
	}
	for i := range want {
		if !open[i].Start.Equal(want[i].Start) || !open[i].End.Equal(want[i].End) {
			t.Fatalf("open[%d] = %v, want %v", i, open[i], want[i])
		}
	}
}

func TestGetOpenIntervalsClampsToRange(t *testing.T) {
	repo := newMemAvailabilityRepo()
	svc := &DefaultAvailabilityService{Repo: repo}
	ctx := context.Background()

	weekly := map[string][]models.DayWindow{
		"monday": {{Start: 9 * 60, End: 17 * 60}},
	}
	if _, err := svc.SetTemplate(ctx, "doc-1", weekly); err != nil {
		t.Fatalf("SetTemplate failed: %v", err)
	}

	monday := nextWeekday(time.Now(), time.Monday)
	// Query starts mid-window.
	from := monday.Add(11 * time.Hour)
	open, err := svc.GetOpenIntervals(ctx, "doc-1", models.TimeInterval{Start: from, End: monday.AddDate(0, 0, 1)})
	if err != nil {
		t.Fatalf("GetOpenIntervals failed: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("got %d open intervals, want 1", len(open))
	}
	if !open[0].Start.Equal(from) || !open[0].End.Equal(monday.Add(17*time.Hour)) {
		t.Fatalf("open[0] = %v, want [%v, %v)", open[0], from, monday.Add(17*time.Hour))
	}
}

func TestGetOpenIntervalsUnknownDoctor(t *testing.T) {
	svc := &DefaultAvailabilityService{Repo: newMemAvailabilityRepo()}
	now := time.Now()
	_, err := svc.GetOpenIntervals(context.Background(), "ghost", models.TimeInterval{Start: now, End: now.Add(time.Hour)})
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected *NotFoundError, got %v", err)
	}
}

func TestSetTemplateValidation(t *testing.T) {
	svc := &DefaultAvailabilityService{Repo: newMemAvailabilityRepo()}
	ctx := context.Background()

	cases := []struct {
		name   string
		weekly map[string][]models.DayWindow
	}{
		{"unknown weekday", map[string][]models.DayWindow{"funday": {{Start: 0, End: 60}}}},
		{"inverted window", map[string][]models.DayWindow{"monday": {{Start: 120, End: 60}}}},
		{"window past midnight", map[string][]models.DayWindow{"monday": {{Start: 23 * 60, End: 25 * 60}}}},
		{"overlapping windows", map[string][]models.DayWindow{"monday": {{Start: 60, End: 180}, {Start: 120, End: 240}}}},
	}
	for _, tc := range cases {
		if _, err := svc.SetTemplate(ctx, "doc-1", tc.weekly); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}
