package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	availabilityRepo "teleclinic/database/repository/availability"
	"teleclinic/models"

	"github.com/google/uuid"
)

const minutesPerDay = 24 * 60

var weekdayNames = map[string]bool{
	"sunday": true, "monday": true, "tuesday": true, "wednesday": true,
	"thursday": true, "friday": true, "saturday": true,
}

// AvailabilityService exposes a doctor's bookable time: the weekly template
// minus declared time off. Reads are pure; templates are mutated only by the
// doctor or an admin.
type AvailabilityService interface {
	// GetOpenIntervals returns the doctor's open intervals inside dayRange,
	// ordered by start time.
	GetOpenIntervals(ctx context.Context, doctorID string, dayRange models.TimeInterval) ([]models.TimeInterval, error)
	SetTemplate(ctx context.Context, doctorID string, weekly map[string][]models.DayWindow) (*models.AvailabilityTemplate, error)
	DeclareTimeOff(ctx context.Context, doctorID string, ival models.TimeInterval, reason string) (*models.TimeOff, error)
}

// DefaultAvailabilityService implements AvailabilityService.
type DefaultAvailabilityService struct {
	Repo availabilityRepo.AvailabilityRepository
}

func (s *DefaultAvailabilityService) GetOpenIntervals(ctx context.Context, doctorID string, dayRange models.TimeInterval) ([]models.TimeInterval, error) {
	if err := dayRange.Validate(); err != nil {
		return nil, err
	}

	tmpl, err := s.Repo.GetTemplate(ctx, doctorID)
	if errors.Is(err, availabilityRepo.ErrNotFound) {
		return nil, &NotFoundError{Kind: "doctor", ID: doctorID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load availability template: %w", err)
	}

	var open []models.TimeInterval
	loc := dayRange.Start.Location()
	day := time.Date(dayRange.Start.Year(), dayRange.Start.Month(), dayRange.Start.Day(), 0, 0, 0, 0, loc)
	for ; day.Before(dayRange.End); day = day.AddDate(0, 0, 1) {
		for _, w := range tmpl.WindowsFor(day.Weekday()) {
			iv := models.TimeInterval{
				Start: day.Add(time.Duration(w.Start) * time.Minute),
				End:   day.Add(time.Duration(w.End) * time.Minute),
			}
			if clamped, ok := clampInterval(iv, dayRange.Start, dayRange.End); ok {
				open = append(open, clamped)
			}
		}
	}
	if len(open) == 0 {
		return nil, nil
	}

	timeOff, err := s.Repo.ListTimeOff(ctx, doctorID, dayRange)
	if err != nil {
		return nil, fmt.Errorf("failed to load time off: %w", err)
	}
	for _, off := range timeOff {
		open = subtractInterval(open, off.Interval)
	}

	sortIntervals(open)
	return open, nil
}

func (s *DefaultAvailabilityService) SetTemplate(ctx context.Context, doctorID string, weekly map[string][]models.DayWindow) (*models.AvailabilityTemplate, error) {
	if err := validateWeekly(weekly); err != nil {
		return nil, err
	}
	tmpl := &models.AvailabilityTemplate{
		DoctorID:  doctorID,
		Weekly:    weekly,
		UpdatedAt: time.Now(),
	}
	if err := s.Repo.UpsertTemplate(ctx, tmpl); err != nil {
		return nil, fmt.Errorf("failed to store availability template: %w", err)
	}
	return tmpl, nil
}

func (s *DefaultAvailabilityService) DeclareTimeOff(ctx context.Context, doctorID string, ival models.TimeInterval, reason string) (*models.TimeOff, error) {
	if err := ival.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.Repo.GetTemplate(ctx, doctorID); err != nil {
		if errors.Is(err, availabilityRepo.ErrNotFound) {
			return nil, &NotFoundError{Kind: "doctor", ID: doctorID}
		}
		return nil, fmt.Errorf("failed to load availability template: %w", err)
	}
	off := &models.TimeOff{
		ID:       uuid.New().String(),
		DoctorID: doctorID,
		Interval: ival,
		Reason:   reason,
	}
	if err := s.Repo.AddTimeOff(ctx, off); err != nil {
		return nil, fmt.Errorf("failed to store time off: %w", err)
	}
	return off, nil
}

func validateWeekly(weekly map[string][]models.DayWindow) error {
	for day, windows := range weekly {
		if !weekdayNames[day] {
			return fmt.Errorf("unknown weekday %q in template", day)
		}
		prevEnd := 0
		for _, w := range windows {
			if w.Start < 0 || w.End > minutesPerDay || w.Start >= w.End {
				return fmt.Errorf("invalid window [%d, %d) on %s", w.Start, w.End, day)
			}
			if w.Start < prevEnd {
				return fmt.Errorf("overlapping or unordered windows on %s", day)
			}
			prevEnd = w.End
		}
	}
	return nil
}
