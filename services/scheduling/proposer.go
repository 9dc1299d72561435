package scheduling

import (
	"context"
	"fmt"
	"time"

	bookingRepo "teleclinic/database/repository/booking"
	"teleclinic/models"
)

const (
	// proposalLimit caps the number of candidates returned per call.
	proposalLimit = 10
	// slotGranularity aligns candidate starts to wall-clock boundaries.
	slotGranularity = 15 * time.Minute

	urgentLeadTime = 15 * time.Minute
	normalLeadTime = 24 * time.Hour
	urgentHorizon  = 48 * time.Hour
	normalHorizon  = 14 * 24 * time.Hour

	defaultSlotDuration = 30 * time.Minute
)

// SlotProposer computes conflict-free candidate appointment intervals. It is
// a pure function of the stores it reads: no mutation, no locking, so it can
// run speculatively against any number of concurrent reservations.
type SlotProposer struct {
	Availability AvailabilityService
	Bookings     bookingRepo.BookingRepository
	// SlotDuration is the length of a proposed consultation. Zero means the
	// default of 30 minutes.
	SlotDuration time.Duration
}

// leadTime returns the minimum delay between now and the earliest candidate.
func leadTime(urgency models.UrgencyTier) time.Duration {
	if urgency == models.UrgencyUrgent {
		return urgentLeadTime
	}
	return normalLeadTime
}

// horizon returns how far ahead of now the search extends.
func horizon(urgency models.UrgencyTier) time.Duration {
	if urgency == models.UrgencyUrgent {
		return urgentHorizon
	}
	return normalHorizon
}

// Propose returns up to 10 candidate intervals for the doctor, earliest
// first. An empty result means no availability inside the horizon; that is
// not an error.
func (p *SlotProposer) Propose(ctx context.Context, doctorID string, urgency models.UrgencyTier, now time.Time) ([]models.TimeInterval, error) {
	slotDur := p.SlotDuration
	if slotDur <= 0 {
		slotDur = defaultSlotDuration
	}

	earliest := now.Add(leadTime(urgency))
	limit := now.Add(horizon(urgency))
	searchRange := models.TimeInterval{Start: earliest, End: limit}

	open, err := p.Availability.GetOpenIntervals(ctx, doctorID, searchRange)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return nil, nil
	}

	booked, err := p.Bookings.ListConfirmedOverlapping(ctx, doctorID, searchRange)
	if err != nil {
		return nil, fmt.Errorf("failed to load confirmed bookings: %w", err)
	}
	blocked := make([]models.TimeInterval, 0, len(booked))
	for _, b := range booked {
		blocked = append(blocked, b.Interval)
	}

	free := subtractAll(open, blocked)

	var candidates []models.TimeInterval
	for _, iv := range free {
		start := alignUp(iv.Start, slotGranularity)
		for !start.Add(slotDur).After(iv.End) {
			candidates = append(candidates, models.TimeInterval{Start: start, End: start.Add(slotDur)})
			if len(candidates) >= proposalLimit {
				return candidates, nil
			}
			start = start.Add(slotGranularity)
		}
	}
	return candidates, nil
}
