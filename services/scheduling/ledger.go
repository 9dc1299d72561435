package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingRepo "teleclinic/database/repository/booking"
	"teleclinic/models"
	"teleclinic/services/reminder"
	"teleclinic/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultLockTimeout  = 5 * time.Second
	defaultReminderLead = 30 * time.Minute
	// noShowGrace is how long after a booking's window closes before the
	// sweep may mark it no_show.
	noShowGrace = 5 * time.Minute
)

// BookingLedger is the authoritative owner of booking records and the single
// serialized mutation point of the scheduling engine.
type BookingLedger interface {
	// Reserve atomically books the interval for the doctor. If two callers
	// race on overlapping intervals, exactly one succeeds; the other gets a
	// *ConflictError with no partial state visible.
	Reserve(ctx context.Context, doctorID, patientID string, ival models.TimeInterval, modality models.Modality, urgency models.UrgencyTier) (*models.Booking, error)
	// Cancel moves a booking to cancelled and cascades to its reminder and
	// any live session. Repeat cancels are no-ops returning current state.
	Cancel(ctx context.Context, bookingID, actor string) (*models.Booking, error)
	MarkCompleted(ctx context.Context, bookingID string) error
	MarkNoShow(ctx context.Context, bookingID string) error
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	// SweepNoShows marks confirmed bookings whose window closed without a
	// live session as no_show. Returns the number swept.
	SweepNoShows(ctx context.Context, now time.Time) (int, error)
}

// SessionDirectory is the slice of the session orchestrator the ledger needs
// for cancellation cascade and no-show detection. Wired in main.
type SessionDirectory interface {
	HasLiveSession(bookingID string) bool
	CancelForBooking(ctx context.Context, bookingID, reason string)
}

// CancellationNotifier tells the counterparty their booking was cancelled.
// Wired in main.
type CancellationNotifier interface {
	NotifyBookingCancelled(ctx context.Context, booking *models.Booking, cancelledBy string) error
}

// DefaultBookingLedger implements BookingLedger with per-doctor
// serialization over a durable booking repository.
type DefaultBookingLedger struct {
	Repo     bookingRepo.BookingRepository
	Proposer *SlotProposer
	// Reminders schedules the pre-consultation reminder on reserve and
	// cancels it on booking cancellation. Optional.
	Reminders reminder.Scheduler
	// Sessions is set after the orchestrator is constructed. Optional.
	Sessions SessionDirectory
	// Notifications delivers cancellation notices to the counterparty.
	// Optional, best effort.
	Notifications CancellationNotifier

	LockTimeout  time.Duration
	ReminderLead time.Duration

	locks *doctorLocks
}

// NewDefaultBookingLedger constructs a ledger around the given repository.
func NewDefaultBookingLedger(repo bookingRepo.BookingRepository, proposer *SlotProposer) *DefaultBookingLedger {
	return &DefaultBookingLedger{
		Repo:         repo,
		Proposer:     proposer,
		LockTimeout:  defaultLockTimeout,
		ReminderLead: defaultReminderLead,
		locks:        newDoctorLocks(),
	}
}

func (l *DefaultBookingLedger) acquireDoctor(ctx context.Context, op, doctorID string) (func(), error) {
	timeout := l.LockTimeout
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	release, err := l.locks.Acquire(lockCtx, doctorID)
	if err != nil {
		return nil, &TimeoutError{Op: op, DoctorID: doctorID}
	}
	return release, nil
}

func (l *DefaultBookingLedger) Reserve(ctx context.Context, doctorID, patientID string, ival models.TimeInterval, modality models.Modality, urgency models.UrgencyTier) (*models.Booking, error) {
	logger := utils.GetLogger()

	if err := ival.Validate(); err != nil {
		return nil, err
	}

	release, err := l.acquireDoctor(ctx, "reserve", doctorID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-validate under the doctor lock: no confirmed booking may overlap.
	overlapping, err := l.Repo.ListConfirmedOverlapping(ctx, doctorID, ival)
	if err != nil {
		return nil, fmt.Errorf("overlap check failed: %w", err)
	}
	if len(overlapping) > 0 {
		conflict := &ConflictError{DoctorID: doctorID, Requested: ival}
		conflict.NextAvailable = l.nextAvailable(ctx, doctorID, ival)
		return nil, conflict
	}

	now := time.Now()
	booking := &models.Booking{
		ID:        uuid.New().String(),
		DoctorID:  doctorID,
		PatientID: patientID,
		Interval:  ival,
		Status:    models.BookingPending,
		Modality:  modality,
		Urgency:   urgency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.Repo.Insert(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	booking.Status = models.BookingConfirmed
	booking.UpdatedAt = time.Now()
	if err := l.Repo.Update(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to confirm booking %s: %w", booking.ID, err)
	}

	l.scheduleReminder(ctx, booking)

	logger.Info("booking confirmed",
		zap.String("bookingID", booking.ID),
		zap.String("doctorID", doctorID),
		zap.Time("start", ival.Start))
	return booking, nil
}

// nextAvailable finds the soonest proposable slot at or after the requested
// start, so a conflict response carries an immediate remedy. Best effort.
func (l *DefaultBookingLedger) nextAvailable(ctx context.Context, doctorID string, requested models.TimeInterval) *models.TimeInterval {
	if l.Proposer == nil {
		return nil
	}
	candidates, err := l.Proposer.Propose(ctx, doctorID, models.UrgencyUrgent, time.Now())
	if err != nil || len(candidates) == 0 {
		return nil
	}
	for _, c := range candidates {
		if !c.Start.Before(requested.Start) {
			return &c
		}
	}
	return &candidates[0]
}

func (l *DefaultBookingLedger) scheduleReminder(ctx context.Context, booking *models.Booking) {
	if l.Reminders == nil {
		return
	}
	lead := l.ReminderLead
	if lead <= 0 {
		lead = defaultReminderLead
	}
	fireAt := booking.Interval.Start.Add(-lead)
	if !fireAt.After(time.Now()) {
		return
	}
	if err := l.Reminders.Schedule(ctx, *booking, fireAt); err != nil {
		utils.GetLogger().Warn("failed to schedule reminder",
			zap.String("bookingID", booking.ID), zap.Error(err))
	}
}

func (l *DefaultBookingLedger) Cancel(ctx context.Context, bookingID, actor string) (*models.Booking, error) {
	logger := utils.GetLogger()

	booking, err := l.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status.Terminal() {
		// Repeat cancel is a no-op, not an error.
		return booking, nil
	}

	release, err := l.acquireDoctor(ctx, "cancel", booking.DoctorID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-read under the lock; a concurrent transition may have won.
	booking, err = l.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status.Terminal() {
		return booking, nil
	}

	booking.Status = models.BookingCancelled
	booking.CancelledBy = actor
	booking.UpdatedAt = time.Now()
	if err := l.Repo.Update(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to cancel booking %s: %w", bookingID, err)
	}

	if l.Reminders != nil {
		if err := l.Reminders.Cancel(ctx, bookingID); err != nil {
			logger.Warn("failed to cancel reminder", zap.String("bookingID", bookingID), zap.Error(err))
		}
	}
	if l.Sessions != nil {
		l.Sessions.CancelForBooking(ctx, bookingID, "booking cancelled")
	}
	if l.Notifications != nil {
		if err := l.Notifications.NotifyBookingCancelled(ctx, booking, actor); err != nil {
			logger.Warn("failed to send cancellation notice",
				zap.String("bookingID", bookingID), zap.Error(err))
		}
	}

	logger.Info("booking cancelled", zap.String("bookingID", bookingID), zap.String("actor", actor))
	return booking, nil
}

func (l *DefaultBookingLedger) MarkCompleted(ctx context.Context, bookingID string) error {
	return l.finalize(ctx, bookingID, models.BookingCompleted)
}

func (l *DefaultBookingLedger) MarkNoShow(ctx context.Context, bookingID string) error {
	return l.finalize(ctx, bookingID, models.BookingNoShow)
}

func (l *DefaultBookingLedger) finalize(ctx context.Context, bookingID string, status models.BookingStatus) error {
	booking, err := l.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.Status == status {
		return nil
	}
	if booking.Status != models.BookingConfirmed {
		return &InvalidStateError{BookingID: bookingID, Status: booking.Status, Op: string(status)}
	}

	release, err := l.acquireDoctor(ctx, string(status), booking.DoctorID)
	if err != nil {
		return err
	}
	defer release()

	booking, err = l.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.Status == status {
		return nil
	}
	if booking.Status != models.BookingConfirmed {
		return &InvalidStateError{BookingID: bookingID, Status: booking.Status, Op: string(status)}
	}

	booking.Status = status
	booking.UpdatedAt = time.Now()
	if err := l.Repo.Update(ctx, booking); err != nil {
		return fmt.Errorf("failed to mark booking %s %s: %w", bookingID, status, err)
	}
	return nil
}

func (l *DefaultBookingLedger) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := l.Repo.GetByID(ctx, bookingID)
	if errors.Is(err, bookingRepo.ErrNotFound) {
		return nil, &NotFoundError{Kind: "booking", ID: bookingID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch booking %s: %w", bookingID, err)
	}
	return booking, nil
}

func (l *DefaultBookingLedger) SweepNoShows(ctx context.Context, now time.Time) (int, error) {
	logger := utils.GetLogger()

	expired, err := l.Repo.ListConfirmedEndedBefore(ctx, now.Add(-noShowGrace))
	if err != nil {
		return 0, fmt.Errorf("no-show sweep query failed: %w", err)
	}

	swept := 0
	for _, b := range expired {
		// A consult running past its scheduled end is not a no-show.
		if l.Sessions != nil && l.Sessions.HasLiveSession(b.ID) {
			continue
		}
		if err := l.MarkNoShow(ctx, b.ID); err != nil {
			logger.Warn("failed to mark no-show", zap.String("bookingID", b.ID), zap.Error(err))
			continue
		}
		swept++
	}
	return swept, nil
}
