package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"teleclinic/models"
	"teleclinic/utils"

	"go.uber.org/zap"
)

// Notifier delivers the reminder side effect. Sends are fire-and-forget:
// failures are logged and never block the scheduler.
type Notifier interface {
	Send(ctx context.Context, userID, title, body string, data map[string]string) error
}

// Scheduler owns reminder timers for bookings. At most one live timer exists
// per booking at any time; Cancel is idempotent and always beats a racing
// fire.
type Scheduler interface {
	Schedule(ctx context.Context, booking models.Booking, fireAt time.Time) error
	Cancel(ctx context.Context, bookingID string) error
	Reschedule(ctx context.Context, booking models.Booking, fireAt time.Time) error
}

// pendingReminder is one armed timer. The entry pointer doubles as the timer
// generation: a fire that finds a different (or no) entry under the lock
// knows it lost a race with Cancel or a re-Schedule and does nothing.
type pendingReminder struct {
	timer   *time.Timer
	booking models.Booking
	fireAt  time.Time
}

// TimerScheduler is the in-process Scheduler implementation backed by
// monotonic time.Timer instances.
type TimerScheduler struct {
	Notifier Notifier

	mu     sync.Mutex
	timers map[string]*pendingReminder
}

func NewTimerScheduler(notifier Notifier) *TimerScheduler {
	return &TimerScheduler{
		Notifier: notifier,
		timers:   make(map[string]*pendingReminder),
	}
}

func (s *TimerScheduler) Schedule(ctx context.Context, booking models.Booking, fireAt time.Time) error {
	if booking.ID == "" {
		return fmt.Errorf("cannot schedule reminder without booking id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Replace any existing timer so only one is ever live per booking.
	if prev, ok := s.timers[booking.ID]; ok {
		prev.timer.Stop()
		delete(s.timers, booking.ID)
	}

	entry := &pendingReminder{booking: booking, fireAt: fireAt}
	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}
	entry.timer = time.AfterFunc(delay, func() {
		s.fire(booking.ID, entry)
	})
	s.timers[booking.ID] = entry
	return nil
}

func (s *TimerScheduler) fire(bookingID string, entry *pendingReminder) {
	s.mu.Lock()
	current, ok := s.timers[bookingID]
	if !ok || current != entry {
		// Cancelled or rescheduled after this timer was armed.
		s.mu.Unlock()
		return
	}
	delete(s.timers, bookingID)
	s.mu.Unlock()

	logger := utils.GetLogger()
	if s.Notifier == nil {
		return
	}
	b := entry.booking
	title := "Upcoming consultation"
	body := fmt.Sprintf("Your consultation starts at %s.", b.Interval.Start.Format(time.Kitchen))
	data := map[string]string{
		"type":      "booking_reminder",
		"bookingId": b.ID,
		"startsAt":  b.Interval.Start.Format(time.RFC3339),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Notifier.Send(ctx, b.PatientID, title, body, data); err != nil {
		logger.Warn("reminder notification failed",
			zap.String("bookingID", b.ID), zap.Error(err))
	}
}

func (s *TimerScheduler) Cancel(ctx context.Context, bookingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.timers[bookingID]; ok {
		entry.timer.Stop()
		delete(s.timers, bookingID)
	}
	return nil
}

func (s *TimerScheduler) Reschedule(ctx context.Context, booking models.Booking, fireAt time.Time) error {
	if err := s.Cancel(ctx, booking.ID); err != nil {
		return err
	}
	return s.Schedule(ctx, booking, fireAt)
}

// Pending reports whether a live timer exists for the booking.
func (s *TimerScheduler) Pending(bookingID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[bookingID]
	return ok
}
