package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"teleclinic/models"
	"teleclinic/services/tasks"

	"github.com/hibiken/asynq"
)

// AsynqScheduler is the durable Scheduler implementation: reminders survive
// process restarts by living in the redis-backed asynq queue. The task ID is
// derived from the booking ID, which enforces the one-live-timer-per-booking
// invariant at the queue level.
type AsynqScheduler struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
	Queue     string
}

func NewAsynqScheduler(redisOpts asynq.RedisClientOpt) *AsynqScheduler {
	return &AsynqScheduler{
		Client:    asynq.NewClient(redisOpts),
		Inspector: asynq.NewInspector(redisOpts),
		Queue:     "default",
	}
}

func taskID(bookingID string) string {
	return "reminder:" + bookingID
}

func (s *AsynqScheduler) Schedule(ctx context.Context, booking models.Booking, fireAt time.Time) error {
	payload := models.ReminderPayload{
		BookingID: booking.ID,
		PatientID: booking.PatientID,
		DoctorID:  booking.DoctorID,
		FireAt:    fireAt.Format(time.RFC3339),
		Title:     "Upcoming consultation",
		Body:      fmt.Sprintf("Your consultation starts at %s.", booking.Interval.Start.Format(time.Kitchen)),
	}
	task, opts, err := tasks.NewReminderTask(payload, fireAt)
	if err != nil {
		return fmt.Errorf("failed to build reminder task: %w", err)
	}
	opts = append(opts, asynq.TaskID(taskID(booking.ID)), asynq.Queue(s.Queue))

	_, err = s.Client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// A timer already exists for this booking; replace it.
		if err := s.Cancel(ctx, booking.ID); err != nil {
			return err
		}
		_, err = s.Client.EnqueueContext(ctx, task, opts...)
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue reminder for booking %s: %w", booking.ID, err)
	}
	return nil
}

func (s *AsynqScheduler) Cancel(ctx context.Context, bookingID string) error {
	err := s.Inspector.DeleteTask(s.Queue, taskID(bookingID))
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to cancel reminder for booking %s: %w", bookingID, err)
	}
	return nil
}

func (s *AsynqScheduler) Reschedule(ctx context.Context, booking models.Booking, fireAt time.Time) error {
	if err := s.Cancel(ctx, booking.ID); err != nil {
		return err
	}
	return s.Schedule(ctx, booking, fireAt)
}
