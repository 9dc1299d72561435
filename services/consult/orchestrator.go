package consult

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	sessionRepo "teleclinic/database/repository/session"
	"teleclinic/models"
	"teleclinic/utils"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultIdleTimeout  = 30 * time.Second
	acquireRetryBackoff = 250 * time.Millisecond
	snapshotTTL         = 2 * time.Hour
)

// BookingDirectory is the slice of the booking ledger the orchestrator
// needs. Wired in main.
type BookingDirectory interface {
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	MarkCompleted(ctx context.Context, bookingID string) error
}

// SessionOrchestrator owns the runtime state machine of consultation
// sessions. All transitions of one session are serialized; different
// sessions proceed independently.
type SessionOrchestrator interface {
	Start(ctx context.Context, bookingID string, requested models.Modality, caps models.DeviceCapabilitySet) (*models.Session, error)
	ToggleControl(ctx context.Context, sessionID string, control models.SessionControl, on bool) (*models.Session, error)
	End(ctx context.Context, sessionID, reason string) (*models.Session, error)
	Get(ctx context.Context, sessionID string) (*models.Session, error)

	// SessionDirectory surface consumed by the booking ledger.
	HasLiveSession(bookingID string) bool
	CancelForBooking(ctx context.Context, bookingID, reason string)
}

// liveSession is one session's in-memory state. Its mutex is the
// single-writer discipline: every transition takes it. The acquiring flag
// marks an in-flight resource acquisition; a cancel arriving then parks the
// session in ending and lets the acquirer finish the transition, so a handle
// is never abandoned.
type liveSession struct {
	mu        sync.Mutex
	model     models.Session
	handles   []ResourceHandle
	idleTimer *time.Timer

	acquiring bool
	endTarget models.SessionState
	endReason string
}

func (s *liveSession) stopIdleTimerLocked() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}

func cloneSession(m models.Session) models.Session {
	out := m
	if m.Controls != nil {
		out.Controls = make(map[models.SessionControl]bool, len(m.Controls))
		for k, v := range m.Controls {
			out.Controls[k] = v
		}
	}
	out.AttemptedChain = append([]models.Modality(nil), m.AttemptedChain...)
	out.ResourceHandleIDs = append([]string(nil), m.ResourceHandleIDs...)
	return out
}

// DefaultSessionOrchestrator implements SessionOrchestrator.
type DefaultSessionOrchestrator struct {
	Bookings    BookingDirectory
	Provisioner Provisioner
	// Records is the durable session store; writes are best effort and never
	// block a transition. Optional.
	Records sessionRepo.SessionRepository
	// Snapshots publishes session state to redis with a TTL for read traffic
	// and other instances. Optional.
	Snapshots   *redis.Client
	IdleTimeout time.Duration

	mu        sync.Mutex
	byID      map[string]*liveSession
	byBooking map[string]*liveSession
}

func NewDefaultSessionOrchestrator(bookings BookingDirectory, provisioner Provisioner) *DefaultSessionOrchestrator {
	return &DefaultSessionOrchestrator{
		Bookings:    bookings,
		Provisioner: provisioner,
		IdleTimeout: defaultIdleTimeout,
		byID:        make(map[string]*liveSession),
		byBooking:   make(map[string]*liveSession),
	}
}

func (o *DefaultSessionOrchestrator) Start(ctx context.Context, bookingID string, requested models.Modality, caps models.DeviceCapabilitySet) (*models.Session, error) {
	logger := utils.GetLogger()

	booking, err := o.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingConfirmed {
		return nil, &InvalidStateError{Subject: "booking", ID: bookingID, State: string(booking.Status), Op: "join"}
	}

	o.mu.Lock()
	if existing, ok := o.byBooking[bookingID]; ok {
		id := existing.model.ID
		o.mu.Unlock()
		return nil, &AlreadyActiveError{BookingID: bookingID, SessionID: id}
	}
	sess := &liveSession{
		model: models.Session{
			ID:                uuid.New().String(),
			BookingID:         bookingID,
			State:             models.SessionNegotiating,
			RequestedModality: requested,
			CreatedAt:         time.Now(),
		},
	}
	o.byID[sess.model.ID] = sess
	o.byBooking[bookingID] = sess
	o.mu.Unlock()

	idle := o.IdleTimeout
	if idle <= 0 {
		idle = defaultIdleTimeout
	}
	sess.mu.Lock()
	sess.idleTimer = time.AfterFunc(idle, func() { o.expireNegotiation(sess) })
	snap := cloneSession(sess.model)
	sess.mu.Unlock()
	o.persist(ctx, snap)

	// Re-read now that the session is registered: a cancellation that
	// completed between the first read and registration had no session to
	// cascade to.
	booking, err = o.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		o.failSession(ctx, sess, nil, fmt.Sprintf("booking re-check failed: %v", err))
		return nil, err
	}
	if booking.Status != models.BookingConfirmed {
		o.failSession(ctx, sess, nil, "booking "+string(booking.Status)+" before session start")
		return nil, &InvalidStateError{Subject: "booking", ID: bookingID, State: string(booking.Status), Op: "join"}
	}

	granted, chain, err := Negotiate(requested, caps)
	if err != nil {
		o.failSession(ctx, sess, chain, fmt.Sprintf("capability negotiation failed: %v", err))
		return nil, err
	}

	sess.mu.Lock()
	if sess.model.State != models.SessionNegotiating {
		// Cancelled before acquisition began; End already finished it.
		state := sess.model.State
		sess.mu.Unlock()
		return nil, &InvalidStateError{Subject: "session", ID: sess.model.ID, State: string(state), Op: "start"}
	}
	sess.model.AttemptedChain = chain
	sess.acquiring = true
	sessionID := sess.model.ID
	sess.mu.Unlock()

	handle, acqErr := o.acquireWithRetry(ctx, sessionID, granted)

	sess.mu.Lock()
	sess.acquiring = false

	if sess.model.State == models.SessionEnding {
		// A cancel or timeout arrived mid-acquisition. Release what we got
		// and complete the parked transition.
		target := sess.endTarget
		if target == "" {
			target = models.SessionEnded
		}
		if handle != nil {
			if relErr := handle.Release(ctx); relErr != nil {
				logger.Error("failed to release handle of cancelled session",
					zap.String("sessionID", sessionID), zap.Error(relErr))
			}
		}
		now := time.Now()
		sess.model.State = target
		sess.model.EndedAt = &now
		if target == models.SessionFailed {
			sess.model.FailureReason = sess.endReason
		}
		final := cloneSession(sess.model)
		sess.mu.Unlock()

		o.unregister(bookingID, sess)
		o.persist(ctx, final)
		o.publishSnapshot(ctx, final)
		return nil, &InvalidStateError{Subject: "session", ID: sessionID, State: string(target), Op: "start"}
	}

	if acqErr != nil {
		sess.stopIdleTimerLocked()
		now := time.Now()
		sess.model.State = models.SessionFailed
		sess.model.FailureReason = acqErr.Error()
		sess.model.EndedAt = &now
		final := cloneSession(sess.model)
		sess.mu.Unlock()

		o.unregister(bookingID, sess)
		o.persist(ctx, final)
		o.publishSnapshot(ctx, final)
		return nil, acqErr
	}

	sess.stopIdleTimerLocked()
	now := time.Now()
	sess.handles = append(sess.handles, handle)
	sess.model.ResourceHandleIDs = []string{handle.ID()}
	sess.model.State = models.SessionActive
	sess.model.GrantedModality = granted
	sess.model.StartedAt = &now
	sess.model.Controls = map[models.SessionControl]bool{
		models.ControlAudio: true,
		models.ControlVideo: true,
	}
	active := cloneSession(sess.model)
	sess.mu.Unlock()

	o.persist(ctx, active)
	o.publishSnapshot(ctx, active)
	logger.Info("session active",
		zap.String("sessionID", active.ID),
		zap.String("bookingID", bookingID),
		zap.String("granted", string(granted)))
	return &active, nil
}

// acquireWithRetry acquires the modality's resource handle, retrying once
// with backoff on a transient acquisition failure.
func (o *DefaultSessionOrchestrator) acquireWithRetry(ctx context.Context, sessionID string, granted models.Modality) (ResourceHandle, error) {
	acquire := func() (ResourceHandle, error) {
		if granted == models.ModalityVideo {
			return o.Provisioner.AcquireMediaStream(ctx, sessionID)
		}
		return o.Provisioner.AcquireXRSession(ctx, sessionID, granted)
	}

	handle, err := acquire()
	var acqErr *ResourceAcquisitionError
	if err != nil && errors.As(err, &acqErr) {
		time.Sleep(acquireRetryBackoff)
		handle, err = acquire()
	}
	return handle, err
}

// failSession moves a negotiating session to failed (capability rejection).
func (o *DefaultSessionOrchestrator) failSession(ctx context.Context, sess *liveSession, chain []models.Modality, reason string) {
	sess.mu.Lock()
	if sess.model.State != models.SessionNegotiating {
		sess.mu.Unlock()
		return
	}
	sess.stopIdleTimerLocked()
	now := time.Now()
	sess.model.State = models.SessionFailed
	sess.model.AttemptedChain = chain
	sess.model.FailureReason = reason
	sess.model.EndedAt = &now
	final := cloneSession(sess.model)
	bookingID := sess.model.BookingID
	sess.mu.Unlock()

	o.unregister(bookingID, sess)
	o.persist(ctx, final)
	o.publishSnapshot(ctx, final)
}

// expireNegotiation fires when a session lingers in negotiating past the
// grace period.
func (o *DefaultSessionOrchestrator) expireNegotiation(sess *liveSession) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sess.mu.Lock()
	if sess.model.State != models.SessionNegotiating {
		sess.mu.Unlock()
		return
	}
	if sess.acquiring {
		// Let the in-flight acquisition resolve; its completion releases the
		// handle and lands the session in failed.
		sess.model.State = models.SessionEnding
		sess.endTarget = models.SessionFailed
		sess.endReason = "negotiation timed out"
		sess.mu.Unlock()
		return
	}
	now := time.Now()
	sess.model.State = models.SessionFailed
	sess.model.FailureReason = "negotiation timed out"
	sess.model.EndedAt = &now
	final := cloneSession(sess.model)
	bookingID := sess.model.BookingID
	sess.mu.Unlock()

	utils.GetLogger().Warn("session negotiation timed out",
		zap.String("sessionID", final.ID), zap.String("bookingID", bookingID))
	o.unregister(bookingID, sess)
	o.persist(ctx, final)
	o.publishSnapshot(ctx, final)
}

func (o *DefaultSessionOrchestrator) ToggleControl(ctx context.Context, sessionID string, control models.SessionControl, on bool) (*models.Session, error) {
	if control != models.ControlAudio && control != models.ControlVideo {
		return nil, fmt.Errorf("unknown control %q", control)
	}

	sess, ok := o.lookup(sessionID)
	if !ok {
		return nil, &NotFoundError{SessionID: sessionID}
	}

	sess.mu.Lock()
	if sess.model.State != models.SessionActive {
		state := sess.model.State
		sess.mu.Unlock()
		return nil, &InvalidStateError{Subject: "session", ID: sessionID, State: string(state), Op: "toggle control"}
	}
	if sess.model.Controls == nil {
		sess.model.Controls = make(map[models.SessionControl]bool)
	}
	sess.model.Controls[control] = on
	snap := cloneSession(sess.model)
	sess.mu.Unlock()

	o.publishSnapshot(ctx, snap)
	return &snap, nil
}

func (o *DefaultSessionOrchestrator) End(ctx context.Context, sessionID, reason string) (*models.Session, error) {
	sess, ok := o.lookup(sessionID)
	if !ok {
		return nil, &NotFoundError{SessionID: sessionID}
	}
	return o.end(ctx, sess, reason, true)
}

// end drives a session to ended. finalize controls whether a normal end of
// an active session marks the booking completed; the cancellation cascade
// passes false.
func (o *DefaultSessionOrchestrator) end(ctx context.Context, sess *liveSession, reason string, finalize bool) (*models.Session, error) {
	logger := utils.GetLogger()

	sess.mu.Lock()
	switch sess.model.State {
	case models.SessionEnded, models.SessionFailed, models.SessionEnding:
		// Already terminal or being torn down: no-op, never double-release.
		snap := cloneSession(sess.model)
		sess.mu.Unlock()
		return &snap, nil
	}

	sess.stopIdleTimerLocked()
	sess.model.State = models.SessionEnding

	if sess.acquiring {
		// Cooperative cancel: the in-flight acquirer observes ending,
		// releases its handle, and completes the transition.
		sess.endTarget = models.SessionEnded
		sess.endReason = reason
		snap := cloneSession(sess.model)
		sess.mu.Unlock()
		return &snap, nil
	}

	wasActive := sess.model.StartedAt != nil
	relErr := o.releaseAllLocked(ctx, sess)
	now := time.Now()
	sess.model.State = models.SessionEnded
	sess.model.EndedAt = &now
	snap := cloneSession(sess.model)
	bookingID := sess.model.BookingID
	sess.mu.Unlock()

	o.unregister(bookingID, sess)
	o.persist(ctx, snap)
	o.publishSnapshot(ctx, snap)
	logger.Info("session ended",
		zap.String("sessionID", snap.ID),
		zap.String("bookingID", bookingID),
		zap.String("reason", reason))

	if finalize && wasActive {
		// A session torn down before the scheduled start is not a completed
		// consultation.
		if booking, err := o.Bookings.GetBooking(ctx, bookingID); err != nil {
			logger.Warn("failed to load booking for completion",
				zap.String("bookingID", bookingID), zap.Error(err))
		} else if !now.Before(booking.Interval.Start) {
			if err := o.Bookings.MarkCompleted(ctx, bookingID); err != nil {
				logger.Warn("failed to mark booking completed",
					zap.String("bookingID", bookingID), zap.Error(err))
			}
		}
	}
	if relErr != nil {
		logger.Error("resource release reported errors",
			zap.String("sessionID", snap.ID), zap.Error(relErr))
		return &snap, relErr
	}
	return &snap, nil
}

// releaseAllLocked releases every held handle, attempting all of them even
// if some fail, and aggregates the errors. Caller holds sess.mu.
func (o *DefaultSessionOrchestrator) releaseAllLocked(ctx context.Context, sess *liveSession) error {
	var errs []error
	for _, h := range sess.handles {
		if err := h.Release(ctx); err != nil {
			errs = append(errs, fmt.Errorf("release %s handle %s: %w", h.Kind(), h.ID(), err))
		}
	}
	sess.handles = nil
	return errors.Join(errs...)
}

func (o *DefaultSessionOrchestrator) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	if sess, ok := o.lookup(sessionID); ok {
		sess.mu.Lock()
		snap := cloneSession(sess.model)
		sess.mu.Unlock()
		return &snap, nil
	}
	if o.Records != nil {
		record, err := o.Records.GetByID(ctx, sessionID)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, sessionRepo.ErrNotFound) {
			return nil, err
		}
	}
	return nil, &NotFoundError{SessionID: sessionID}
}

// HasLiveSession reports whether the booking has a session that is not yet
// terminal.
func (o *DefaultSessionOrchestrator) HasLiveSession(bookingID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.byBooking[bookingID]
	return ok
}

// CancelForBooking force-ends the booking's live session, if any. Invoked by
// the ledger's cancellation cascade; never marks the booking completed.
func (o *DefaultSessionOrchestrator) CancelForBooking(ctx context.Context, bookingID, reason string) {
	o.mu.Lock()
	sess, ok := o.byBooking[bookingID]
	o.mu.Unlock()
	if !ok {
		return
	}
	if _, err := o.end(ctx, sess, reason, false); err != nil {
		utils.GetLogger().Warn("forced session end reported errors",
			zap.String("bookingID", bookingID), zap.Error(err))
	}
}

func (o *DefaultSessionOrchestrator) lookup(sessionID string) (*liveSession, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sess, ok := o.byID[sessionID]
	return sess, ok
}

// unregister drops the booking index entry once the session is terminal.
// With a durable record store behind Get, the byID entry goes too; without
// one it stays so Get can still serve the final state.
func (o *DefaultSessionOrchestrator) unregister(bookingID string, sess *liveSession) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if current, ok := o.byBooking[bookingID]; ok && current == sess {
		delete(o.byBooking, bookingID)
	}
	if o.Records != nil {
		delete(o.byID, sess.model.ID)
	}
}

func (o *DefaultSessionOrchestrator) persist(ctx context.Context, snap models.Session) {
	if o.Records == nil {
		return
	}
	if err := o.Records.Save(ctx, &snap); err != nil {
		utils.GetLogger().Warn("failed to persist session record",
			zap.String("sessionID", snap.ID), zap.Error(err))
	}
}

func (o *DefaultSessionOrchestrator) publishSnapshot(ctx context.Context, snap models.Session) {
	if o.Snapshots == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		utils.GetLogger().Warn("failed to marshal session snapshot",
			zap.String("sessionID", snap.ID), zap.Error(err))
		return
	}
	if err := o.Snapshots.Set(ctx, "session:"+snap.ID, data, snapshotTTL).Err(); err != nil {
		utils.GetLogger().Warn("failed to publish session snapshot",
			zap.String("sessionID", snap.ID), zap.Error(err))
	}
}
