package consult

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sessionRepo "teleclinic/database/repository/session"
	"teleclinic/models"
)

type fakeBookings struct {
	mu        sync.Mutex
	bookings  map[string]models.Booking
	completed []string

	gets int
	// cancelAfterGets, when positive, flips the booking to cancelled once
	// that many reads have been served.
	cancelAfterGets int
}

func (f *fakeBookings) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok {
		return nil, fmt.Errorf("booking %s not found", bookingID)
	}
	f.gets++
	if f.cancelAfterGets > 0 && f.gets > f.cancelAfterGets {
		b.Status = models.BookingCancelled
		f.bookings[bookingID] = b
	}
	out := b
	return &out, nil
}

func (f *fakeBookings) MarkCompleted(ctx context.Context, bookingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, bookingID)
	return nil
}

func (f *fakeBookings) completedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completed)
}

type fakeHandle struct {
	id   string
	kind string

	mu       sync.Mutex
	released int
	err      error
}

func (h *fakeHandle) ID() string   { return h.id }
func (h *fakeHandle) Kind() string { return h.kind }

func (h *fakeHandle) Release(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.released++
	return h.err
}

func (h *fakeHandle) releaseCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// fakeProvisioner hands out fakeHandles. failures makes the next N
// acquisitions fail transiently; gate, when set, blocks every acquisition
// until the channel is closed; entered receives one token per acquisition
// attempt.
type fakeProvisioner struct {
	mu         sync.Mutex
	failures   int
	releaseErr error
	handles    []*fakeHandle

	gate    chan struct{}
	entered chan struct{}
}

func (p *fakeProvisioner) acquire(kind string) (ResourceHandle, error) {
	if p.entered != nil {
		p.entered <- struct{}{}
	}
	if p.gate != nil {
		<-p.gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return nil, &ResourceAcquisitionError{Kind: kind, Err: errors.New("backend busy")}
	}
	h := &fakeHandle{id: fmt.Sprintf("h-%d", len(p.handles)+1), kind: kind, err: p.releaseErr}
	p.handles = append(p.handles, h)
	return h, nil
}

func (p *fakeProvisioner) AcquireMediaStream(ctx context.Context, sessionID string) (ResourceHandle, error) {
	return p.acquire("media")
}

func (p *fakeProvisioner) AcquireXRSession(ctx context.Context, sessionID string, modality models.Modality) (ResourceHandle, error) {
	return p.acquire("xr")
}

func (p *fakeProvisioner) lastHandle() *fakeHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.handles) == 0 {
		return nil
	}
	return p.handles[len(p.handles)-1]
}

func confirmedBooking(id string) models.Booking {
	now := time.Now()
	return models.Booking{
		ID:        id,
		DoctorID:  "doc-1",
		PatientID: "pat-1",
		Status:    models.BookingConfirmed,
		Interval:  models.TimeInterval{Start: now.Add(-time.Minute), End: now.Add(29 * time.Minute)},
	}
}

// memSessionRecords is an in-memory SessionRepository for tests.
type memSessionRecords struct {
	mu   sync.Mutex
	byID map[string]models.Session
}

func newMemSessionRecords() *memSessionRecords {
	return &memSessionRecords{byID: make(map[string]models.Session)}
}

func (r *memSessionRecords) Save(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[session.ID] = *session
	return nil
}

func (r *memSessionRecords) GetByID(ctx context.Context, sessionID string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[sessionID]
	if !ok {
		return nil, sessionRepo.ErrNotFound
	}
	out := s
	return &out, nil
}

func newTestOrchestrator(prov Provisioner) (*DefaultSessionOrchestrator, *fakeBookings) {
	bookings := &fakeBookings{bookings: map[string]models.Booking{
		"bk-1": confirmedBooking("bk-1"),
	}}
	o := NewDefaultSessionOrchestrator(bookings, prov)
	return o, bookings
}

var videoCaps = models.DeviceCapabilitySet{HasCamera: true, HasMicrophone: true}

func TestStartNegotiatesFallbackAndActivates(t *testing.T) {
	prov := &fakeProvisioner{}
	o, _ := newTestOrchestrator(prov)

	session, err := o.Start(context.Background(), "bk-1", models.ModalityVR, videoCaps)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if session.State != models.SessionActive {
		t.Fatalf("state = %s, want active", session.State)
	}
	if session.GrantedModality != models.ModalityVideo {
		t.Fatalf("granted = %s, want video", session.GrantedModality)
	}
	if len(session.AttemptedChain) != 3 {
		t.Fatalf("attempted chain = %v, want vr, ar, video", session.AttemptedChain)
	}
	if !session.Controls[models.ControlAudio] || !session.Controls[models.ControlVideo] {
		t.Fatalf("controls not enabled on join: %v", session.Controls)
	}
	if h := prov.lastHandle(); h == nil || h.kind != "media" {
		t.Fatal("expected a media handle for a video session")
	}
	if !o.HasLiveSession("bk-1") {
		t.Fatal("expected a live session for the booking")
	}
}

func TestStartRejectsUnconfirmedBooking(t *testing.T) {
	o, bookings := newTestOrchestrator(&fakeProvisioner{})
	b := bookings.bookings["bk-1"]
	b.Status = models.BookingCancelled
	bookings.bookings["bk-1"] = b

	_, err := o.Start(context.Background(), "bk-1", models.ModalityVideo, videoCaps)
	var invalid *InvalidStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *InvalidStateError, got %v", err)
	}
}

func TestStartSecondJoinReportsAlreadyActive(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeProvisioner{})

	first, err := o.Start(context.Background(), "bk-1", models.ModalityVideo, videoCaps)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	_, err = o.Start(context.Background(), "bk-1", models.ModalityVideo, videoCaps)
	var active *AlreadyActiveError
	if !errors.As(err, &active) {
		t.Fatalf("expected *AlreadyActiveError, got %v", err)
	}
	if active.SessionID != first.ID {
		t.Fatalf("error names session %s, want %s", active.SessionID, first.ID)
	}
}

func TestStartFailsWhenChainExhausted(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeProvisioner{})

	_, err := o.Start(context.Background(), "bk-1", models.ModalityVR, models.DeviceCapabilitySet{})
	var unsupported *ModalityUnsupportedError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected *ModalityUnsupportedError, got %v", err)
	}
	if o.HasLiveSession("bk-1") {
		t.Fatal("failed negotiation must not hold the booking")
	}
}

func TestEndIsIdempotentAndReleasesOnce(t *testing.T) {
	prov := &fakeProvisioner{}
	o, bookings := newTestOrchestrator(prov)

	session, err := o.Start(context.Background(), "bk-1", models.ModalityVideo, videoCaps)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ended, err := o.End(context.Background(), session.ID, "done")
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if ended.State != models.SessionEnded {
		t.Fatalf("state = %s, want ended", ended.State)
	}
	if h := prov.lastHandle(); h.releaseCount() != 1 {
		t.Fatalf("handle released %d times, want 1", h.releaseCount())
	}
	if bookings.completedCount() != 1 {
		t.Fatalf("booking completed %d times, want 1", bookings.completedCount())
	}
	if o.HasLiveSession("bk-1") {
		t.Fatal("booking still reported live after End")
	}

	again, err := o.End(context.Background(), session.ID, "done again")
	if err != nil {
		t.Fatalf("repeat End failed: %v", err)
	}
	if again.State != models.SessionEnded {
		t.Fatalf("repeat End state = %s, want ended", again.State)
	}
	if h := prov.lastHandle(); h.releaseCount() != 1 {
		t.Fatalf("repeat End re-released the handle (%d times)", h.releaseCount())
	}
	if bookings.completedCount() != 1 {
		t.Fatal("repeat End re-completed the booking")
	}
}

func TestEndSurfacesAggregatedReleaseErrors(t *testing.T) {
	prov := &fakeProvisioner{releaseErr: errors.New("backend gone")}
	o, _ := newTestOrchestrator(prov)

	session, err := o.Start(context.Background(), "bk-1", models.ModalityVideo, videoCaps)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ended, err := o.End(context.Background(), session.ID, "done")
	if err == nil {
		t.Fatal("expected release error to surface")
	}
	if ended == nil || ended.State != models.SessionEnded {
		t.Fatalf("session must still reach ended, got %+v", ended)
	}

	// The terminal state is already recorded; a repeat End succeeds cleanly.
	if _, err := o.End(context.Background(), session.ID, "done"); err != nil {
		t.Fatalf("repeat End failed: %v", err)
	}
	if h := prov.lastHandle(); h.releaseCount() != 1 {
		t.Fatalf("release attempted %d times, want 1", h.releaseCount())
	}
}

func TestEndUnknownSession(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeProvisioner{})
	_, err := o.End(context.Background(), "ghost", "done")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected *NotFoundError, got %v", err)
	}
}

func TestAcquisitionRetriesOnceOnTransientFailure(t *testing.T) {
	prov := &fakeProvisioner{failures: 1}
	o, _ := newTestOrchestrator(prov)

	session, err := o.Start(context.Background(), "bk-1", models.ModalityVideo, videoCaps)
	if err != nil {
		t.Fatalf("Start failed after one transient error: %v", err)
	}
	if session.State != models.SessionActive {
		t.Fatalf("state = %s, want active", session.State)
	}
}

func TestAcquisitionFailureFailsSessionAndFreesBooking(t *testing.T) {
	prov := &fakeProvisioner{failures: 2}
	o, _ := newTestOrchestrator(prov)

	_, err := o.Start(context.Background(), "bk-1", models.ModalityVideo, videoCaps)
	var acq *ResourceAcquisitionError
	if !errors.As(err, &acq) {
		t.Fatalf("expected *ResourceAcquisitionError, got %v", err)
	}
	if o.HasLiveSession("bk-1") {
		t.Fatal("failed session must not hold the booking")
	}

	// The booking is free again; a retry succeeds.
	session, err := o.Start(context.Background(), "bk-1", models.ModalityVideo, videoCaps)
	if err != nil {
		t.Fatalf("retry Start failed: %v", err)
	}
	if session.State != models.SessionActive {
		t.Fatalf("retry state = %s, want active", session.State)
	}
}

func TestCancelDuringAcquisitionReleasesHandle(t *testing.T) {
	prov := &fakeProvisioner{
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 4),
	}
	o, bookings := newTestOrchestrator(prov)

	errCh := make(chan error, 1)
	go func() {
		_, err := o.Start(context.Background(), "bk-1", models.ModalityVideo, videoCaps)
		errCh <- err
	}()

	// Wait until Start is blocked inside the provisioner, then cancel.
	<-prov.entered
	o.CancelForBooking(context.Background(), "bk-1", "patient cancelled")
	close(prov.gate)

	err := <-errCh
	var invalid *InvalidStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *InvalidStateError from interrupted Start, got %v", err)
	}

	h := prov.lastHandle()
	if h == nil {
		t.Fatal("provisioner never produced a handle")
	}
	if h.releaseCount() != 1 {
		t.Fatalf("in-flight handle released %d times, want 1", h.releaseCount())
	}
	if o.HasLiveSession("bk-1") {
		t.Fatal("cancelled session still holds the booking")
	}
	if bookings.completedCount() != 0 {
		t.Fatal("forced cancel must not complete the booking")
	}
}

func TestIdleTimeoutFailsStalledNegotiation(t *testing.T) {
	prov := &fakeProvisioner{
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 4),
	}
	o, _ := newTestOrchestrator(prov)
	o.IdleTimeout = 50 * time.Millisecond

	errCh := make(chan error, 1)
	go func() {
		_, err := o.Start(context.Background(), "bk-1", models.ModalityVideo, videoCaps)
		errCh <- err
	}()

	<-prov.entered
	// Let the idle timer fire while acquisition is stalled.
	time.Sleep(150 * time.Millisecond)
	close(prov.gate)

	err := <-errCh
	var invalid *InvalidStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *InvalidStateError from timed-out Start, got %v", err)
	}
	if invalid.State != string(models.SessionFailed) {
		t.Fatalf("terminal state = %s, want failed", invalid.State)
	}
	if h := prov.lastHandle(); h == nil || h.releaseCount() != 1 {
		t.Fatal("handle acquired after timeout must be released")
	}
	if o.HasLiveSession("bk-1") {
		t.Fatal("timed-out session still holds the booking")
	}
}

func TestToggleControlLifecycle(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeProvisioner{})

	_, err := o.ToggleControl(context.Background(), "ghost", models.ControlVideo, false)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected *NotFoundError, got %v", err)
	}

	session, err := o.Start(context.Background(), "bk-1", models.ModalityVideo, videoCaps)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	updated, err := o.ToggleControl(context.Background(), session.ID, models.ControlVideo, false)
	if err != nil {
		t.Fatalf("ToggleControl failed: %v", err)
	}
	if updated.Controls[models.ControlVideo] {
		t.Fatal("video control still on after toggle")
	}
	if !updated.Controls[models.ControlAudio] {
		t.Fatal("audio control flipped unexpectedly")
	}

	if _, err := o.End(context.Background(), session.ID, "done"); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	_, err = o.ToggleControl(context.Background(), session.ID, models.ControlAudio, false)
	var invalid *InvalidStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *InvalidStateError after End, got %v", err)
	}
}

func TestStartDetectsCancellationBeforeRegistration(t *testing.T) {
	prov := &fakeProvisioner{}
	o, bookings := newTestOrchestrator(prov)
	// The first read sees confirmed; by the re-check after registration the
	// booking has been cancelled, and its cascade found no session yet.
	bookings.cancelAfterGets = 1

	_, err := o.Start(context.Background(), "bk-1", models.ModalityVideo, videoCaps)
	var invalid *InvalidStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *InvalidStateError, got %v", err)
	}
	if invalid.State != string(models.BookingCancelled) {
		t.Fatalf("error state = %s, want cancelled", invalid.State)
	}
	if o.HasLiveSession("bk-1") {
		t.Fatal("session survived a cancelled booking")
	}
	if h := prov.lastHandle(); h != nil {
		t.Fatal("no resource should be acquired for a cancelled booking")
	}
	if bookings.completedCount() != 0 {
		t.Fatal("cancelled booking must not be completed")
	}
}

func TestEndBeforeScheduledStartDoesNotComplete(t *testing.T) {
	o, bookings := newTestOrchestrator(&fakeProvisioner{})
	now := time.Now()
	b := bookings.bookings["bk-1"]
	b.Interval = models.TimeInterval{Start: now.Add(time.Hour), End: now.Add(90 * time.Minute)}
	bookings.bookings["bk-1"] = b

	session, err := o.Start(context.Background(), "bk-1", models.ModalityVideo, videoCaps)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	ended, err := o.End(context.Background(), session.ID, "changed my mind")
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if ended.State != models.SessionEnded {
		t.Fatalf("state = %s, want ended", ended.State)
	}
	if bookings.completedCount() != 0 {
		t.Fatal("session ended before the scheduled start must not complete the booking")
	}
}

func TestTerminalSessionsEvictedWithDurableRecords(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeProvisioner{})
	records := newMemSessionRecords()
	o.Records = records

	session, err := o.Start(context.Background(), "bk-1", models.ModalityVideo, videoCaps)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := o.End(context.Background(), session.ID, "done"); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	o.mu.Lock()
	registrySize := len(o.byID)
	o.mu.Unlock()
	if registrySize != 0 {
		t.Fatalf("registry holds %d terminal sessions, want 0", registrySize)
	}

	// The record store still serves the final state.
	got, err := o.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.State != models.SessionEnded {
		t.Fatalf("state = %s, want ended", got.State)
	}
}

func TestGetServesTerminalState(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeProvisioner{})

	session, err := o.Start(context.Background(), "bk-1", models.ModalityVideo, videoCaps)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := o.End(context.Background(), session.ID, "done"); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	got, err := o.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.State != models.SessionEnded {
		t.Fatalf("state = %s, want ended", got.State)
	}
	if got.EndedAt == nil {
		t.Fatal("ended session missing EndedAt")
	}
}
