package consult

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"teleclinic/models"

	"github.com/google/uuid"
)

// ResourceHandle is an acquired media or XR resource. Release is idempotent
// on the default provisioner; the orchestrator still guarantees it calls
// Release exactly once per handle.
type ResourceHandle interface {
	ID() string
	Kind() string
	Release(ctx context.Context) error
}

// Provisioner hands out modality-specific resource handles. Acquisition
// failures that may clear on retry (device busy, capacity) are reported as
// *ResourceAcquisitionError.
type Provisioner interface {
	AcquireMediaStream(ctx context.Context, sessionID string) (ResourceHandle, error)
	AcquireXRSession(ctx context.Context, sessionID string, modality models.Modality) (ResourceHandle, error)
}

var errCapacity = errors.New("capacity reached")

// LocalProvisioner is a capacity-bounded in-process Provisioner. It fronts
// the media/XR backends with a simple live-handle registry so a crashed or
// cancelled session can never hold capacity forever.
type LocalProvisioner struct {
	MaxMediaStreams int
	MaxXRSessions   int

	mu    sync.Mutex
	media map[string]string // handle ID -> session ID
	xr    map[string]string
}

func NewLocalProvisioner(maxMedia, maxXR int) *LocalProvisioner {
	return &LocalProvisioner{
		MaxMediaStreams: maxMedia,
		MaxXRSessions:   maxXR,
		media:           make(map[string]string),
		xr:              make(map[string]string),
	}
}

func (p *LocalProvisioner) AcquireMediaStream(ctx context.Context, sessionID string) (ResourceHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.MaxMediaStreams > 0 && len(p.media) >= p.MaxMediaStreams {
		return nil, &ResourceAcquisitionError{Kind: "media", Err: errCapacity}
	}
	id := uuid.New().String()
	p.media[id] = sessionID
	return &localHandle{id: id, kind: "media", release: p.releaseMedia}, nil
}

func (p *LocalProvisioner) AcquireXRSession(ctx context.Context, sessionID string, modality models.Modality) (ResourceHandle, error) {
	if modality != models.ModalityAR && modality != models.ModalityVR {
		return nil, fmt.Errorf("xr session requested for non-xr modality %s", modality)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.MaxXRSessions > 0 && len(p.xr) >= p.MaxXRSessions {
		return nil, &ResourceAcquisitionError{Kind: "xr", Err: errCapacity}
	}
	id := uuid.New().String()
	p.xr[id] = sessionID
	return &localHandle{id: id, kind: "xr", release: p.releaseXR}, nil
}

func (p *LocalProvisioner) releaseMedia(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.media, id)
}

func (p *LocalProvisioner) releaseXR(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.xr, id)
}

// LiveCounts returns the number of live media and XR handles.
func (p *LocalProvisioner) LiveCounts() (media, xr int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.media), len(p.xr)
}

type localHandle struct {
	id      string
	kind    string
	once    sync.Once
	release func(id string)
}

func (h *localHandle) ID() string   { return h.id }
func (h *localHandle) Kind() string { return h.kind }

func (h *localHandle) Release(ctx context.Context) error {
	h.once.Do(func() { h.release(h.id) })
	return nil
}
