package availabilityRepo

import (
	"context"
	"errors"

	"teleclinic/models"
)

// ErrNotFound is returned when no template exists for a doctor.
var ErrNotFound = errors.New("availability template not found")

// AvailabilityRepository stores weekly templates and time-off exceptions.
type AvailabilityRepository interface {
	GetTemplate(ctx context.Context, doctorID string) (*models.AvailabilityTemplate, error)
	UpsertTemplate(ctx context.Context, tmpl *models.AvailabilityTemplate) error
	AddTimeOff(ctx context.Context, off *models.TimeOff) error
	ListTimeOff(ctx context.Context, doctorID string, within models.TimeInterval) ([]models.TimeOff, error)
}
