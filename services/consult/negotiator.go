package consult

import (
	"fmt"

	"teleclinic/models"
)

// fallbackChain returns the modalities to attempt for a request, in order.
// The cascade is fixed: VR falls back to AR, then plain video; AR falls back
// to video; video has no fallback.
func fallbackChain(requested models.Modality) ([]models.Modality, error) {
	switch requested {
	case models.ModalityVR:
		return []models.Modality{models.ModalityVR, models.ModalityAR, models.ModalityVideo}, nil
	case models.ModalityAR:
		return []models.Modality{models.ModalityAR, models.ModalityVideo}, nil
	case models.ModalityVideo:
		return []models.Modality{models.ModalityVideo}, nil
	}
	return nil, fmt.Errorf("unknown modality %q", requested)
}

func supports(m models.Modality, caps models.DeviceCapabilitySet) bool {
	switch m {
	case models.ModalityVR:
		return caps.SupportsVR
	case models.ModalityAR:
		return caps.SupportsAR
	case models.ModalityVideo:
		return caps.HasCamera && caps.HasMicrophone
	}
	return false
}

// Negotiate resolves a requested modality against a device's reported
// capabilities. It returns the granted modality and the chain of modalities
// attempted (the granted one last). Pure and safe for concurrent use.
func Negotiate(requested models.Modality, caps models.DeviceCapabilitySet) (models.Modality, []models.Modality, error) {
	chain, err := fallbackChain(requested)
	if err != nil {
		return "", nil, err
	}

	var attempted []models.Modality
	for _, m := range chain {
		attempted = append(attempted, m)
		if supports(m, caps) {
			return m, attempted, nil
		}
	}
	return "", attempted, &ModalityUnsupportedError{Requested: requested, Attempted: attempted}
}
