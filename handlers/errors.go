package handlers

import (
	"errors"
	"net/http"

	"teleclinic/services/consult"
	"teleclinic/services/scheduling"
	"teleclinic/utils"

	"github.com/gin-gonic/gin"
)

// respondServiceError translates the service error taxonomy into HTTP
// responses. Anything unrecognized is a 500.
func respondServiceError(c *gin.Context, err error) {
	var (
		conflict        *scheduling.ConflictError
		schedNotFound   *scheduling.NotFoundError
		schedTimeout    *scheduling.TimeoutError
		schedInvalid    *scheduling.InvalidStateError
		alreadyActive   *consult.AlreadyActiveError
		consultInvalid  *consult.InvalidStateError
		modality        *consult.ModalityUnsupportedError
		consultNotFound *consult.NotFoundError
		acquisition     *consult.ResourceAcquisitionError
	)

	switch {
	case errors.As(err, &conflict):
		body := gin.H{"error": err.Error(), "doctorID": conflict.DoctorID}
		if conflict.NextAvailable != nil {
			body["nextAvailable"] = conflict.NextAvailable
		}
		c.JSON(http.StatusConflict, body)
	case errors.As(err, &alreadyActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "sessionID": alreadyActive.SessionID})
	case errors.As(err, &schedNotFound), errors.As(err, &consultNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &modality):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "attempted": modality.Attempted})
	case errors.As(err, &schedInvalid), errors.As(err, &consultInvalid):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &schedTimeout), errors.As(err, &acquisition):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		utils.JSONError(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
}
