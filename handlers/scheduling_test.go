package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"teleclinic/models"
	"teleclinic/services/consult"
	"teleclinic/services/scheduling"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeBookingLister serves a fixed agenda and records the queried range.
type fakeBookingLister struct {
	bookings []models.Booking
	err      error

	doctorID string
	from, to time.Time
}

func (f *fakeBookingLister) ListConfirmedInRange(ctx context.Context, doctorID string, from, to time.Time) ([]models.Booking, error) {
	f.doctorID = doctorID
	f.from, f.to = from, to
	return f.bookings, f.err
}

func listBookingsRequest(t *testing.T, lister *fakeBookingLister, target string) *httptest.ResponseRecorder {
	t.Helper()
	h := &SchedulingHandler{Bookings: lister}
	router := gin.New()
	router.GET("/api/doctors/:doctorID/bookings", h.ListDoctorBookingsHandler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestListDoctorBookingsHandler(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	lister := &fakeBookingLister{bookings: []models.Booking{
		{
			ID:       "bk-1",
			DoctorID: "doc-1",
			Status:   models.BookingConfirmed,
			Interval: models.TimeInterval{Start: now.Add(time.Hour), End: now.Add(90 * time.Minute)},
		},
	}}

	from := now.Format(time.RFC3339)
	to := now.Add(48 * time.Hour).Format(time.RFC3339)
	w := listBookingsRequest(t, lister, "/api/doctors/doc-1/bookings?from="+from+"&to="+to)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	if lister.doctorID != "doc-1" {
		t.Fatalf("queried doctorID = %s, want doc-1", lister.doctorID)
	}
	if !lister.from.Equal(now) || !lister.to.Equal(now.Add(48*time.Hour)) {
		t.Fatalf("queried range = [%v, %v], want [%v, %v]", lister.from, lister.to, now, now.Add(48*time.Hour))
	}

	var body struct {
		DoctorID string           `json:"doctorID"`
		Bookings []models.Booking `json:"bookings"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Bookings) != 1 || body.Bookings[0].ID != "bk-1" {
		t.Fatalf("unexpected bookings: %+v", body.Bookings)
	}
}

func TestListDoctorBookingsHandlerDefaultsToWeekAhead(t *testing.T) {
	lister := &fakeBookingLister{}
	before := time.Now()
	w := listBookingsRequest(t, lister, "/api/doctors/doc-1/bookings")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	if lister.from.Before(before) {
		t.Fatalf("default 'from' %v precedes the request", lister.from)
	}
	if got := lister.to.Sub(lister.from); got != 7*24*time.Hour {
		t.Fatalf("default range span = %v, want one week", got)
	}
}

func TestListDoctorBookingsHandlerRejectsBadRange(t *testing.T) {
	lister := &fakeBookingLister{}

	w := listBookingsRequest(t, lister, "/api/doctors/doc-1/bookings?from=yesterday")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	now := time.Now().UTC()
	inverted := "/api/doctors/doc-1/bookings?from=" + now.Format(time.RFC3339) +
		"&to=" + now.Add(-time.Hour).Format(time.RFC3339)
	w = listBookingsRequest(t, lister, inverted)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestRespondServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"conflict", &scheduling.ConflictError{DoctorID: "doc-1"}, http.StatusConflict},
		{"already active", &consult.AlreadyActiveError{BookingID: "bk-1", SessionID: "s-1"}, http.StatusConflict},
		{"booking not found", &scheduling.NotFoundError{Kind: "booking", ID: "bk-1"}, http.StatusNotFound},
		{"session not found", &consult.NotFoundError{SessionID: "s-1"}, http.StatusNotFound},
		{"modality unsupported", &consult.ModalityUnsupportedError{Requested: models.ModalityVR, Attempted: []models.Modality{models.ModalityVR}}, http.StatusUnprocessableEntity},
		{"invalid state", &scheduling.InvalidStateError{BookingID: "bk-1"}, http.StatusUnprocessableEntity},
		{"lock timeout", &scheduling.TimeoutError{Op: "reserve", DoctorID: "doc-1"}, http.StatusServiceUnavailable},
		{"acquisition failure", &consult.ResourceAcquisitionError{Kind: "media", Err: errors.New("backend down")}, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondServiceError(c, tc.err)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}
