package wire

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cinema-reservation/internal/adaptor"
	"cinema-reservation/pkg/utils"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newRouter(checks map[string]HealthCheck) http.Handler {
	log := zap.NewNop()
	handler := &adaptor.Handler{
		SeatHold: adaptor.NewSeatHoldHandler(nil, log),
		Booking:  adaptor.NewBookingHandler(nil, log),
		Admin:    adaptor.NewAdminHandler(nil, nil, log),
	}
	config := &utils.Config{Admin: utils.AdminConfig{Token: "secret"}}
	return setupRouter(handler, checks, config, log)
}

func TestHealth(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	rec := httptest.NewRecorder()
	newRouter(map[string]HealthCheck{"postgres": healthy, "redis": healthy}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	newRouter(map[string]HealthCheck{"postgres": healthy, "redis": down}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
}

func TestAdminRoutesRequireToken(t *testing.T) {
	r := newRouter(nil)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/admin/showtimes/10/bookings"},
		{http.MethodPatch, "/api/admin/bookings/abc"},
		{http.MethodDelete, "/api/admin/bookings/abc"},
		{http.MethodPost, "/api/admin/sweeps/expired"},
		{http.MethodPost, "/api/admin/sweeps/purge"},
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(route.method, route.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)
	}
}

func TestUnknownRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/movies", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
