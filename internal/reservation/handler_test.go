// internal/reservation/handler_test.go
package reservation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarium/internal/identity"
)

func newTestServer(t *testing.T, env *testEnv) *httptest.Server {
	t.Helper()

	router := chi.NewRouter()
	// Stand-in for the JWT middleware: the X-Holder-ID header becomes the
	// authenticated caller.
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := r.Header.Get("X-Holder-ID"); raw != "" {
				if holderID, err := uuid.Parse(raw); err == nil {
					r = r.WithContext(identity.WithHolder(r.Context(), holderID))
				}
			}
			next.ServeHTTP(w, r)
		})
	})
	router.Mount("/reservations", NewHandler(env.svc).Routes())

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url string, holderID uuid.UUID) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	if holderID != uuid.Nil {
		req.Header.Set("X-Holder-ID", holderID.String())
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandlerLifecycle(t *testing.T) {
	env := newTestEnv(t, 1)
	srv := newTestServer(t, env)
	holder := uuid.New()

	// Place a hold.
	resp := doRequest(t, http.MethodPost, fmt.Sprintf("%s/reservations/items/%s", srv.URL, env.itemID), holder)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var r Reservation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&r))
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, holder, r.HolderID)

	// Confirm, borrow, return.
	for _, step := range []struct {
		action string
		status Status
	}{
		{"confirm", StatusConfirmed},
		{"borrow", StatusBorrowed},
		{"return", StatusReturned},
	} {
		resp := doRequest(t, http.MethodPost, fmt.Sprintf("%s/reservations/%s/%s", srv.URL, r.ID, step.action), holder)
		require.Equal(t, http.StatusOK, resp.StatusCode, step.action)

		var updated Reservation
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
		assert.Equal(t, step.status, updated.Status, step.action)
	}

	assert.Equal(t, 1, env.ledger.availableCount(env.itemID))
}

func TestHandlerErrorMapping(t *testing.T) {
	env := newTestEnv(t, 1)
	srv := newTestServer(t, env)
	holder := uuid.New()

	// No identity on the request.
	resp := doRequest(t, http.MethodPost, fmt.Sprintf("%s/reservations/items/%s", srv.URL, env.itemID), uuid.Nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Malformed item id.
	resp = doRequest(t, http.MethodPost, srv.URL+"/reservations/items/not-a-uuid", holder)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Item missing from the catalog.
	resp = doRequest(t, http.MethodPost, fmt.Sprintf("%s/reservations/items/%s", srv.URL, uuid.New()), holder)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Consume the only copy, then a second hold conflicts.
	resp = doRequest(t, http.MethodPost, fmt.Sprintf("%s/reservations/items/%s", srv.URL, env.itemID), holder)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var r Reservation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&r))

	resp = doRequest(t, http.MethodPost, fmt.Sprintf("%s/reservations/items/%s", srv.URL, env.itemID), uuid.New())
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Borrow before confirm is an invalid transition.
	resp = doRequest(t, http.MethodPost, fmt.Sprintf("%s/reservations/%s/borrow", srv.URL, r.ID), holder)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Someone else's reservation reads as missing.
	resp = doRequest(t, http.MethodPost, fmt.Sprintf("%s/reservations/%s/confirm", srv.URL, r.ID), uuid.New())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerCancelAndListings(t *testing.T) {
	env := newTestEnv(t, 2)
	srv := newTestServer(t, env)
	holder := uuid.New()

	resp := doRequest(t, http.MethodPost, fmt.Sprintf("%s/reservations/items/%s", srv.URL, env.itemID), holder)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var r Reservation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&r))

	resp = doRequest(t, http.MethodGet, srv.URL+"/reservations/", holder)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var active []Reservation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&active))
	assert.Len(t, active, 1)

	resp = doRequest(t, http.MethodDelete, fmt.Sprintf("%s/reservations/%s", srv.URL, r.ID), holder)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 2, env.ledger.availableCount(env.itemID))

	resp = doRequest(t, http.MethodGet, srv.URL+"/reservations/history", holder)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []Reservation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	assert.Empty(t, history)
}
