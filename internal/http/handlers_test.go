package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ride-sharing/internal/directory"
	"github.com/example/ride-sharing/internal/dispatch"
	"github.com/example/ride-sharing/internal/engine"
	"github.com/example/ride-sharing/internal/models"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := directory.NewMemory()
	ws := dispatch.NewWSRegistry()
	eng := engine.New(dir, engine.WithNotifier(dispatch.NewPushNotifier("", ws)))
	return NewServer(eng, dir, ws, nil)
}

func do(t *testing.T, s http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func addUser(t *testing.T, s http.Handler, name string) string {
	t.Helper()
	rec := do(t, s, "POST", "/api/v1/users", addUserRequest{Name: name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[map[string]string](t, rec)["user_id"]
}

func addDriver(t *testing.T, s http.Handler, name, cat, number string) string {
	t.Helper()
	id := addUser(t, s, name)
	rec := do(t, s, "POST", "/api/v1/users/"+id+"/vehicles", addVehicleRequest{Category: cat, Number: number, Seats: 5})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return id
}

func offer(t *testing.T, s http.Handler, userID, number, from, to string, seats int) string {
	t.Helper()
	rec := do(t, s, "POST", "/api/v1/rides", offerRideRequest{UserID: userID, VehicleNumber: number, Origin: from, Destination: to, Seats: seats})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[map[string]string](t, rec)["ride_id"]
}

func TestRideLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	d1 := addDriver(t, s, "Rider 1", "XUV", "xa-213-1231")
	d2 := addDriver(t, s, "Rider 2", "XUV", "xa-521-31")
	d3 := addDriver(t, s, "Rider 3", "SEDAN", "xa-12-1231")
	p1 := addUser(t, s, "Passenger 1")
	p2 := addUser(t, s, "Passenger 2")

	a := offer(t, s, d1, "xa-213-1231", "bangalore", "chennai", 2)
	b := offer(t, s, d2, "xa-521-31", "chennai", "madurai", 2)
	offer(t, s, d3, "xa-12-1231", "madurai", "delhi", 2)

	// seats omitted: defaults to one
	rec := do(t, s, "POST", "/api/v1/rides/select", selectRideRequest{RiderID: p1, Origin: "bangalore", Destination: "madurai", Category: "XUV"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	legs := decodeBody[struct{ Legs []models.Ride }](t, rec).Legs
	require.Len(t, legs, 2)
	assert.Equal(t, a, legs[0].ID)
	assert.Equal(t, b, legs[1].ID)

	rec = do(t, s, "POST", "/api/v1/rides/select", selectRideRequest{RiderID: p2, Origin: "bangalore", Destination: "madurai", Category: "XUV"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, "POST", "/api/v1/rides/select", selectRideRequest{RiderID: p2, Origin: "bangalore", Destination: "madurai", Category: "XUV"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, "GET", "/api/v1/rides/"+a+"/selections", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]models.Selection](t, rec), 2)

	for _, id := range []string{a, b} {
		rec = do(t, s, "POST", "/api/v1/rides/"+id+"/end", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
	rec = do(t, s, "POST", "/api/v1/rides/"+a+"/end", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, "GET", "/api/v1/rides/"+a, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RideEnded, decodeBody[models.Ride](t, rec).Status)

	rec = do(t, s, "GET", "/api/v1/users/"+p1+"/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[models.UserStats](t, rec).TakenRides)

	rec = do(t, s, "GET", "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]models.UserStats](t, rec), 5)

	rec = do(t, s, "GET", "/api/v1/rides", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]models.Ride](t, rec), 1)
}

func TestListVehicles(t *testing.T) {
	s := newTestServer(t)
	d := addDriver(t, s, "Driver", "XUV", "xa-2")
	rec := do(t, s, "POST", "/api/v1/users/"+d+"/vehicles", addVehicleRequest{Category: "SEDAN", Number: "xa-1", Seats: 4})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	offer(t, s, d, "xa-2", "a", "b", 2)

	rec = do(t, s, "GET", "/api/v1/users/"+d+"/vehicles", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	vs := decodeBody[[]models.Vehicle](t, rec)
	require.Len(t, vs, 2)
	assert.Equal(t, "xa-1", vs[0].Number)
	assert.Equal(t, 4, vs[0].TotalSeats)
	assert.True(t, vs[0].Available)
	assert.Equal(t, "xa-2", vs[1].Number)
	assert.False(t, vs[1].Available, "vehicle with an active ride is in use")

	rec = do(t, s, "GET", "/api/v1/users/ghost/vehicles", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorStatusCodes(t *testing.T) {
	s := newTestServer(t)
	d := addDriver(t, s, "Driver", "XUV", "xa-1")
	offer(t, s, d, "xa-1", "a", "b", 1)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"duplicate vehicle", "POST", "/api/v1/users/" + d + "/vehicles", addVehicleRequest{Category: "XUV", Number: "xa-1", Seats: 4}, http.StatusBadRequest},
		{"vehicle for unknown user", "POST", "/api/v1/users/ghost/vehicles", addVehicleRequest{Category: "XUV", Number: "xa-2", Seats: 4}, http.StatusNotFound},
		{"vehicle in use", "POST", "/api/v1/rides", offerRideRequest{UserID: d, VehicleNumber: "xa-1", Origin: "b", Destination: "c", Seats: 1}, http.StatusConflict},
		{"unknown vehicle", "POST", "/api/v1/rides", offerRideRequest{UserID: d, VehicleNumber: "nope", Origin: "b", Destination: "c", Seats: 1}, http.StatusConflict},
		{"non-positive seats", "POST", "/api/v1/rides", offerRideRequest{UserID: d, VehicleNumber: "xa-1", Origin: "b", Destination: "c", Seats: -1}, http.StatusBadRequest},
		{"unknown ride", "POST", "/api/v1/rides/missing/cancel", nil, http.StatusNotFound},
		{"unknown rider", "POST", "/api/v1/rides/select", selectRideRequest{RiderID: "ghost", Origin: "a", Destination: "b"}, http.StatusNotFound},
		{"bad json", "POST", "/api/v1/users", "{", http.StatusBadRequest},
		{"unknown user stats", "GET", "/api/v1/users/ghost/stats", nil, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, s, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestSameLocationSelectReturnsEmptyPath(t *testing.T) {
	s := newTestServer(t)
	p := addUser(t, s, "P")
	rec := do(t, s, "POST", "/api/v1/rides/select", selectRideRequest{RiderID: p, Origin: "x", Destination: "x", Seats: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"legs":[]}`, rec.Body.String())
}

func TestHealthzAndRequestID(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, "GET", "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestWebsocketReceivesSelection(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s)
	defer srv.Close()

	d := addDriver(t, s, "Driver", "XUV", "xa-1")
	p := addUser(t, s, "Passenger")
	rideID := offer(t, s, d, "xa-1", "a", "b", 2)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/"+d, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.WSReg.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, ok, err := s.Engine.SelectRide(context.Background(), engine.SelectCommand{RiderID: p, Origin: "a", Destination: "b", Seats: 1})
	require.NoError(t, err)
	require.True(t, ok)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var notice dispatch.SelectionNotice
	require.NoError(t, conn.ReadJSON(&notice))
	assert.Equal(t, rideID, notice.Selection.RideID)
	assert.Equal(t, 1, notice.Remaining)
}

func TestWebsocketRejectsUnknownUser(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, "GET", "/ws/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
