package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/krustylabs/krusty-host/job"
	"github.com/krustylabs/krusty-host/kinematics"
	"github.com/krustylabs/krusty-host/mathx"
	"github.com/krustylabs/krusty-host/planner"
	"github.com/krustylabs/krusty-host/server"
)

func newTestControlServer(t *testing.T) (*server.ControlServer, *planner.Planner) {
	t.Helper()
	cfg := planner.Config{
		MaxVelocity:         mathx.Position{500, 500, 500, 500},
		MaxAcceleration:     mathx.Position{1000, 1000, 1000, 1000},
		MaxJerk:             mathx.Position{500, 500, 500, 500},
		JunctionDeviation:   0.05,
		MinimumStepDistance: 0.001,
		LookaheadBufferSize: 4,
	}
	p := planner.New(cfg, mathx.Position{0, 0, 0, 0})
	p.Start()
	mgr := job.NewManager(nil)
	return server.NewControlServer(p, mgr), p
}

func TestControlServerStatus(t *testing.T) {
	cs, _ := newTestControlServer(t)
	r := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	cs.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", w.Code)
	}
	var resp server.StatusResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.EmergencyStop {
		t.Fatal("emergency stop should start cleared")
	}
}

func TestControlServerMove(t *testing.T) {
	cs, p := newTestControlServer(t)
	body := strings.NewReader(`{"x":10,"y":0,"z":0,"feedrate":100}`)
	r := httptest.NewRequest(http.MethodPost, "/move", body)
	w := httptest.NewRecorder()
	cs.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("move status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if p.Len() != 1 {
		t.Fatalf("planner queue len = %d, want 1", p.Len())
	}
}

// Emergency stop must cancel in-flight motion and gate home/move/resume
// until explicitly cleared, the way the teacher's Locker gates a whole
// HTTPer behind a boolean lock.
func TestControlServerEmergencyStopGatesMotion(t *testing.T) {
	cs, p := newTestControlServer(t)
	if err := p.PlanMove(mathx.Position{10, 0, 0, 0}, 100, planner.Print); err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest(http.MethodPost, "/emergency_stop", nil)
	w := httptest.NewRecorder()
	cs.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("emergency_stop status = %d, want 200", w.Code)
	}
	if p.Len() != 0 {
		t.Fatalf("planner queue len after e-stop = %d, want 0", p.Len())
	}

	body := strings.NewReader(`{"x":1,"y":0,"z":0,"feedrate":10}`)
	r2 := httptest.NewRequest(http.MethodPost, "/move", body)
	w2 := httptest.NewRecorder()
	cs.Router().ServeHTTP(w2, r2)
	if w2.Code != http.StatusLocked {
		t.Fatalf("move while e-stopped status = %d, want 423", w2.Code)
	}

	r3 := httptest.NewRequest(http.MethodPost, "/clear_emergency_stop", nil)
	w3 := httptest.NewRecorder()
	cs.Router().ServeHTTP(w3, r3)
	if w3.Code != http.StatusOK {
		t.Fatalf("clear_emergency_stop status = %d, want 200", w3.Code)
	}

	body2 := strings.NewReader(`{"x":1,"y":0,"z":0,"feedrate":10}`)
	r4 := httptest.NewRequest(http.MethodPost, "/move", body2)
	w4 := httptest.NewRecorder()
	cs.Router().ServeHTTP(w4, r4)
	if w4.Code != http.StatusOK {
		t.Fatalf("move after clearing e-stop status = %d, want 200", w4.Code)
	}
}

func TestControlServerQueueStateEnvelope(t *testing.T) {
	cs, _ := newTestControlServer(t)
	r := httptest.NewRequest(http.MethodGet, "/status/queue_state", nil)
	w := httptest.NewRecorder()
	cs.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("queue_state status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "str") {
		t.Fatalf("queue_state body %q should use the str envelope field", w.Body.String())
	}
}
