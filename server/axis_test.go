package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/krustylabs/krusty-host/kinematics"
	"github.com/krustylabs/krusty-host/mathx"
	"github.com/krustylabs/krusty-host/server"
)

type fakeEnabler struct {
	state map[string]bool
}

func newFakeEnabler() *fakeEnabler { return &fakeEnabler{state: map[string]bool{}} }

func (f *fakeEnabler) Enable(axis string) error  { f.state[axis] = true; return nil }
func (f *fakeEnabler) Disable(axis string) error { f.state[axis] = false; return nil }
func (f *fakeEnabler) GetEnabled(axis string) (bool, error) {
	return f.state[axis], nil
}

func newTestAxisServer() (*server.AxisServer, *fakeEnabler) {
	enabler := newFakeEnabler()
	limits := kinematics.AxisLimits{
		{Min: -10000, Max: 10000},
		{Min: -10000, Max: 10000},
		{Min: 0, Max: 1000},
	}
	return server.NewAxisServer(enabler, limits), enabler
}

func TestAxisServerEnableDisable(t *testing.T) {
	as, enabler := newTestAxisServer()
	r := as.Router()

	body := strings.NewReader(`{"bool": true}`)
	req := httptest.NewRequest(http.MethodPost, "/axis/X/enabled", body)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("enable status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if enabled, _ := enabler.GetEnabled("X"); !enabled {
		t.Fatalf("axis X not enabled after POST")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/axis/X/enabled", nil)
	getW := httptest.NewRecorder()
	r.ServeHTTP(getW, getReq)
	if getW.Code != http.StatusOK {
		t.Fatalf("get enabled status = %d, want 200", getW.Code)
	}
}

func TestAxisServerLimits(t *testing.T) {
	as, _ := newTestAxisServer()
	r := as.Router()

	req := httptest.NewRequest(http.MethodGet, "/axis/Z/limits", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("limits status = %d, want 200", w.Code)
	}
	var lim mathx.Limiter
	if err := json.NewDecoder(w.Body).Decode(&lim); err != nil {
		t.Fatalf("decode limits: %v", err)
	}
	if lim.Max != 1000 {
		t.Errorf("Z max limit = %v, want 1000", lim.Max)
	}
}

func TestAxisServerUnknownAxisLimits(t *testing.T) {
	as, _ := newTestAxisServer()
	r := as.Router()

	req := httptest.NewRequest(http.MethodGet, "/axis/Q/limits", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with a null body", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "null" {
		t.Errorf("body = %q, want null", w.Body.String())
	}
}
