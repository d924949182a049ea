package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/krustylabs/krusty-host/gcode"
	"github.com/krustylabs/krusty-host/job"
	"github.com/krustylabs/krusty-host/server"
)

func newTestJobServer() *server.JobServer {
	cfg := gcode.ParserConfig{EnableComments: true, EnableChecksums: true, EnableInfix: true, EnableMacros: true, EnableVendorExtensions: true}
	table := gcode.NewMacroTable(cfg)
	expander := gcode.NewMacroExpander(table)
	manager := job.NewManager(nil)
	return server.NewJobServer(manager, expander)
}

func TestJobServerEnqueueAndStatus(t *testing.T) {
	js := newTestJobServer()
	mux := js.Mux()

	body := strings.NewReader("G28\nG1 X10 Y10\n")
	r := httptest.NewRequest(http.MethodPost, "/jobs", body)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("enqueue status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var enqueued server.JobStatusResponse
	if err := json.NewDecoder(w.Body).Decode(&enqueued); err != nil {
		t.Fatalf("decode enqueue response: %v", err)
	}
	if enqueued.ID != 1 {
		t.Fatalf("enqueued job id = %d, want 1", enqueued.ID)
	}

	r2 := httptest.NewRequest(http.MethodGet, "/jobs/status", nil)
	w2 := httptest.NewRecorder()
	mux.ServeHTTP(w2, r2)
	if w2.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", w2.Code)
	}
	var status server.JobStatusResponse
	if err := json.NewDecoder(w2.Body).Decode(&status); err != nil {
		t.Fatalf("decode status response: %v", err)
	}
	if status.State != "Queued" {
		t.Errorf("job state = %q, want Queued", status.State)
	}
}

func TestJobServerStartPauseResumeCancel(t *testing.T) {
	js := newTestJobServer()
	mux := js.Mux()

	post := func(path string) int {
		r := httptest.NewRequest(http.MethodPost, path, nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		return w.Code
	}

	enqueue := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader("G28\n"))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, enqueue)
	if w.Code != http.StatusOK {
		t.Fatalf("enqueue status = %d, want 200", w.Code)
	}

	if code := post("/jobs/pause"); code != http.StatusConflict {
		t.Fatalf("pause before start = %d, want 409 (not yet running)", code)
	}
	if code := post("/jobs/start"); code != http.StatusOK {
		t.Fatalf("start status = %d, want 200", code)
	}
	if code := post("/jobs/pause"); code != http.StatusOK {
		t.Fatalf("pause status = %d, want 200", code)
	}
	if code := post("/jobs/resume"); code != http.StatusOK {
		t.Fatalf("resume status = %d, want 200", code)
	}
	if code := post("/jobs/cancel"); code != http.StatusOK {
		t.Fatalf("cancel status = %d, want 200", code)
	}
	if code := post("/jobs/cancel"); code != http.StatusConflict {
		t.Fatalf("cancel on an already-cancelled job = %d, want 409", code)
	}
}
