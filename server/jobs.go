package server

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"

	"goji.io"
	"goji.io/pat"

	"github.com/krustylabs/krusty-host/gcode"
	"github.com/krustylabs/krusty-host/generichttp"
	"github.com/krustylabs/krusty-host/job"
	"github.com/krustylabs/krusty-host/kerrors"
)

// JobStatusResponse is the GET /jobs/status payload.
type JobStatusResponse struct {
	ID       uint64 `json:"id"`
	State    string `json:"state"`
	QueueLen int    `json:"queue_len"`
}

// JobServer is a goji.io-routed HTTPer wrapping a job.Manager with the
// enqueue/start/pause/resume/cancel/status REST surface, built the way
// multiserver.Config.BuildMux binds one device HTTPer per stem: here
// there is exactly one stem, the job queue itself.
type JobServer struct {
	manager  *job.Manager
	expander *gcode.MacroExpander
}

// NewJobServer returns a JobServer enqueuing onto manager, expanding
// raw G-code text bodies through expander before parsing.
func NewJobServer(manager *job.Manager, expander *gcode.MacroExpander) *JobServer {
	return &JobServer{manager: manager, expander: expander}
}

// RT satisfies generichttp.HTTPer, the interface multiserver's
// BuildMux binds every configured device through.
func (j *JobServer) RT() generichttp.RouteTable {
	rt := generichttp.RouteTable{}
	rt[pat.Post("/jobs")] = j.handleEnqueue
	rt[pat.Post("/jobs/start")] = j.handleStart
	rt[pat.Post("/jobs/pause")] = j.handlePause
	rt[pat.Post("/jobs/resume")] = j.handleResume
	rt[pat.Post("/jobs/cancel")] = j.handleCancel
	rt[pat.Get("/jobs/status")] = j.handleStatus
	return rt
}

// Mux builds a standalone goji.Mux serving this JobServer at its
// routes' own paths, for callers that don't need multiserver's
// multi-device stem nesting.
func (j *JobServer) Mux() *goji.Mux {
	mux := goji.NewMux()
	j.RT().Bind(mux)
	return mux
}

func (j *JobServer) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var items []job.StreamItem
	scanner := bufio.NewScanner(r.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		cmds, err := j.expander.ExpandAndParse(line)
		if err != nil {
			items = append(items, job.StreamItem{Err: err})
			continue
		}
		for _, c := range cmds {
			items = append(items, job.StreamItem{Command: c})
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := j.manager.EnqueueFromStream(items)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(JobStatusResponse{ID: id, QueueLen: j.manager.Len()})
}

func (j *JobServer) handleStart(w http.ResponseWriter, r *http.Request) {
	id, err := j.manager.StartNext()
	j.writeTransition(w, id, err)
}

func (j *JobServer) handlePause(w http.ResponseWriter, r *http.Request) {
	id, err := j.manager.Pause()
	j.writeTransition(w, id, err)
}

func (j *JobServer) handleResume(w http.ResponseWriter, r *http.Request) {
	id, err := j.manager.Resume()
	j.writeTransition(w, id, err)
}

func (j *JobServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := j.manager.Cancel()
	j.writeTransition(w, id, err)
}

func (j *JobServer) writeTransition(w http.ResponseWriter, id uint64, err error) {
	if err != nil {
		if kerrors.IsNoJob(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if kerrors.IsInvalidTransition(err) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(JobStatusResponse{ID: id, QueueLen: j.manager.Len()})
}

func (j *JobServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := JobStatusResponse{QueueLen: j.manager.Len()}
	if jb, ok := j.manager.Head(); ok {
		resp.ID = jb.ID
		resp.State = jb.State().String()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
