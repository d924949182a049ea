// Package server exposes the motion pipeline over HTTP: a chi-routed
// control surface for pause/resume/cancel/emergency-stop/home/move
// operations, and a goji-routed job-queue REST surface (jobs.go). Both
// routers reuse the generichttp JSON envelope helpers the teacher's
// device wrappers already define, rather than hand-rolling a second
// encoding convention.
package server

import (
	"encoding/json"
	"go/types"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/krustylabs/krusty-host/generichttp"
	"github.com/krustylabs/krusty-host/job"
	"github.com/krustylabs/krusty-host/kerrors"
	"github.com/krustylabs/krusty-host/mathx"
	"github.com/krustylabs/krusty-host/planner"
)

// MoveRequest is the JSON body for POST /move: an absolute target
// position and the requested feedrate.
type MoveRequest struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	E        float64 `json:"e"`
	Feedrate float64 `json:"feedrate"`
}

// StatusResponse summarizes the planner and job manager for GET /status.
type StatusResponse struct {
	QueueState   string  `json:"queue_state"`
	QueueLen     int     `json:"queue_len"`
	CurrentX     float64 `json:"current_x"`
	CurrentY     float64 `json:"current_y"`
	CurrentZ     float64 `json:"current_z"`
	CurrentE     float64 `json:"current_e"`
	EmergencyStop bool   `json:"emergency_stop"`
}

// ControlServer wraps a planner and a job manager with the
// pause/resume/cancel/emergency_stop/home_all/move_to operations
// spec.md §6 names as the external control interface.
type ControlServer struct {
	plan    *planner.Planner
	jobs    *job.Manager
	estop   *EStop
}

// NewControlServer returns a ControlServer over plan and jobs, with
// its emergency-stop latch initially cleared.
func NewControlServer(plan *planner.Planner, jobs *job.Manager) *ControlServer {
	return &ControlServer{plan: plan, jobs: jobs, estop: NewEStop()}
}

// Router builds a chi.Router with every control-surface route bound,
// gated behind the emergency-stop latch for any route that commands
// motion (home, move, resume).
func (c *ControlServer) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/status", c.handleStatus)
	r.Get("/status/queue_state", c.handleQueueState)
	r.Post("/pause", c.handlePause)
	r.Post("/cancel", c.handleCancel)
	r.Post("/emergency_stop", c.handleEmergencyStop)
	r.Post("/clear_emergency_stop", c.handleClearEmergencyStop)

	gated := r.With(c.estop.Check)
	gated.Post("/resume", c.handleResume)
	gated.Post("/home", c.handleHome)
	gated.Post("/move", c.handleMove)

	return r
}

func (c *ControlServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	pos := c.plan.CurrentPosition()
	resp := StatusResponse{
		QueueState:    c.plan.QueueState().String(),
		QueueLen:      c.plan.Len(),
		CurrentX:      pos[0],
		CurrentY:      pos[1],
		CurrentZ:      pos[2],
		CurrentE:      pos[3],
		EmergencyStop: c.estop.Locked(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleQueueState answers with the teacher's generichttp envelope
// instead of the richer StatusResponse, for callers already speaking
// the {"str": ...} HumanPayload convention the device wrappers use.
func (c *ControlServer) handleQueueState(w http.ResponseWriter, r *http.Request) {
	hp := queueStateHumanPayload(c.plan.QueueState())
	hp.EncodeAndRespond(w, r)
}

func (c *ControlServer) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := c.plan.Pause(); err != nil {
		writeMotionErr(w, err)
		return
	}
	if _, err := c.jobs.Pause(); err != nil && !kerrors.IsNoJob(err) {
		writeMotionErr(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (c *ControlServer) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := c.plan.Resume(); err != nil {
		writeMotionErr(w, err)
		return
	}
	if _, err := c.jobs.Resume(); err != nil && !kerrors.IsNoJob(err) {
		writeMotionErr(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (c *ControlServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	c.plan.CancelQueue()
	if _, err := c.jobs.Cancel(); err != nil && !kerrors.IsNoJob(err) {
		writeMotionErr(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleEmergencyStop immediately cancels the queue and trips the
// latch gating home/move/resume, the way the teacher's Locker
// middleware gates a whole HTTPer behind a boolean lock.
func (c *ControlServer) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	c.plan.CancelQueue()
	c.estop.Lock()
	w.WriteHeader(http.StatusOK)
}

func (c *ControlServer) handleClearEmergencyStop(w http.ResponseWriter, r *http.Request) {
	c.estop.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (c *ControlServer) handleHome(w http.ResponseWriter, r *http.Request) {
	if err := c.plan.PlanHome(); err != nil {
		writeMotionErr(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (c *ControlServer) handleMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	target := mathx.Position{req.X, req.Y, req.Z, req.E}
	if err := c.plan.PlanMove(target, req.Feedrate, planner.Print); err != nil {
		writeMotionErr(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeMotionErr(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// queueStateHumanPayload renders a QueueState through the teacher's
// generichttp envelope, for callers that want the {"str": ...} shape
// instead of the richer StatusResponse.
func queueStateHumanPayload(state planner.QueueState) generichttp.HumanPayload {
	return generichttp.HumanPayload{T: types.String, String: state.String()}
}
