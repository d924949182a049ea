package server

import (
	"encoding/json"
	"go/types"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/krustylabs/krusty-host/generichttp"
	"github.com/krustylabs/krusty-host/kinematics"
)

// AxisEnabler is satisfied by mcu.Link: enabling or disabling a named
// axis's stepper driver.
type AxisEnabler interface {
	Enable(axis string) error
	Disable(axis string) error
	GetEnabled(axis string) (bool, error)
}

// AxisServer exposes per-axis enable/disable and the configured
// software limits over chi, the per-resource routing style the newer
// motion wrapper files used for the same two concerns.
type AxisServer struct {
	enabler AxisEnabler
	limits  kinematics.AxisLimits
}

// NewAxisServer returns an AxisServer backed by enabler for stepper
// enable state and limits for the X/Y/Z software travel limits.
func NewAxisServer(enabler AxisEnabler, limits kinematics.AxisLimits) *AxisServer {
	return &AxisServer{enabler: enabler, limits: limits}
}

func (a *AxisServer) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/axis/{axis}/enabled", a.handleGetEnabled)
	r.Post("/axis/{axis}/enabled", a.handleSetEnabled)
	r.Get("/axis/{axis}/limits", a.handleLimits)
	return r
}

func (a *AxisServer) handleGetEnabled(w http.ResponseWriter, r *http.Request) {
	axis := chi.URLParam(r, "axis")
	enabled, err := a.enabler.GetEnabled(axis)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hp := generichttp.HumanPayload{T: types.Bool, Bool: enabled}
	hp.EncodeAndRespond(w, r)
}

func (a *AxisServer) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	axis := chi.URLParam(r, "axis")
	var body generichttp.HumanPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var err error
	if body.Bool {
		err = a.enabler.Enable(axis)
	} else {
		err = a.enabler.Disable(axis)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// axisIndex maps the conventional X/Y/Z axis letter to its kinematics.AxisLimits slot.
func axisIndex(axis string) (int, bool) {
	switch axis {
	case "x", "X":
		return 0, true
	case "y", "Y":
		return 1, true
	case "z", "Z":
		return 2, true
	default:
		return 0, false
	}
}

func (a *AxisServer) handleLimits(w http.ResponseWriter, r *http.Request) {
	axis := chi.URLParam(r, "axis")
	idx, ok := axisIndex(axis)
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		json.NewEncoder(w).Encode(nil)
		return
	}
	json.NewEncoder(w).Encode(a.limits[idx])
}
