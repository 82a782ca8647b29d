package httpapi

import (
	"net/http"
	"strings"
)

type graphStartRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	// Sync 为 true 时同步算到稳定再返回（不推送逐帧事件）
	Sync bool `json:"sync"`
}

func (a *apiServer) handleGraphStart(w http.ResponseWriter, r *http.Request) {
	var req graphStartRequest
	if r.ContentLength != 0 {
		if err := readJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, msgBadRequest)
			return
		}
	}
	start := a.deps.Graph.Start
	if req.Sync {
		start = a.deps.Graph.Layout
	}
	frame, err := start(a.deps.App.State().Result, req.Width, req.Height)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, frame)
}

func (a *apiServer) handleGraphFrame(w http.ResponseWriter, r *http.Request) {
	frame, err := a.deps.Graph.Frame()
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, frame)
}

type graphDragRequest struct {
	ID    string  `json:"id"`
	Phase string  `json:"phase"` // start | move | end
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

func (a *apiServer) handleGraphDrag(w http.ResponseWriter, r *http.Request) {
	var req graphDragRequest
	if err := readJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	var err error
	switch strings.ToLower(strings.TrimSpace(req.Phase)) {
	case "start":
		err = a.deps.Graph.DragStart(req.ID)
	case "move":
		err = a.deps.Graph.DragMove(req.ID, req.X, req.Y)
	case "end":
		err = a.deps.Graph.DragEnd(req.ID)
	default:
		WriteError(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *apiServer) handleGraphStop(w http.ResponseWriter, r *http.Request) {
	a.deps.Graph.Close()
	w.WriteHeader(http.StatusNoContent)
}
