package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yuqie6/lifemap/internal/service"
)

type apiServer struct {
	deps       Deps
	startTime  time.Time
	now        func() time.Time
	draftLimit int64
}

func newAPI(deps Deps) *apiServer {
	return &apiServer{deps: deps, startTime: time.Now(), now: time.Now, draftLimit: maxDraftBodyBytes}
}

func (a *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"name":       a.deps.Name,
		"version":    a.deps.Version,
		"started_at": a.startTime.Format(time.RFC3339),
	})
}

func (a *apiServer) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "stream not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	sub := a.deps.Hub.Subscribe(ctx, 64)

	_, _ = io.WriteString(w, "event: ready\n")
	_, _ = io.WriteString(w, "data: {}\n\n")
	flusher.Flush()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, "event: ping\n")
			_, _ = io.WriteString(w, "data: {}\n\n")
			flusher.Flush()
		case evt, ok := <-sub:
			if !ok {
				return
			}
			b, _ := json.Marshal(evt)
			_, _ = io.WriteString(w, "event: "+sanitizeSSEName(evt.Type)+"\n")
			_, _ = io.WriteString(w, "data: ")
			_, _ = w.Write(b)
			_, _ = io.WriteString(w, "\n\n")
			flusher.Flush()
		}
	}
}

func sanitizeSSEName(name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return "message"
	}
	n = strings.ReplaceAll(n, "\n", "")
	n = strings.ReplaceAll(n, "\r", "")
	return n
}

// StateDTO 界面状态 + 进行中的远端动作
type StateDTO struct {
	service.AppState
	HasProfile  bool            `json:"hasProfile"`
	ActiveCount int             `json:"activeCount"`
	Busy        map[string]bool `json:"busy"`
}

func (a *apiServer) handleState(w http.ResponseWriter, r *http.Request) {
	busy := map[string]bool{}
	for _, action := range []string{service.ActionAnalyze, service.ActionChecklist, service.ActionImport} {
		busy[action] = a.deps.Insight != nil && a.deps.Insight.InFlight(action)
	}
	WriteJSON(w, http.StatusOK, StateDTO{
		AppState:    a.deps.App.State(),
		HasProfile:  a.deps.Store.Profile() != nil,
		ActiveCount: len(service.ActiveExperiences(a.deps.Store.Experiences())),
		Busy:        busy,
	})
}

func (a *apiServer) handleGuide(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"guide": service.RandomGuide()})
}

func (a *apiServer) handleTimeline(w http.ResponseWriter, r *http.Request) {
	view := service.BuildTimeline(a.deps.Store.Profile(), a.deps.Store.Experiences(), a.now())
	WriteJSON(w, http.StatusOK, view)
}

// queryInt 解析查询参数，缺省或非法时返回 0
func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil {
		return 0
	}
	return v
}
