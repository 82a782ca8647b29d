package httpapi

import (
	"io"
	"net/http"

	"github.com/yuqie6/lifemap/internal/model"
	"github.com/yuqie6/lifemap/internal/service"
)

func (a *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	res, err := a.deps.App.Analyze(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (a *apiServer) handleShowAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.App.ShowAnalysis(); err != nil {
		writeAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, a.deps.App.State())
}

func (a *apiServer) handleBack(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.App.Back(); err != nil {
		writeAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, a.deps.App.State())
}

type checklistRequest struct {
	Action string `json:"action"`
}

func (a *apiServer) handleChecklist(w http.ResponseWriter, r *http.Request) {
	var req checklistRequest
	if err := readJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	items := a.deps.Insight.GenerateChecklist(r.Context(), req.Action)
	WriteJSON(w, http.StatusOK, map[string]any{"action": req.Action, "items": items})
}

// ========== 导入 ==========

func (a *apiServer) handleImportFile(w http.ResponseWriter, r *http.Request) {
	up, ok := a.readUpload(w, r)
	if !ok {
		return
	}
	defer up.Body.Close()

	data, err := io.ReadAll(up.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, msgFileRequired)
		return
	}
	created, err := a.deps.Insight.ImportFile(r.Context(), up.Name, up.Type, data)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

type importURLRequest struct {
	URL string `json:"url"`
}

func (a *apiServer) handleImportURL(w http.ResponseWriter, r *http.Request) {
	var req importURLRequest
	if err := readJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	created, err := a.deps.Insight.ImportURL(r.Context(), req.URL)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

// ========== 快速添加 ==========

func (a *apiServer) handleListCards(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, service.SituationCards())
}

type addCardsRequest struct {
	IDs []string `json:"ids"`
}

func (a *apiServer) handleAddCards(w http.ResponseWriter, r *http.Request) {
	var req addCardsRequest
	if err := readJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	created, err := a.deps.QuickAdd.AddCards(r.Context(), req.IDs)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

func (a *apiServer) handleListMilestones(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, service.Milestones())
}

type addMilestonesRequest struct {
	Answers []model.MilestoneAnswer `json:"answers"`
}

func (a *apiServer) handleAddMilestones(w http.ResponseWriter, r *http.Request) {
	var req addMilestonesRequest
	if err := readJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	created, err := a.deps.QuickAdd.AddMilestones(r.Context(), req.Answers)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}
