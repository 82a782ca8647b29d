package httpapi

import (
	"net/http"

	"github.com/yuqie6/lifemap/internal/model"
	"github.com/yuqie6/lifemap/internal/pkg/apperr"
	"github.com/yuqie6/lifemap/internal/service"
)

func (a *apiServer) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p := a.deps.Store.Profile()
	if p == nil {
		writeAppError(w, r, apperr.NotFound("프로필을 먼저 설정해주세요."))
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

func (a *apiServer) handleCompleteProfile(w http.ResponseWriter, r *http.Request) {
	var req model.UserProfile
	if err := readJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "잘못된 요청입니다.")
		return
	}
	p, err := a.deps.App.CompleteProfile(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, p)
}

// ========== 重置 ==========

type tokenRequest struct {
	Token string `json:"token"`
}

func (a *apiServer) handleArmReset(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusAccepted, a.deps.Confirm.Arm(service.ActionReset, ""))
}

func (a *apiServer) handleConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := readJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "잘못된 요청입니다.")
		return
	}
	if _, ok := a.deps.Confirm.Confirm(req.Token, service.ActionReset); !ok {
		writeAppError(w, r, apperr.Conflict(msgConfirmInvalid, nil))
		return
	}
	if err := a.deps.App.Reset(r.Context()); err != nil {
		writeAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, a.deps.App.State())
}

func (a *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := readJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "잘못된 요청입니다.")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"cancelled": a.deps.Confirm.Cancel(req.Token)})
}
