package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yuqie6/lifemap/internal/model"
	"github.com/yuqie6/lifemap/internal/pkg/apperr"
	"github.com/yuqie6/lifemap/internal/service"
)

const (
	msgExperienceNotFound = "해당 경험을 찾을 수 없습니다."
	msgConfirmInvalid     = "확인 요청이 유효하지 않습니다. 다시 시도해주세요."
	msgFileRequired       = "파일을 선택해주세요."
	msgBadRequest         = "잘못된 요청입니다."

	// 上传请求体上限，附件本身的上限由 AttachmentService 校验
	maxUploadBytes  = 32 << 20
	multipartMemory = 8 << 20
	defaultFormSlot = "form"

	// 草稿请求体上限：附件以 base64 data URL 内联（约 4/3 膨胀），
	// 单个请求最多容纳 maxDraftAttachments 个满额附件
	maxDraftAttachments = 8
	maxDraftBodyBytes   = maxDraftAttachments*(model.MaxAttachmentBytes/3*4+64) + maxJSONBytes
)

// readDraft 解析草稿请求体，失败时已写入响应
func (a *apiServer) readDraft(w http.ResponseWriter, r *http.Request) (model.Draft, bool) {
	var draft model.Draft
	if err := readJSONLimit(w, r, &draft, a.draftLimit); err != nil {
		if isTooLarge(err) {
			WriteError(w, http.StatusRequestEntityTooLarge, a.deps.Attachments.TooLargeMessage())
			return draft, false
		}
		WriteError(w, http.StatusBadRequest, msgBadRequest)
		return draft, false
	}
	return draft, true
}

func (a *apiServer) handleListExperiences(w http.ResponseWriter, r *http.Request) {
	list := a.deps.Store.Experiences()
	switch r.URL.Query().Get("filter") {
	case "active":
		list = service.ActiveExperiences(list)
	case "trash":
		list = service.TrashedExperiences(list)
	}
	WriteJSON(w, http.StatusOK, list)
}

func (a *apiServer) handleNewDraft(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, service.NewDraft(queryInt(r, "year"), a.now()))
}

func (a *apiServer) handleGetExperience(w http.ResponseWriter, r *http.Request) {
	e, ok := a.deps.Store.Find(chi.URLParam(r, "id"))
	if !ok {
		writeAppError(w, r, apperr.NotFound(msgExperienceNotFound))
		return
	}
	WriteJSON(w, http.StatusOK, e)
}

func (a *apiServer) handleCreateExperience(w http.ResponseWriter, r *http.Request) {
	draft, ok := a.readDraft(w, r)
	if !ok {
		return
	}
	e, err := a.deps.Lifecycle.Create(r.Context(), draft)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, e)
}

func (a *apiServer) handleUpdateExperience(w http.ResponseWriter, r *http.Request) {
	draft, ok := a.readDraft(w, r)
	if !ok {
		return
	}
	e, err := a.deps.Lifecycle.Update(r.Context(), chi.URLParam(r, "id"), draft)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if e == nil {
		writeAppError(w, r, apperr.NotFound(msgExperienceNotFound))
		return
	}
	WriteJSON(w, http.StatusOK, e)
}

func (a *apiServer) handleTrash(w http.ResponseWriter, r *http.Request) {
	a.touch(w, r, a.deps.Lifecycle.SoftDelete)
}

func (a *apiServer) handleRestore(w http.ResponseWriter, r *http.Request) {
	a.touch(w, r, a.deps.Lifecycle.Restore)
}

func (a *apiServer) touch(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) (bool, error)) {
	id := chi.URLParam(r, "id")
	found, err := fn(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !found {
		writeAppError(w, r, apperr.NotFound(msgExperienceNotFound))
		return
	}
	e, _ := a.deps.Store.Find(id)
	WriteJSON(w, http.StatusOK, e)
}

func (a *apiServer) handleArmPurge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := a.deps.Store.Find(id); !ok {
		writeAppError(w, r, apperr.NotFound(msgExperienceNotFound))
		return
	}
	WriteJSON(w, http.StatusAccepted, a.deps.Confirm.Arm(service.ActionPurge, id))
}

func (a *apiServer) handleConfirmPurge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req tokenRequest
	if err := readJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	p, ok := a.deps.Confirm.Confirm(req.Token, service.ActionPurge)
	if !ok || p.Target != id {
		writeAppError(w, r, apperr.Conflict(msgConfirmInvalid, nil))
		return
	}
	found, err := a.deps.Lifecycle.PermanentDelete(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !found {
		writeAppError(w, r, apperr.NotFound(msgExperienceNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ========== 附件与表单预填 ==========

// uploadedFile 读取 multipart 中的 file 字段
type uploadedFile struct {
	Name string
	Type string
	Size int64
	Body io.ReadCloser
}

func (a *apiServer) readUpload(w http.ResponseWriter, r *http.Request) (*uploadedFile, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			WriteError(w, http.StatusRequestEntityTooLarge, a.deps.Attachments.TooLargeMessage())
			return nil, false
		}
		WriteError(w, http.StatusBadRequest, msgFileRequired)
		return nil, false
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, msgFileRequired)
		return nil, false
	}
	return &uploadedFile{
		Name: header.Filename,
		Type: header.Header.Get("Content-Type"),
		Size: header.Size,
		Body: f,
	}, true
}

func (a *apiServer) handleCaptureAttachment(w http.ResponseWriter, r *http.Request) {
	up, ok := a.readUpload(w, r)
	if !ok {
		return
	}
	defer up.Body.Close()

	slot := strings.TrimSpace(r.FormValue("slot"))
	if slot == "" {
		slot = defaultFormSlot
	}
	att, err := a.deps.Attachments.Capture(slot, up.Name, up.Type, up.Size, up.Body)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, att)
}

func (a *apiServer) handleExtractDraft(w http.ResponseWriter, r *http.Request) {
	up, ok := a.readUpload(w, r)
	if !ok {
		return
	}
	defer up.Body.Close()

	var draft model.Draft
	if raw := strings.TrimSpace(r.FormValue("draft")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &draft); err != nil {
			WriteError(w, http.StatusBadRequest, msgBadRequest)
			return
		}
	}
	data, err := io.ReadAll(up.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, msgFileRequired)
		return
	}
	out, err := a.deps.Insight.ExtractDraft(r.Context(), draft, up.Name, up.Type, data)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}
