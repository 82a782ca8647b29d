package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yuqie6/lifemap/internal/pkg/apperr"
)

const msgRequestFailed = "요청을 처리하지 못했습니다. 잠시 후 다시 시도해주세요."

const maxJSONBytes = 1 << 20

// APIError 错误响应体，error 为面向用户的韩文提示
type APIError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

// WriteJSON 将数据序列化为 JSON 并写入响应
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError 写入错误响应
func WriteError(w http.ResponseWriter, status int, msg string) {
	if strings.TrimSpace(msg) == "" {
		msg = http.StatusText(status)
	}
	WriteJSON(w, status, APIError{Error: msg})
}

// writeAppError 按错误类别映射状态码
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("请求处理失败", "path", r.URL.Path, "error", err)
	} else {
		slog.Debug("请求被拒绝", "path", r.URL.Path, "error", err)
	}
	body := APIError{
		Error: apperr.UserMessage(err, msgRequestFailed),
		Code:  string(apperr.KindOf(err)),
	}
	var e *apperr.Error
	if errors.As(err, &e) {
		body.Field = e.Field
	}
	WriteJSON(w, status, body)
}

// readJSON 从请求体读取并解析 JSON
func readJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// readJSONLimit 同 readJSON，但超过 limit 时返回 *http.MaxBytesError
func readJSONLimit(w http.ResponseWriter, r *http.Request, out any, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}
