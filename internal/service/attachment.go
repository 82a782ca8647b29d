package service

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/yuqie6/lifemap/internal/model"
	"github.com/yuqie6/lifemap/internal/pkg/apperr"
)

const msgSlotBusy = "파일을 읽는 중입니다. 잠시 후 다시 시도해주세요."

// AttachmentService 附件读取与编码
// 同一个槽位（表单/导入入口）同时只允许一个读取
type AttachmentService struct {
	mu       sync.Mutex
	busy     map[string]struct{}
	maxBytes int64
	newID    func() string
}

// NewAttachmentService 创建服务
func NewAttachmentService() *AttachmentService {
	return &AttachmentService{
		busy:     make(map[string]struct{}),
		maxBytes: model.MaxAttachmentBytes,
		newID:    uuid.NewString,
	}
}

// TooLargeMessage 超限提示
func (s *AttachmentService) TooLargeMessage() string {
	return tooLargeMessage(s.maxBytes)
}

func tooLargeMessage(maxBytes int64) string {
	return fmt.Sprintf("파일 크기는 %s 이하여야 합니다.", humanize.IBytes(uint64(maxBytes)))
}

// Capture 读取文件并编码为 data URL
// size 为调用方已知的文件大小（未知传 -1），超过上限直接拒绝
func (s *AttachmentService) Capture(slot, name, mimeType string, size int64, r io.Reader) (*model.Attachment, error) {
	if size > s.maxBytes {
		return nil, apperr.Validation("attachment", s.TooLargeMessage())
	}
	if !s.acquire(slot) {
		return nil, apperr.Conflict(msgSlotBusy, nil)
	}
	defer s.release(slot)

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, apperr.Validation("attachment", "파일을 읽을 수 없습니다.")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, apperr.Validation("attachment", s.TooLargeMessage())
	}
	return s.Encode(name, mimeType, data), nil
}

// Encode 直接把内存中的字节编码为附件，不做大小校验
func (s *AttachmentService) Encode(name, mimeType string, data []byte) *model.Attachment {
	mimeType = DetectMIME(mimeType, data)
	return &model.Attachment{
		ID:   s.newID(),
		Name: name,
		Type: mimeType,
		Data: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}
}

// AttachToDraft 读取并追加到草稿；失败时草稿不变
func (s *AttachmentService) AttachToDraft(draft *model.Draft, slot, name, mimeType string, size int64, r io.Reader) error {
	att, err := s.Capture(slot, name, mimeType, size, r)
	if err != nil {
		return err
	}
	draft.Attachments = append(draft.Attachments, *att)
	return nil
}

// RemoveFromDraft 按 id 移除附件
func RemoveFromDraft(draft *model.Draft, attachmentID string) bool {
	for i, a := range draft.Attachments {
		if a.ID == attachmentID {
			draft.Attachments = append(draft.Attachments[:i:i], draft.Attachments[i+1:]...)
			return true
		}
	}
	return false
}

// Busy 槽位是否正在读取
func (s *AttachmentService) Busy(slot string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.busy[slot]
	return ok
}

func (s *AttachmentService) acquire(slot string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.busy[slot]; ok {
		return false
	}
	s.busy[slot] = struct{}{}
	return true
}

func (s *AttachmentService) release(slot string) {
	s.mu.Lock()
	delete(s.busy, slot)
	s.mu.Unlock()
}

// DetectMIME 声明类型缺失或过于笼统时按内容嗅探
func DetectMIME(declared string, data []byte) string {
	declared = baseMIME(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return baseMIME(mimetype.Detect(data).String())
}

// baseMIME 去掉 charset 等参数
func baseMIME(s string) string {
	if i := strings.Index(s, ";"); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.TrimSpace(s))
}
