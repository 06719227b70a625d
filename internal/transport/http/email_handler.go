package httptransport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"opsdash/backend/internal/domain"
	"opsdash/backend/internal/monitoring"
	"opsdash/backend/internal/service"
)

// EmailHandler 邮件收件箱端点处理器。
//
// 同一组处理函数同时挂载在 /api/emails 和遗留的
// /api/n8n-webhook 路径下，两边行为完全一致。
type EmailHandler struct {
	emails  *service.EmailService
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewEmailHandler 创建邮件处理器。
func NewEmailHandler(emails *service.EmailService, metrics *monitoring.Metrics, log *zap.Logger) *EmailHandler {
	return &EmailHandler{emails: emails, metrics: metrics, log: log}
}

// ListEmails 返回按接收时间倒序排列的全部邮件。
func (h *EmailHandler) ListEmails(c *gin.Context) {
	records, err := h.emails.List()
	if err != nil {
		h.log.Error("failed to list emails", zap.Error(err))
		Fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []domain.EmailRecord{}
	}
	c.JSON(http.StatusOK, emailListResponse{Emails: records})
}

// IngestEmails 接收 webhook 载荷，规范化后入库。
//
// 手动解码而不走 ShouldBindJSON：需要 UseNumber 保证数值型
// message_id 原样透传，不被转成浮点。
func (h *EmailHandler) IngestEmails(c *gin.Context) {
	raw, err := decodePayload(c.Request.Body)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordInvalidPayload()
		}
		FailValidation(c, MsgInvalidPayload, []domain.FieldIssue{
			{Field: "(root)", Message: "request body must be valid JSON"},
		})
		return
	}

	records, err := h.emails.Ingest(raw)
	if err != nil {
		var invalid *domain.InvalidPayloadError
		if errors.As(err, &invalid) {
			if h.metrics != nil {
				h.metrics.RecordInvalidPayload()
			}
			FailValidation(c, MsgInvalidPayload, invalid.Issues)
			return
		}
		h.log.Error("failed to ingest emails", zap.Error(err))
		Fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	if len(records) == 0 {
		Fail(c, http.StatusBadRequest, MsgNoEmailData)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordEmailsIngested(len(records))
	}
	c.JSON(http.StatusOK, ingestResponse{
		Message: fmt.Sprintf("%d email(s) processed.", len(records)),
		Emails:  records,
	})
}

// ApplyAction 对指定邮件执行 reply/archive/delete 动作。
func (h *EmailHandler) ApplyAction(c *gin.Context) {
	emailID := c.Param("emailId")

	input, issues := parseActionRequest(c.Request.Body)
	if len(issues) > 0 {
		FailValidation(c, MsgInvalidAction, issues)
		return
	}
	input.EmailID = emailID

	record, err := h.emails.ApplyAction(input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReplyBodyRequired):
			Fail(c, http.StatusBadRequest, MsgReplyBodyRequired)
		default:
			h.log.Error("failed to apply action",
				zap.String("action", input.Action),
				zap.String("email_id", emailID),
				zap.Error(err))
			Fail(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if h.metrics != nil {
		h.metrics.RecordAction(input.Action)
	}
	c.JSON(http.StatusOK, actionResponse{
		Message: actionMessage(input.Action),
		Email:   record,
	})
}

// decodePayload 解码任意形状的 JSON 载荷。
//
// UseNumber 让数值保持 json.Number，序列化回去时不丢精度。
func decodePayload(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// parseActionRequest 解析并校验动作请求体。
func parseActionRequest(r io.Reader) (service.ApplyActionInput, []domain.FieldIssue) {
	var input service.ApplyActionInput

	raw, err := decodePayload(r)
	if err != nil {
		return input, []domain.FieldIssue{
			{Field: "(root)", Message: "request body must be valid JSON"},
		}
	}

	body, ok := raw.(map[string]any)
	if !ok {
		return input, []domain.FieldIssue{
			{Field: "(root)", Message: "request body must be a JSON object"},
		}
	}

	var issues []domain.FieldIssue

	action, _ := body["action"].(string)
	switch action {
	case service.ActionReply, service.ActionArchive, service.ActionDelete:
		input.Action = action
	default:
		issues = append(issues, domain.FieldIssue{
			Field:   "action",
			Message: "must be one of: reply, archive, delete",
		})
	}

	// 回复内容原样透传，存储的 last_reply_body 即调用方提供的文本
	if v, present := body["replyBody"]; present {
		s, ok := v.(string)
		if !ok {
			issues = append(issues, domain.FieldIssue{
				Field:   "replyBody",
				Message: "must be a string",
			})
		}
		input.ReplyBody = s
	}

	if v, present := body["email"]; present && v != nil {
		m, ok := v.(map[string]any)
		if !ok {
			issues = append(issues, domain.FieldIssue{
				Field:   "email",
				Message: "must be a JSON object",
			})
		}
		input.Email = m
	}

	return input, issues
}

// actionMessage 返回动作对应的提示文案。
func actionMessage(action string) string {
	switch action {
	case service.ActionReply:
		return MsgReplySent
	case service.ActionArchive:
		return MsgEmailArchived
	default:
		return MsgEmailDeleted
	}
}
