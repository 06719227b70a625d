package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"opsdash/backend/internal/domain"
)

// 面向操作台前端的提示文案。
// 前端会把非 2xx 响应里的 message 字段直接展示给操作员，
// 文案固定，改动会直接影响界面。
const (
	MsgNoEmailData       = "No email data provided."
	MsgInvalidPayload    = "Invalid email payload"
	MsgInvalidAction     = "Invalid action payload"
	MsgReplyBodyRequired = "Reply body is required for the reply action."
	MsgReplySent         = "Reply sent."
	MsgEmailArchived     = "Email archived."
	MsgEmailDeleted      = "Email deleted."
	MsgInternalError     = "Internal server error"
	MsgUpstreamNotSet    = "Upstream service is not configured."
)

// emailListResponse 邮件列表响应
type emailListResponse struct {
	Emails []domain.EmailRecord `json:"emails"`
}

// ingestResponse 摄取成功响应
type ingestResponse struct {
	Message string               `json:"message"`
	Emails  []domain.EmailRecord `json:"emails"`
}

// actionResponse 动作执行响应，email 在 delete 后为 null
type actionResponse struct {
	Message string             `json:"message"`
	Email   domain.EmailRecord `json:"email"`
}

// messageResponse 仅含提示文案的响应
type messageResponse struct {
	Message string `json:"message"`
}

// issuesResponse 携带字段级校验错误的响应
type issuesResponse struct {
	Message string              `json:"message"`
	Issues  []domain.FieldIssue `json:"issues"`
}

// Fail 以给定状态码返回提示文案
func Fail(c *gin.Context, status int, msg string) {
	c.JSON(status, messageResponse{Message: msg})
}

// FailValidation 返回字段级校验错误（400）
func FailValidation(c *gin.Context, msg string, issues []domain.FieldIssue) {
	c.JSON(http.StatusBadRequest, issuesResponse{Message: msg, Issues: issues})
}
