package httptransport

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"opsdash/backend/internal/cache"
	"opsdash/backend/internal/config"
	"opsdash/backend/internal/monitoring"
)

// ProxyHandler 外部服务透传处理器。
//
// 仪表盘的财务数据、登录会话和自动化工作流都由外部服务
// （Supabase REST/Auth、n8n webhook）承载，本服务只做转发：
// 保持上游的状态码和 JSON 响应体原样回传，附带配置的密钥。
type ProxyHandler struct {
	supabase config.SupabaseConfig
	n8n      config.N8NConfig
	client   *http.Client
	cache    *cache.LocalCache
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewProxyHandler 创建透传处理器。
func NewProxyHandler(supabase config.SupabaseConfig, n8n config.N8NConfig, proxyCache *cache.LocalCache, metrics *monitoring.Metrics, log *zap.Logger) *ProxyHandler {
	return &ProxyHandler{
		supabase: supabase,
		n8n:      n8n,
		client:   &http.Client{Timeout: 30 * time.Second},
		cache:    proxyCache,
		metrics:  metrics,
		log:      log,
	}
}

// SupabaseEnabled 返回 Supabase 代理是否可用。
func (h *ProxyHandler) SupabaseEnabled() bool {
	return h.supabase.URL != ""
}

// ========== 财务数据代理 ==========

// GetRevenue 转发收入查询。
func (h *ProxyHandler) GetRevenue(c *gin.Context) {
	h.forwardRest(c, "revenue")
}

// GetExpenses 转发支出查询。
func (h *ProxyHandler) GetExpenses(c *gin.Context) {
	h.forwardRest(c, "expenses")
}

// CreateExpense 转发支出写入。
func (h *ProxyHandler) CreateExpense(c *gin.Context) {
	h.forwardRest(c, "expenses")
}

// forwardRest 转发到 Supabase REST，GET 响应走本地缓存。
func (h *ProxyHandler) forwardRest(c *gin.Context, table string) {
	target := h.supabase.URL + "/rest/v1/" + table
	if rawQuery := c.Request.URL.RawQuery; rawQuery != "" {
		target += "?" + rawQuery
	}

	cacheable := c.Request.Method == http.MethodGet && h.cache != nil
	cacheKey := c.Request.Method + " " + target

	if cacheable {
		if body, ok := h.cache.Get(cacheKey); ok {
			c.Data(http.StatusOK, "application/json", body)
			return
		}
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, target, c.Request.Body)
	if err != nil {
		Fail(c, http.StatusInternalServerError, MsgInternalError)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", h.supabase.AnonKey)
	req.Header.Set("Authorization", h.bearerFor(c))
	if c.Request.Method == http.MethodPost {
		// Supabase REST 默认不回写入结果，前端需要新行
		req.Header.Set("Prefer", "return=representation")
	}

	status, body, ok := h.relay(c, "supabase_rest", req)
	if !ok {
		return
	}

	if cacheable && status == http.StatusOK {
		h.cache.Set(cacheKey, body)
	}
	if !cacheable && h.cache != nil && status < 300 {
		// 写入使该表的全部缓存响应失效，包括带查询串的键
		h.cache.DeletePrefix(http.MethodGet + " " + h.supabase.URL + "/rest/v1/" + table)
	}
}

// ========== 认证代理 ==========

// Login 转发密码登录。
func (h *ProxyHandler) Login(c *gin.Context) {
	h.forwardAuth(c, "/auth/v1/token?grant_type=password")
}

// Refresh 转发会话刷新。
func (h *ProxyHandler) Refresh(c *gin.Context) {
	h.forwardAuth(c, "/auth/v1/token?grant_type=refresh_token")
}

// Logout 转发登出。
func (h *ProxyHandler) Logout(c *gin.Context) {
	h.forwardAuth(c, "/auth/v1/logout")
}

func (h *ProxyHandler) forwardAuth(c *gin.Context, path string) {
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, h.supabase.URL+path, c.Request.Body)
	if err != nil {
		Fail(c, http.StatusInternalServerError, MsgInternalError)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", h.supabase.AnonKey)
	req.Header.Set("Authorization", h.bearerFor(c))

	h.relay(c, "supabase_auth", req)
}

// ========== 自动化工作流代理 ==========

// PublishDraft 触发发布草稿工作流。
func (h *ProxyHandler) PublishDraft(c *gin.Context) {
	h.forwardWebhook(c, h.n8n.PublishDraftURL)
}

// ModifyImage 触发修改图片工作流。
func (h *ProxyHandler) ModifyImage(c *gin.Context) {
	h.forwardWebhook(c, h.n8n.ModifyImageURL)
}

// UpscaleImage 触发图片放大工作流。
func (h *ProxyHandler) UpscaleImage(c *gin.Context) {
	h.forwardWebhook(c, h.n8n.UpscaleImageURL)
}

func (h *ProxyHandler) forwardWebhook(c *gin.Context, target string) {
	if target == "" {
		Fail(c, http.StatusNotFound, MsgUpstreamNotSet)
		return
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, target, c.Request.Body)
	if err != nil {
		Fail(c, http.StatusInternalServerError, MsgInternalError)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if h.n8n.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+h.n8n.BearerToken)
	}

	h.relay(c, "n8n", req)
}

// relay 执行上游请求并把状态码与响应体原样回传。
func (h *ProxyHandler) relay(c *gin.Context, upstream string, req *http.Request) (int, []byte, bool) {
	resp, err := h.client.Do(req)
	if err != nil {
		h.log.Error("upstream request failed",
			zap.String("upstream", upstream),
			zap.String("url", req.URL.String()),
			zap.Error(err))
		if h.metrics != nil {
			h.metrics.RecordProxyRequest(upstream, http.StatusBadGateway)
		}
		Fail(c, http.StatusBadGateway, "Upstream service unavailable.")
		return 0, nil, false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.log.Error("failed to read upstream response",
			zap.String("upstream", upstream),
			zap.Error(err))
		if h.metrics != nil {
			h.metrics.RecordProxyRequest(upstream, http.StatusBadGateway)
		}
		Fail(c, http.StatusBadGateway, "Upstream service unavailable.")
		return 0, nil, false
	}

	if h.metrics != nil {
		h.metrics.RecordProxyRequest(upstream, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, body)
	return resp.StatusCode, body, true
}

// bearerFor 决定转发使用的 Authorization 头。
//
// 调用方自带 bearer 时透传（保留其行级权限），否则退回
// 配置的 service key 或 anon key。
func (h *ProxyHandler) bearerFor(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return auth
	}
	if h.supabase.ServiceKey != "" {
		return "Bearer " + h.supabase.ServiceKey
	}
	return "Bearer " + h.supabase.AnonKey
}
