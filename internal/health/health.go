package health

import (
	"net/http"
	"net/url"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"opsdash/backend/internal/storage"
)

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	store  storage.EmailRepository
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器
//
// supabaseURL 非空时附加上游可达性的就绪检查。
func NewHealthChecker(store storage.EmailRepository, supabaseURL string, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		store:  store,
		logger: logger,
	}

	hc.health.AddLivenessCheck("store", func() error {
		return hc.store.Health()
	})
	hc.health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(500))

	if supabaseURL != "" {
		if u, err := url.Parse(supabaseURL); err == nil && u.Host != "" {
			host := u.Host
			if u.Port() == "" {
				host += ":443"
			}
			hc.health.AddReadinessCheck("supabase", healthcheck.TCPDialCheck(host, 2*time.Second))
		}
	}

	return hc
}

// LiveHandler 返回存活检查处理器
func (hc *HealthChecker) LiveHandler() http.Handler {
	return http.HandlerFunc(hc.health.LiveEndpoint)
}

// ReadyHandler 返回就绪检查处理器
func (hc *HealthChecker) ReadyHandler() http.Handler {
	return http.HandlerFunc(hc.health.ReadyEndpoint)
}
