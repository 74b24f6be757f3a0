package httpapi

import (
	"net/http"

	"babywatch/internal/auth"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（用于 /metrics 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterHealthRoutes 注册采样摄入与聚合查询路由（需认证）
func (r *Router) RegisterHealthRoutes(h *HealthHandler, verifier auth.TokenVerifier) {
	authed := RequireAuth(verifier, r.logger)

	// upload
	r.Handle("/health/upload", authed(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Upload(w, req)
	}))

	// timeseries
	r.Handle("/health/timeseries", authed(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Timeseries(w, req)
	}))

	// stats
	r.Handle("/health/stats", authed(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Stats(w, req)
	}))
}

// RegisterWSRoutes 注册实时告警 WebSocket 路由
// 认证在握手阶段通过 ?token= 完成，不走 Bearer 中间件
func (r *Router) RegisterWSRoutes(h *WSHandler) {
	r.Handle("/ws", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Serve(w, req)
	})
}

// RegisterInfoRoutes 注册服务信息路由
func (r *Router) RegisterInfoRoutes() {
	r.Handle("/", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"service": "babywatch",
			"status":  "running",
		})
	})
}
