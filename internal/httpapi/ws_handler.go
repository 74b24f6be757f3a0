package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"babywatch/internal/auth"
	"babywatch/internal/cache"
	"babywatch/internal/domain"
	"babywatch/internal/metric"
	"babywatch/internal/registry"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler 实时告警 WebSocket 端点
// 握手阶段校验 token，校验通过后才注册到连接表
type WSHandler struct {
	registry *registry.Registry
	verifier auth.TokenVerifier
	latest   *cache.LatestCache
	metrics  *metric.Metrics
	logger   *zap.Logger

	upgrader    websocket.Upgrader
	sendTimeout time.Duration
}

// NewWSHandler 创建 WebSocket 处理器
func NewWSHandler(reg *registry.Registry, verifier auth.TokenVerifier, latest *cache.LatestCache, metrics *metric.Metrics, sendTimeout time.Duration, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		registry: reg,
		verifier: verifier,
		latest:   latest,
		metrics:  metrics,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sendTimeout: sendTimeout,
	}
}

// wsSender 把 gorilla 连接包装成注册表需要的发送端
// gorilla 的写操作不允许并发，用互斥锁串行化
type wsSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSender) Send(payload []byte, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *wsSender) Close() error {
	return s.conn.Close()
}

// Serve 处理 GET /ws?token=<token>
// token 无效时在升级前拒绝，连接根本不会建立
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		errorJSON(w, http.StatusUnauthorized, "missing token")
		return
	}

	ownerID, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			errorJSON(w, http.StatusUnauthorized, "invalid token")
			return
		}
		h.logger.Error("Failed to verify websocket token", zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已自行写入 HTTP 错误响应
		h.logger.Warn("Failed to upgrade websocket connection",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
		return
	}

	sender := &wsSender{conn: wsConn}
	conn := h.registry.Register(ownerID, sender)
	h.metrics.ActiveConnections.Inc()

	defer func() {
		h.registry.Unregister(conn)
		h.metrics.ActiveConnections.Dec()
		_ = sender.Close()
	}()

	// 首屏快照：连接建立后立即推送最近一条采样记录
	h.pushLatest(r.Context(), ownerID, sender)

	// 读循环只为感知对端关闭；客户端发来的消息一律忽略
	for {
		if _, _, err := wsConn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("Websocket closed unexpectedly",
					zap.String("owner_id", ownerID),
					zap.String("connection_id", conn.ID),
					zap.Error(err),
				)
			}
			return
		}
	}
}

func (h *WSHandler) pushLatest(ctx context.Context, ownerID string, sender *wsSender) {
	if h.latest == nil {
		return
	}

	sample, err := h.latest.GetLatest(ctx, ownerID)
	if err != nil {
		h.logger.Warn("Failed to load latest sample for snapshot",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
		return
	}
	if sample == nil {
		return
	}

	payload, err := json.Marshal(domain.NewSnapshotEvent(sample))
	if err != nil {
		return
	}
	if err := sender.Send(payload, h.sendTimeout); err != nil {
		h.logger.Warn("Failed to push latest sample snapshot",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
	}
}
