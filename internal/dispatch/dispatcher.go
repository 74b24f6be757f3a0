package dispatch

import (
	"encoding/json"
	"time"

	"babywatch/internal/domain"
	"babywatch/internal/metric"
	"babywatch/internal/registry"

	"go.uber.org/zap"
)

// Dispatcher 报警事件扇出：把一条事件推送给 owner 的全部实时连接
// 投递互相独立：单条连接失败只影响自己，失败连接被注销
type Dispatcher struct {
	registry    *registry.Registry
	logger      *zap.Logger
	metrics     *metric.Metrics
	sendTimeout time.Duration
}

// NewDispatcher 创建事件分发器
func NewDispatcher(
	reg *registry.Registry,
	logger *zap.Logger,
	metrics *metric.Metrics,
	sendTimeout time.Duration,
) *Dispatcher {
	return &Dispatcher{
		registry:    reg,
		logger:      logger,
		metrics:     metrics,
		sendTimeout: sendTimeout,
	}
}

// Broadcast 向 owner 的全部连接推送事件
// owner 无连接时为静默 no-op（fire-and-forget，不做离线补发）
// 投递顺序不保证；任何失败都不会上抛给调用方
func (d *Dispatcher) Broadcast(ownerID string, event domain.HealthEvent) {
	conns := d.registry.ConnectionsFor(ownerID)
	if len(conns) == 0 {
		d.logger.Debug("No active connections, alert dropped",
			zap.String("owner_id", ownerID),
			zap.String("event", string(event.Event)),
		)
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		// 事件类型是封闭集合，序列化失败属于编程错误
		d.logger.Error("Failed to marshal event",
			zap.String("event", string(event.Event)),
			zap.Error(err),
		)
		return
	}

	delivered := 0
	for _, conn := range conns {
		if err := conn.Send(payload, d.sendTimeout); err != nil {
			d.logger.Warn("Failed to deliver event, dropping connection",
				zap.String("owner_id", ownerID),
				zap.String("connection_id", conn.ID),
				zap.Error(err),
			)
			d.metrics.DeliveryFailures.Inc()
			// 失败连接自愈：注销并关闭，读循环随之退出
			d.registry.Unregister(conn)
			_ = conn.Close()
			continue
		}
		delivered++
	}

	d.logger.Info("Event broadcast",
		zap.String("owner_id", ownerID),
		zap.String("event", string(event.Event)),
		zap.Int("delivered", delivered),
		zap.Int("failed", len(conns)-delivered),
	)
}
