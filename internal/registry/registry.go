package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sender 实时连接的底层传输（由连接处理层提供）
// Send 在超时时间内完成投递，否则返回错误
type Sender interface {
	Send(payload []byte, timeout time.Duration) error
	Close() error
}

// Connection 一条已注册的实时连接
// 注册期间由 Registry 独占持有；底层 socket 生命周期归传输层管
type Connection struct {
	ID       string
	OwnerID  string
	OpenedAt time.Time

	sender Sender
}

// Send 向该连接推送一条消息（带超时）
func (c *Connection) Send(payload []byte, timeout time.Duration) error {
	return c.sender.Send(payload, timeout)
}

// Close 关闭底层传输
func (c *Connection) Close() error {
	return c.sender.Close()
}

// Registry 进程级连接表：owner -> 当前打开的实时连接集合
// 同一 owner 可有多条连接（多设备/多标签页）
// 显式构造、显式传引用，进程启动时创建，关闭时 CloseAll
type Registry struct {
	mu      sync.RWMutex
	byOwner map[string]map[*Connection]struct{}
	logger  *zap.Logger
}

// NewRegistry 创建连接注册表
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		byOwner: make(map[string]map[*Connection]struct{}),
		logger:  logger,
	}
}

// Register 注册一条新连接，返回连接句柄（用于后续 Unregister）
func (r *Registry) Register(ownerID string, sender Sender) *Connection {
	conn := &Connection{
		ID:       uuid.NewString(),
		OwnerID:  ownerID,
		OpenedAt: time.Now().UTC(),
		sender:   sender,
	}

	r.mu.Lock()
	if r.byOwner[ownerID] == nil {
		r.byOwner[ownerID] = make(map[*Connection]struct{})
	}
	r.byOwner[ownerID][conn] = struct{}{}
	total := len(r.byOwner[ownerID])
	r.mu.Unlock()

	r.logger.Info("Connection registered",
		zap.String("owner_id", ownerID),
		zap.String("connection_id", conn.ID),
		zap.Int("owner_connections", total),
	)

	return conn
}

// Unregister 移除连接（幂等：重复调用或连接已不在集合中均为 no-op）
func (r *Registry) Unregister(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	set, ok := r.byOwner[conn.OwnerID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, present := set[conn]; !present {
		r.mu.Unlock()
		return
	}
	delete(set, conn)
	// 清理空集合，避免注册表持有已无连接的 owner
	if len(set) == 0 {
		delete(r.byOwner, conn.OwnerID)
	}
	remaining := len(set)
	r.mu.Unlock()

	r.logger.Info("Connection unregistered",
		zap.String("owner_id", conn.OwnerID),
		zap.String("connection_id", conn.ID),
		zap.Int("owner_connections", remaining),
	)
}

// ConnectionsFor 获取 owner 当前连接的快照副本
// 快照语义：遍历期间不受并发注册/注销影响
func (r *Registry) ConnectionsFor(ownerID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byOwner[ownerID]
	if len(set) == 0 {
		return nil
	}
	conns := make([]*Connection, 0, len(set))
	for conn := range set {
		conns = append(conns, conn)
	}
	return conns
}

// Count 获取 owner 的连接数
func (r *Registry) Count(ownerID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byOwner[ownerID])
}

// TotalConnections 获取所有 owner 的连接总数
func (r *Registry) TotalConnections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, set := range r.byOwner {
		total += len(set)
	}
	return total
}

// CloseAll 关闭并移除所有连接（进程关闭时调用）
func (r *Registry) CloseAll() {
	r.mu.Lock()
	var conns []*Connection
	for _, set := range r.byOwner {
		for conn := range set {
			conns = append(conns, conn)
		}
	}
	r.byOwner = make(map[string]map[*Connection]struct{})
	r.mu.Unlock()

	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			r.logger.Warn("Failed to close connection on shutdown",
				zap.String("connection_id", conn.ID),
				zap.Error(err),
			)
		}
	}

	if len(conns) > 0 {
		r.logger.Info("All connections closed", zap.Int("count", len(conns)))
	}
}
