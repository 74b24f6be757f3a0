package domain

import "time"

// EventKind 推送事件类型（封闭集合，每种类型固定 schema）
type EventKind string

const (
	// EventCryDetected 检测到哭声
	EventCryDetected EventKind = "CRY_DETECTED"
	// EventLatestSample 连接建立时的最新采样快照
	EventLatestSample EventKind = "LATEST_SAMPLE"
)

// EventData 触发事件时的传感器读数
type EventData struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// HealthEvent 推送给实时连接的报警事件
type HealthEvent struct {
	Event        EventKind `json:"event"`
	SickDetected bool      `json:"sick_detected"`
	Timestamp    time.Time `json:"timestamp"`
	Data         EventData `json:"data"`
}

// SnapshotEvent 推送给新建连接的首屏快照事件
type SnapshotEvent struct {
	Event EventKind `json:"event"`
	Data  *Sample   `json:"data"`
}

// NewSnapshotEvent 从采样记录构建快照事件
func NewSnapshotEvent(sample *Sample) SnapshotEvent {
	return SnapshotEvent{
		Event: EventLatestSample,
		Data:  sample,
	}
}

// NewCryEvent 从采样记录构建哭声报警事件
func NewCryEvent(sample *Sample) HealthEvent {
	return HealthEvent{
		Event:        EventCryDetected,
		SickDetected: sample.SickDetected,
		Timestamp:    sample.CreatedAt,
		Data: EventData{
			Temperature: sample.Temperature,
			Humidity:    sample.Humidity,
		},
	}
}
