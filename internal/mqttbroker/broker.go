package mqttbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"babywatch/internal/config"
	"babywatch/internal/service"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// finalResultCry 端侧识别给出的哭声结论值（大小写不敏感）
const finalResultCry = "INFANTCRY"

// 单传感器失效时的兜底读数
const (
	fallbackTemperature = 25.0
	fallbackHumidity    = 50.0
)

// ingestTimeout 单条消息的摄入处理上限
const ingestTimeout = 10 * time.Second

// sensorPayload ESP32 端上报的消息格式
// FinalResult 为端侧模型结论（"InfantCry" / "SNORING"）
// Temperature / Humidity 传感器失效时上报字符串 "Err"
type sensorPayload struct {
	FinalResult string          `json:"FinalResult"`
	InfantCry   float64         `json:"InfantCry"`
	Temperature json.RawMessage `json:"Temperature"`
	Humidity    json.RawMessage `json:"Humidity"`
	OwnerID     string          `json:"owner_id"`
}

// Broker MQTT 传感器接入：订阅设备主题，把上报转成采样摄入
// 端侧已完成哭声识别，消息携带结论，不走音频识别服务
type Broker struct {
	client   mqtt.Client
	cfg      *config.MQTTConfig
	pipeline *service.IngestionPipeline
	logger   *zap.Logger
}

// NewBroker 创建并连接 MQTT 客户端
func NewBroker(cfg *config.MQTTConfig, pipeline *service.IngestionPipeline, logger *zap.Logger) (*Broker, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost, reconnecting", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	logger.Info("Connected to MQTT broker",
		zap.String("broker", cfg.Broker),
		zap.String("client_id", cfg.ClientID),
	)

	return &Broker{
		client:   client,
		cfg:      cfg,
		pipeline: pipeline,
		logger:   logger,
	}, nil
}

// Start 订阅传感器主题，开始接收上报
func (b *Broker) Start() error {
	token := b.client.Subscribe(b.cfg.Topic, b.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		// 单条消息的错误只记录，不中断订阅
		if err := b.handleMessage(msg.Topic(), msg.Payload()); err != nil {
			b.logger.Warn("Failed to handle sensor message",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", b.cfg.Topic, token.Error())
	}

	b.logger.Info("Subscribed to sensor topic", zap.String("topic", b.cfg.Topic))
	return nil
}

// Stop 断开 MQTT 连接
func (b *Broker) Stop() {
	b.client.Disconnect(250)
	b.logger.Info("MQTT broker disconnected")
}

// handleMessage 解析一条传感器上报并送入摄入管道
func (b *Broker) handleMessage(topic string, payload []byte) error {
	var msg sensorPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("invalid sensor payload: %w", err)
	}

	temperature, tempOK := parseReading(msg.Temperature)
	humidity, humOK := parseReading(msg.Humidity)

	// 双传感器同时失效：整条读数不可信，丢弃
	if !tempOK && !humOK {
		b.logger.Warn("Both sensors reported errors, skipping reading", zap.String("topic", topic))
		return nil
	}
	// 单传感器失效用兜底读数顶上
	if !tempOK {
		temperature = fallbackTemperature
	}
	if !humOK {
		humidity = fallbackHumidity
	}

	ownerID := msg.OwnerID
	if ownerID == "" {
		return fmt.Errorf("sensor payload missing owner_id")
	}

	cry := strings.EqualFold(strings.TrimSpace(msg.FinalResult), finalResultCry)
	notes := "Auto-uploaded from MQTT sensor"

	req := &service.IngestRequest{
		OwnerID:        ownerID,
		Temperature:    temperature,
		Humidity:       humidity,
		Notes:          &notes,
		PrecomputedCry: &cry,
		Source:         "mqtt",
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	if _, err := b.pipeline.Ingest(ctx, req); err != nil {
		return fmt.Errorf("failed to ingest sensor reading: %w", err)
	}

	b.logger.Debug("Sensor reading ingested",
		zap.String("owner_id", ownerID),
		zap.Float64("temperature", temperature),
		zap.Float64("humidity", humidity),
		zap.Bool("cry_detected", cry),
		zap.Float64("cry_confidence", msg.InfantCry),
	)
	return nil
}

// parseReading 解析传感器读数：数字或字符串数字均接受，"Err" 与非法值视为失效
func parseReading(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return num, true
	}

	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, false
	}
	if strings.EqualFold(strings.TrimSpace(str), "Err") {
		return 0, false
	}
	var parsed float64
	if err := json.Unmarshal([]byte(strings.TrimSpace(str)), &parsed); err != nil {
		return 0, false
	}
	return parsed, true
}
