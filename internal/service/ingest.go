package service

import (
	"context"
	"math"
	"unicode/utf8"

	"babywatch/internal/cache"
	"babywatch/internal/classifier"
	"babywatch/internal/classify"
	"babywatch/internal/dispatch"
	"babywatch/internal/domain"
	"babywatch/internal/metric"
	"babywatch/internal/repository"
	"babywatch/internal/storage"

	"go.uber.org/zap"
)

// 传感器读数合法范围（超出直接拒绝）
const (
	minTemperature = -10.0
	maxTemperature = 50.0
	minHumidity    = 0.0
	maxHumidity    = 100.0
	maxNotesLength = 500
)

// IngestRequest 一次采样摄入请求
// Audio 与 PrecomputedCry 互斥使用：
// - HTTP 上传携带原始音频，由识别服务给出结论
// - MQTT 接入的设备已在端侧完成识别，直接携带结论
type IngestRequest struct {
	OwnerID        string
	Temperature    float64
	Humidity       float64
	Notes          *string
	AudioFilename  string
	Audio          []byte
	PrecomputedCry *bool
	Source         string // "http" / "mqtt"，仅用于指标
}

// IngestionPipeline 采样摄入管道
// 每条采样严格顺序执行：校验 → 音频保存/识别 → 分类决策 → 落库 → 推送
// 识别失败降级为"未检测到哭声"；落库失败终止本次摄入且不推送
type IngestionPipeline struct {
	samples    repository.SamplesRepository
	audioStore storage.AudioStore
	classifier classifier.AudioClassifier
	dispatcher *dispatch.Dispatcher
	latest     *cache.LatestCache
	metrics    *metric.Metrics
	logger     *zap.Logger
}

// NewIngestionPipeline 创建摄入管道
// latest 可为 nil（无 Redis 时跳过快照缓存）
func NewIngestionPipeline(
	samples repository.SamplesRepository,
	audioStore storage.AudioStore,
	audioClassifier classifier.AudioClassifier,
	dispatcher *dispatch.Dispatcher,
	latest *cache.LatestCache,
	metrics *metric.Metrics,
	logger *zap.Logger,
) *IngestionPipeline {
	return &IngestionPipeline{
		samples:    samples,
		audioStore: audioStore,
		classifier: audioClassifier,
		dispatcher: dispatcher,
		latest:     latest,
		metrics:    metrics,
		logger:     logger,
	}
}

// Ingest 处理一条采样：校验、分类、持久化、报警推送
// 返回落库后的完整记录（含派生的 cry_detected / sick_detected）
func (p *IngestionPipeline) Ingest(ctx context.Context, req *IngestRequest) (*domain.Sample, error) {
	// 1. 校验（任何副作用之前）
	if err := p.validate(req); err != nil {
		p.metrics.IngestFailures.Inc()
		return nil, err
	}

	// 2. 保存音频并调用识别服务
	hasAudio := len(req.Audio) > 0 || req.PrecomputedCry != nil
	audioResult := false
	var audioURL *string

	switch {
	case req.PrecomputedCry != nil:
		// 端侧已识别，结论直接采用
		audioResult = *req.PrecomputedCry
	case len(req.Audio) > 0:
		// 音频保存失败只丢引用不终止摄入（采样入库优先于音频留存）
		if url, err := p.audioStore.Save(req.OwnerID, req.AudioFilename, req.Audio); err != nil {
			p.logger.Warn("Failed to save audio, continuing without reference",
				zap.String("owner_id", req.OwnerID),
				zap.Error(err),
			)
		} else {
			audioURL = &url
		}

		// 识别失败/超时降级为未检测到哭声，摄入继续
		result, err := p.classifier.Classify(ctx, req.Audio, req.AudioFilename)
		if err != nil {
			p.metrics.ClassifierErrors.Inc()
			p.logger.Warn("Cry classification unavailable, degrading to not-detected",
				zap.String("owner_id", req.OwnerID),
				zap.Error(err),
			)
			result = false
		}
		audioResult = result
	}

	// 3. 分类决策（纯函数）
	cryDetected, sickDetected := classify.Decide(hasAudio, audioResult, req.Temperature)

	// 4. 落库（失败终止，不推送：绝不通报未持久化的数据）
	sample := &domain.Sample{
		OwnerID:      req.OwnerID,
		Temperature:  req.Temperature,
		Humidity:     req.Humidity,
		AudioURL:     audioURL,
		CryDetected:  cryDetected,
		SickDetected: sickDetected,
		Notes:        req.Notes,
	}
	stored, err := p.samples.InsertSample(ctx, sample)
	if err != nil {
		p.metrics.IngestFailures.Inc()
		p.logger.Error("Failed to persist sample",
			zap.String("owner_id", req.OwnerID),
			zap.Error(err),
		)
		return nil, err
	}

	p.metrics.SamplesIngested.WithLabelValues(req.Source).Inc()

	// 5. 最新采样快照缓存（best-effort）
	if p.latest != nil {
		if err := p.latest.SetLatest(ctx, stored); err != nil {
			p.logger.Warn("Failed to cache latest sample", zap.Error(err))
		}
	}

	// 6. 仅在检测到哭声时推送（平静采样不打扰）
	if stored.CryDetected {
		p.metrics.CryAlerts.Inc()
		p.dispatcher.Broadcast(stored.OwnerID, domain.NewCryEvent(stored))
	}

	p.logger.Info("Sample ingested",
		zap.String("owner_id", stored.OwnerID),
		zap.String("sample_id", stored.ID),
		zap.String("source", req.Source),
		zap.Bool("cry_detected", stored.CryDetected),
		zap.Bool("sick_detected", stored.SickDetected),
	)

	return stored, nil
}

// validate 字段校验：数值必须有限且在合法范围内
func (p *IngestionPipeline) validate(req *IngestRequest) error {
	if req.OwnerID == "" {
		return domain.Validationf("owner id is required")
	}
	if math.IsNaN(req.Temperature) || math.IsInf(req.Temperature, 0) {
		return domain.Validationf("temperature must be finite")
	}
	if math.IsNaN(req.Humidity) || math.IsInf(req.Humidity, 0) {
		return domain.Validationf("humidity must be finite")
	}
	if req.Temperature < minTemperature || req.Temperature > maxTemperature {
		return domain.Validationf("temperature must be between %.0f and %.0f", minTemperature, maxTemperature)
	}
	if req.Humidity < minHumidity || req.Humidity > maxHumidity {
		return domain.Validationf("humidity must be between %.0f and %.0f", minHumidity, maxHumidity)
	}
	// 按字符数而不是字节数限制，多字节文本不吃亏
	if req.Notes != nil && utf8.RuneCountInString(*req.Notes) > maxNotesLength {
		return domain.Validationf("notes must be at most %d characters", maxNotesLength)
	}
	if len(req.Audio) > 0 && !storage.IsAllowedExtension(req.AudioFilename) {
		return domain.Validationf("invalid audio format, allowed: .wav, .mp3, .m4a, .ogg, .flac")
	}
	return nil
}
