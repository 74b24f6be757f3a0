package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"babywatch/internal/aggregate"
	"babywatch/internal/domain"
	"babywatch/internal/repository"
	"babywatch/internal/service"

	"go.uber.org/zap"
)

// maxAudioBytes 单个音频文件大小上限（10MB）
const maxAudioBytes = 10 << 20

// HealthHandler 健康采样 API
type HealthHandler struct {
	pipeline   *service.IngestionPipeline
	aggregator *aggregate.Engine
	samples    repository.SamplesRepository
	logger     *zap.Logger
}

// NewHealthHandler 创建健康采样 API 处理器
func NewHealthHandler(
	pipeline *service.IngestionPipeline,
	aggregator *aggregate.Engine,
	samples repository.SamplesRepository,
	logger *zap.Logger,
) *HealthHandler {
	return &HealthHandler{
		pipeline:   pipeline,
		aggregator: aggregator,
		samples:    samples,
		logger:     logger,
	}
}

// Upload POST /health/upload
// multipart form：temperature, humidity, notes?, audio?
// 成功返回 201 与落库后的完整记录（含派生标志）
func (h *HealthHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	req := &service.IngestRequest{
		OwnerID: OwnerID(r),
		Source:  "http",
	}

	var err error
	req.Temperature, err = parseFloatField(r, "temperature")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "temperature must be a number")
		return
	}
	req.Humidity, err = parseFloatField(r, "humidity")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "humidity must be a number")
		return
	}
	if notes := r.FormValue("notes"); notes != "" {
		req.Notes = &notes
	}

	if file, header, err := r.FormFile("audio"); err == nil {
		defer file.Close()
		audio, err := io.ReadAll(io.LimitReader(file, maxAudioBytes))
		if err != nil {
			errorJSON(w, http.StatusBadRequest, "failed to read audio file")
			return
		}
		req.Audio = audio
		req.AudioFilename = header.Filename
	}

	sample, err := h.pipeline.Ingest(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			errorJSON(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to ingest sample", zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "failed to process health data")
		return
	}

	writeJSON(w, http.StatusCreated, sample)
}

// Timeseries GET /health/timeseries?interval=&start_date=&end_date=
// 时间桶聚合序列（最新在前），默认范围：截止现在的最近 7 天
func (h *HealthHandler) Timeseries(w http.ResponseWriter, r *http.Request) {
	interval, err := parseInterval(r.URL.Query().Get("interval"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	defaultStart, defaultEnd := aggregate.DefaultRange(time.Now())
	start, err := parseTime(r.URL.Query().Get("start_date"), defaultStart)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "start_date must be RFC3339")
		return
	}
	end, err := parseTime(r.URL.Query().Get("end_date"), defaultEnd)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "end_date must be RFC3339")
		return
	}

	buckets, err := h.aggregator.Aggregate(r.Context(), OwnerID(r), start, end, interval)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRange) {
			errorJSON(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to aggregate samples", zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "failed to retrieve time-series data")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": buckets})
}

// Stats GET /health/stats
// 汇总统计（仪表盘概览）
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.samples.GetStats(r.Context(), OwnerID(r))
	if err != nil {
		h.logger.Error("Failed to compute stats", zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "failed to calculate statistics")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// intervalAliases 原生 duration 之外支持的桶宽别名
var intervalAliases = map[string]time.Duration{
	"1 hour":  time.Hour,
	"6 hours": 6 * time.Hour,
	"1 day":   24 * time.Hour,
	"1 week":  7 * 24 * time.Hour,
}

// parseInterval 解析桶宽：Go duration（"1h30m"）或别名（"1 hour"、"1 day"、"1 week"）
func parseInterval(s string) (time.Duration, error) {
	if s == "" {
		return time.Hour, nil
	}
	if d, ok := intervalAliases[s]; ok {
		return d, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.New("interval must be a duration like 1h, or one of: 1 hour, 6 hours, 1 day, 1 week")
	}
	return d, nil
}

func parseFloatField(r *http.Request, name string) (float64, error) {
	return parseFloat(r.FormValue(name))
}
