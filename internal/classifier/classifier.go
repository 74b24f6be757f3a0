package classifier

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// AudioClassifier 哭声识别服务接口（外部协作方，内部实现不在本系统范围）
// 返回 true 表示识别到婴儿哭声；错误（超时/模型不可用/输入损坏）由调用方降级处理
type AudioClassifier interface {
	Classify(ctx context.Context, audio []byte, filename string) (bool, error)
}

// labelInfantCry 推理服务的哭声分类标签（模型输出类别：InfantCry / Snoring）
const labelInfantCry = "InfantCry"

// classifyResponse 推理服务响应
type classifyResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// HTTPClassifier 哭声识别推理服务的 HTTP 客户端
type HTTPClassifier struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewHTTPClassifier 创建推理服务客户端
// timeout 覆盖整个调用；超时按识别失败处理，不做重试（降级策略归摄入管道）
func NewHTTPClassifier(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClassifier {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &HTTPClassifier{
		httpClient: client,
		logger:     logger,
	}
}

var _ AudioClassifier = (*HTTPClassifier)(nil)

// Classify 上传音频并取回分类结论
func (c *HTTPClassifier) Classify(ctx context.Context, audio []byte, filename string) (bool, error) {
	var result classifyResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFileReader("audio", filename, bytes.NewReader(audio)).
		SetResult(&result).
		Post("/classify")
	if err != nil {
		return false, fmt.Errorf("classifier call failed: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("classifier returned status %d", resp.StatusCode())
	}

	cryDetected := result.Label == labelInfantCry

	c.logger.Info("Audio classified",
		zap.String("label", result.Label),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("cry_detected", cryDetected),
	)

	return cryDetected, nil
}
