package aggregate

import (
	"context"
	"fmt"
	"time"

	"babywatch/internal/domain"
	"babywatch/internal/repository"

	"go.uber.org/zap"
)

// DefaultRangeDays 未指定时间范围时的默认回看天数
const DefaultRangeDays = 7

// MaxBuckets 单次聚合的桶数上限
// 桶数由 range/width 决定，不设上限时一个极小的 width 就能让累加器分配打爆内存
const MaxBuckets = 10000

// Engine 时间桶聚合引擎
// 分桶在 Go 侧完成而不是 SQL GROUP BY：空桶必须产出（图表依赖无空洞的连续序列），
// 这一点交给数据库聚合难以保证
type Engine struct {
	samples repository.SamplesRepository
	logger  *zap.Logger
}

// NewEngine 创建聚合引擎
func NewEngine(samples repository.SamplesRepository, logger *zap.Logger) *Engine {
	return &Engine{samples: samples, logger: logger}
}

// DefaultRange 默认聚合范围：截止现在的最近 7 天
func DefaultRange(now time.Time) (start, end time.Time) {
	end = now.UTC()
	start = end.AddDate(0, 0, -DefaultRangeDays)
	return start, end
}

// Aggregate 把 [start, end) 按 bucketWidth 切成连续半开区间并逐桶汇总
// - 首桶起点对齐 start；末桶不足一个宽度时缩短
// - 桶之间无缝隙无重叠，覆盖完整范围，空桶也产出（Count=0，均值为 nil）
// - 结果按桶起点降序（最新在前）
// - 桶数超过 MaxBuckets 时拒绝（ErrInvalidRange），不做任何分配
func (e *Engine) Aggregate(ctx context.Context, ownerID string, start, end time.Time, bucketWidth time.Duration) ([]domain.TimeBucket, error) {
	if bucketWidth <= 0 {
		return nil, fmt.Errorf("%w: bucket width must be positive", domain.ErrInvalidRange)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start must be before end", domain.ErrInvalidRange)
	}

	start = start.UTC()
	end = end.UTC()

	total := end.Sub(start)
	numBuckets := int(total / bucketWidth)
	if total%bucketWidth != 0 {
		numBuckets++
	}
	if numBuckets > MaxBuckets {
		return nil, fmt.Errorf("%w: bucket width %s over range %s yields %d buckets, limit is %d",
			domain.ErrInvalidRange, bucketWidth, total, numBuckets, MaxBuckets)
	}

	samples, err := e.samples.ListRange(ctx, ownerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load samples for aggregation: %w", err)
	}

	type acc struct {
		count   int
		sumTemp float64
		sumHum  float64
		cry     int
		sick    int
	}
	accs := make([]acc, numBuckets)

	for _, s := range samples {
		offset := s.CreatedAt.Sub(start)
		if offset < 0 || offset >= total {
			continue
		}
		idx := int(offset / bucketWidth)
		accs[idx].count++
		accs[idx].sumTemp += s.Temperature
		accs[idx].sumHum += s.Humidity
		if s.CryDetected {
			accs[idx].cry++
		}
		if s.SickDetected {
			accs[idx].sick++
		}
	}

	// 按桶起点降序产出（最新在前，匹配仪表盘渲染）
	buckets := make([]domain.TimeBucket, 0, numBuckets)
	for i := numBuckets - 1; i >= 0; i-- {
		b := domain.TimeBucket{
			BucketStart: start.Add(time.Duration(i) * bucketWidth),
			Count:       accs[i].count,
			CryCount:    accs[i].cry,
			SickCount:   accs[i].sick,
		}
		if accs[i].count > 0 {
			avgT := accs[i].sumTemp / float64(accs[i].count)
			avgH := accs[i].sumHum / float64(accs[i].count)
			b.AvgTemperature = &avgT
			b.AvgHumidity = &avgH
		}
		buckets = append(buckets, b)
	}

	e.logger.Debug("Aggregation complete",
		zap.String("owner_id", ownerID),
		zap.Int("samples", len(samples)),
		zap.Int("buckets", numBuckets),
	)

	return buckets, nil
}
