package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"babywatch/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SamplesRepository 采样数据持久化接口（append-only）
type SamplesRepository interface {
	// InsertSample 写入一条采样记录，返回落库后的完整记录
	InsertSample(ctx context.Context, sample *domain.Sample) (*domain.Sample, error)
	// ListRange 按时间范围查询 owner 的采样记录（[start, end)，created_at 升序）
	ListRange(ctx context.Context, ownerID string, start, end time.Time) ([]*domain.Sample, error)
	// GetStats 获取 owner 的汇总统计
	GetStats(ctx context.Context, ownerID string) (*domain.SampleStats, error)
}

// PostgresSamplesRepository 采样数据Repository的Postgres实现
type PostgresSamplesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresSamplesRepository 创建采样数据Repository
func NewPostgresSamplesRepository(db *sql.DB, logger *zap.Logger) *PostgresSamplesRepository {
	return &PostgresSamplesRepository{db: db, logger: logger}
}

// 确保实现了接口
var _ SamplesRepository = (*PostgresSamplesRepository)(nil)

const sampleColumns = `id, owner_id::text, temperature, humidity, audio_url, cry_detected, sick_detected, notes, created_at`

// InsertSample 写入采样记录
// created_at 由数据库生成（NOW()），保证时序单调来自同一时钟
func (r *PostgresSamplesRepository) InsertSample(ctx context.Context, sample *domain.Sample) (*domain.Sample, error) {
	id := sample.ID
	if id == "" {
		id = uuid.NewString()
	}

	query := `
		INSERT INTO health_samples (
			id, owner_id, temperature, humidity, audio_url,
			cry_detected, sick_detected, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING created_at
	`

	var createdAt time.Time
	err := r.db.QueryRowContext(ctx, query,
		id,
		sample.OwnerID,
		sample.Temperature,
		sample.Humidity,
		sample.AudioURL,
		sample.CryDetected,
		sample.SickDetected,
		sample.Notes,
	).Scan(&createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert sample: %w", err)
	}

	stored := *sample
	stored.ID = id
	stored.CreatedAt = createdAt.UTC()
	return &stored, nil
}

// ListRange 按时间范围查询采样记录（半开区间 [start, end)）
func (r *PostgresSamplesRepository) ListRange(ctx context.Context, ownerID string, start, end time.Time) ([]*domain.Sample, error) {
	query := `
		SELECT ` + sampleColumns + `
		FROM health_samples
		WHERE owner_id = $1
		  AND created_at >= $2
		  AND created_at < $3
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []*domain.Sample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate samples: %w", err)
	}

	return samples, nil
}

// GetStats 获取汇总统计（总数、哭声/患病次数、均值、最新记录）
func (r *PostgresSamplesRepository) GetStats(ctx context.Context, ownerID string) (*domain.SampleStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE cry_detected),
			COUNT(*) FILTER (WHERE sick_detected),
			COALESCE(AVG(temperature), 0),
			COALESCE(AVG(humidity), 0)
		FROM health_samples
		WHERE owner_id = $1
	`

	stats := &domain.SampleStats{}
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(
		&stats.TotalRecords,
		&stats.CryDetectedCount,
		&stats.SickDetectedCount,
		&stats.AvgTemperature,
		&stats.AvgHumidity,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}

	if stats.TotalRecords == 0 {
		return stats, nil
	}

	latestQuery := `
		SELECT ` + sampleColumns + `
		FROM health_samples
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, latestQuery, ownerID)
	latest, err := scanSample(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return stats, nil
		}
		return nil, fmt.Errorf("failed to query latest sample: %w", err)
	}
	stats.LatestRecord = latest

	return stats, nil
}

// rowScanner 兼容 *sql.Row 和 *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSample(row rowScanner) (*domain.Sample, error) {
	var sample domain.Sample
	var audioURL sql.NullString
	var notes sql.NullString

	err := row.Scan(
		&sample.ID,
		&sample.OwnerID,
		&sample.Temperature,
		&sample.Humidity,
		&audioURL,
		&sample.CryDetected,
		&sample.SickDetected,
		&notes,
		&sample.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if audioURL.Valid {
		sample.AudioURL = &audioURL.String
	}
	if notes.Valid {
		sample.Notes = &notes.String
	}
	sample.CreatedAt = sample.CreatedAt.UTC()

	return &sample, nil
}
