package domain

import "time"

// Sample 一条健康采样记录（温度/湿度/哭声分析结果）
// 由摄入管道在分类完成后创建，入库后不可变
type Sample struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Temperature  float64   `json:"temperature"`
	Humidity     float64   `json:"humidity"`
	AudioURL     *string   `json:"audio_url"`
	CryDetected  bool      `json:"cry_detected"`
	SickDetected bool      `json:"sick_detected"`
	Notes        *string   `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
}

// TimeBucket 时间桶聚合结果（派生只读，不持久化）
// 空桶 Count=0，平均值为 nil
type TimeBucket struct {
	BucketStart    time.Time `json:"bucket_start"`
	Count          int       `json:"count"`
	AvgTemperature *float64  `json:"avg_temperature"`
	AvgHumidity    *float64  `json:"avg_humidity"`
	CryCount       int       `json:"cry_count"`
	SickCount      int       `json:"sick_count"`
}

// SampleStats 采样数据汇总统计（仪表盘概览用）
type SampleStats struct {
	TotalRecords      int     `json:"total_records"`
	CryDetectedCount  int     `json:"cry_detected_count"`
	SickDetectedCount int     `json:"sick_detected_count"`
	AvgTemperature    float64 `json:"avg_temperature"`
	AvgHumidity       float64 `json:"avg_humidity"`
	LatestRecord      *Sample `json:"latest_record"`
}
