package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"babywatch/internal/domain"

	"go.uber.org/zap"
)

// AudioStore 原始音频存储接口（Blob Store 协作方）
// 核心只需要拿回一个引用 URL，保留策略/清理不在本系统范围
type AudioStore interface {
	Save(ownerID, filename string, data []byte) (string, error)
}

// 允许的音频扩展名
var allowedExtensions = map[string]struct{}{
	".wav":  {},
	".mp3":  {},
	".m4a":  {},
	".ogg":  {},
	".flac": {},
}

// IsAllowedExtension 判断文件扩展名是否为允许的音频格式
// 摄入管道在任何副作用之前用它做校验
func IsAllowedExtension(filename string) bool {
	_, ok := allowedExtensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// LocalAudioStore 本地磁盘音频存储
type LocalAudioStore struct {
	dir    string
	logger *zap.Logger
}

// NewLocalAudioStore 创建本地音频存储（目录不存在时创建）
func NewLocalAudioStore(dir string, logger *zap.Logger) (*LocalAudioStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}
	return &LocalAudioStore{dir: dir, logger: logger}, nil
}

var _ AudioStore = (*LocalAudioStore)(nil)

// Save 保存音频文件，返回相对引用路径
// 文件名格式：audio_<owner>_<UTC时间戳><原扩展名>
func (s *LocalAudioStore) Save(ownerID, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", domain.Validationf("invalid audio format %q, allowed: .wav, .mp3, .m4a, .ogg, .flac", ext)
	}

	name := fmt.Sprintf("audio_%s_%s%s", ownerID, time.Now().UTC().Format("20060102_150405.000"), ext)
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}

	s.logger.Debug("Audio file saved",
		zap.String("owner_id", ownerID),
		zap.String("path", path),
		zap.Int("size", len(data)),
	)

	return path, nil
}
