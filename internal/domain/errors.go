package domain

import (
	"errors"
	"fmt"
)

// 错误分类：
// - ErrValidation   输入校验失败（在任何副作用之前拒绝）
// - ErrInvalidRange 聚合查询参数非法（扫描之前拒绝）
// - ErrNotFound     记录不存在
var (
	ErrValidation   = errors.New("validation error")
	ErrInvalidRange = errors.New("invalid range")
	ErrNotFound     = errors.New("not found")
)

// Validationf 构建带说明的校验错误（errors.Is(err, ErrValidation) 成立）
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
