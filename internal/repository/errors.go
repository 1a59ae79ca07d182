package repository

import (
	"errors"
)

// ErrVersionConflict 乐观锁冲突：UPDATE 时行版本已被其他请求修改
// 服务层负责翻译成用户可见的冲突错误，调用方不应依赖存储层错误类型
var ErrVersionConflict = errors.New("row version conflict")
