package domain

import (
	"database/sql"
)

// SampleStorageAssignment 样本当前存储位置（对应 sample_storage_assignments 表）
// 每个样本最多一条；move 原地更新，dispose 删除
// version 用于行级乐观锁，UPDATE 时 WHERE version = 旧值
type SampleStorageAssignment struct {
	AssignmentID       int64          `db:"assignment_id"`
	SampleItemID       int64          `db:"sample_item_id"` // 每个样本一条有效记录（服务层保证）
	LocationID         int64          `db:"location_id"`
	LocationType       LocationType   `db:"location_type"`       // device | shelf | rack
	PositionCoordinate sql.NullString `db:"position_coordinate"` // nullable, <= 50 字符
	Notes              sql.NullString `db:"notes"`
	AssignedByUserID   sql.NullInt64  `db:"assigned_by_user_id"`
	AssignedDate       sql.NullTime   `db:"assigned_date"`
	Version            int64          `db:"version"`
}

// Ref 当前位置的多态引用
func (a *SampleStorageAssignment) Ref() LocationRef {
	return LocationRef{Type: a.LocationType, ID: a.LocationID, Coordinate: a.PositionCoordinate}
}
