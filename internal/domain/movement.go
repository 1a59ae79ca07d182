package domain

import (
	"database/sql"
)

// SampleStorageMovement 移动审计记录（对应 sample_storage_movements 表）
// 追加写入，永不更新/删除；首次分配 previous 全为 NULL，处置 new 全为 NULL
type SampleStorageMovement struct {
	MovementID             int64          `db:"movement_id"`
	SampleItemID           int64          `db:"sample_item_id"`
	PrevLocationID         sql.NullInt64  `db:"prev_location_id"`
	PrevLocationType       sql.NullString `db:"prev_location_type"`
	PrevPositionCoordinate sql.NullString `db:"prev_position_coordinate"`
	NewLocationID          sql.NullInt64  `db:"new_location_id"`
	NewLocationType        sql.NullString `db:"new_location_type"`
	NewPositionCoordinate  sql.NullString `db:"new_position_coordinate"`
	Reason                 sql.NullString `db:"reason"`
	MovedByUserID          sql.NullInt64  `db:"moved_by_user_id"`
	MovementDate           sql.NullTime   `db:"movement_date"`
}
