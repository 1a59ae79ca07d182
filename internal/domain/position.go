package domain

import (
	"database/sql"
)

// Position 点位领域模型（对应 positions 表）
// 必须挂在 Device 下；rack_id 存在时 shelf_id 必须存在（层级完整性）
type Position struct {
	PositionID int64         `db:"position_id"`
	DeviceID   int64         `db:"device_id"`  // NOT NULL
	ShelfID    sql.NullInt64 `db:"shelf_id"`   // nullable
	RackID     sql.NullInt64 `db:"rack_id"`    // nullable, 有 rack 时 coordinate 才有意义
	Coordinate string        `db:"coordinate"` // NOT NULL, 自由文本（如 "A5"）
	Active     bool          `db:"active"`
	ExternalID string        `db:"external_id"`
	CreatedAt  sql.NullTime  `db:"created_at"`
	UpdatedAt  sql.NullTime  `db:"updated_at"`
}
