package domain

import (
	"database/sql"
)

// Shelf 层板领域模型（对应 shelves 表）
type Shelf struct {
	ShelfID       int64          `db:"shelf_id"`
	DeviceID      int64          `db:"device_id"`      // NOT NULL, 创建后只读
	Label         string         `db:"label"`          // NOT NULL
	CapacityLimit sql.NullInt64  `db:"capacity_limit"` // nullable, 手动容量上限
	ShortCode     sql.NullString `db:"short_code"`     // nullable
	Active        bool           `db:"active"`
	ExternalID    string         `db:"external_id"`
	CreatedAt     sql.NullTime   `db:"created_at"`
	UpdatedAt     sql.NullTime   `db:"updated_at"`
}
