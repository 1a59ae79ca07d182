package domain

import (
	"database/sql"
)

// Rack 冻存架领域模型（对应 racks 表）
// 容量永远是 rows × columns，没有手动上限字段
type Rack struct {
	RackID         int64          `db:"rack_id"`
	ShelfID        int64          `db:"shelf_id"`        // NOT NULL, 创建后只读
	Label          string         `db:"label"`           // NOT NULL
	Rows           int            `db:"rows"`            // NOT NULL, >= 0
	Columns        int            `db:"columns"`         // NOT NULL, >= 0
	PositionSchema sql.NullString `db:"position_schema"` // nullable, 坐标命名提示（如 "A1".."H12"）
	ShortCode      sql.NullString `db:"short_code"`      // nullable
	Active         bool           `db:"active"`
	ExternalID     string         `db:"external_id"`
	CreatedAt      sql.NullTime   `db:"created_at"`
	UpdatedAt      sql.NullTime   `db:"updated_at"`
}

// Capacity 架容量 = rows × columns
func (r *Rack) Capacity() int {
	return r.Rows * r.Columns
}
