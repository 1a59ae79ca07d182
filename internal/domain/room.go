package domain

import (
	"database/sql"
)

// Room 房间领域模型（对应 rooms 表）
// 存储层级的根节点；code 创建后不可变
type Room struct {
	RoomID      int64          `db:"room_id"`
	Code        string         `db:"code"`        // NOT NULL, 全局唯一, 创建后只读
	Name        string         `db:"name"`        // NOT NULL
	Description sql.NullString `db:"description"` // nullable
	Active      bool           `db:"active"`      // NOT NULL, default true
	ExternalID  string         `db:"external_id"` // uuid, 跨系统关联
	CreatedAt   sql.NullTime   `db:"created_at"`
	UpdatedAt   sql.NullTime   `db:"updated_at"`
}
