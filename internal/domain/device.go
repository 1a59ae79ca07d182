package domain

import (
	"database/sql"
)

// 设备类型（存储设备，不是 IoT 设备）
const (
	DeviceTypeFreezer      = "freezer"
	DeviceTypeRefrigerator = "refrigerator"
	DeviceTypeCabinet      = "cabinet"
	DeviceTypeIncubator    = "incubator"
	DeviceTypeOther        = "other"
)

func IsValidDeviceType(t string) bool {
	switch t {
	case DeviceTypeFreezer, DeviceTypeRefrigerator, DeviceTypeCabinet, DeviceTypeIncubator, DeviceTypeOther:
		return true
	}
	return false
}

// Device 存储设备领域模型（对应 devices 表）
// code 在所属 Room 内唯一，创建后只读
type Device struct {
	DeviceID      int64           `db:"device_id"`
	RoomID        int64           `db:"room_id"`        // NOT NULL, 创建后只读
	Code          string          `db:"code"`           // NOT NULL, Room 内唯一, 创建后只读
	Name          string          `db:"name"`           // NOT NULL
	DeviceType    string          `db:"device_type"`    // NOT NULL, 见 DeviceType* 常量
	Temperature   sql.NullFloat64 `db:"temperature"`    // nullable, 设定温度（℃）
	CapacityLimit sql.NullInt64   `db:"capacity_limit"` // nullable, 手动容量上限（>0 时覆盖聚合计算）
	ShortCode     sql.NullString  `db:"short_code"`     // nullable, 打印标签用短码
	Active        bool            `db:"active"`
	ExternalID    string          `db:"external_id"`
	CreatedAt     sql.NullTime    `db:"created_at"`
	UpdatedAt     sql.NullTime    `db:"updated_at"`
}
