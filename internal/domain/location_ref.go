package domain

import (
	"database/sql"
	"fmt"
)

// LocationType 分配/移动记录的多态位置类型
// 注意：没有 "position"——点位坐标是附在三种位置上的数据（position_coordinate），
// 不是第四种可寻址实体
type LocationType string

const (
	LocationTypeDevice LocationType = "device"
	LocationTypeShelf  LocationType = "shelf"
	LocationTypeRack   LocationType = "rack"
)

// ParseLocationType 解析位置类型；显式拒绝历史遗留的 "position" 值
func ParseLocationType(s string) (LocationType, error) {
	switch LocationType(s) {
	case LocationTypeDevice, LocationTypeShelf, LocationTypeRack:
		return LocationType(s), nil
	}
	if s == "position" {
		return "", fmt.Errorf("location_type position is not assignable: use device, shelf or rack with position_coordinate")
	}
	return "", fmt.Errorf("invalid location_type %q: must be one of device, shelf, rack", s)
}

// LocationRef 多态位置引用（tagged variant: Device(id) | Shelf(id) | Rack(id)）
// Coordinate 是可选的自由文本点位坐标
type LocationRef struct {
	Type       LocationType
	ID         int64
	Coordinate sql.NullString
}
