package repository

import (
	"context"

	"biobank-data/internal/domain"
)

// LocationsRepository 存储层级Repository接口
// 使用强类型领域模型；找不到行时返回 sql.ErrNoRows
type LocationsRepository interface {
	// Room 操作
	ListRooms(ctx context.Context, filters RoomFilters, page, size int) ([]*domain.Room, int, error)
	GetRoom(ctx context.Context, roomID int64) (*domain.Room, error)
	FindRoomByCode(ctx context.Context, code string) (*domain.Room, error)
	CreateRoom(ctx context.Context, room *domain.Room) (int64, error)
	UpdateRoom(ctx context.Context, roomID int64, room *domain.Room) error
	DeleteRoom(ctx context.Context, roomID int64) error
	CountDevicesInRoom(ctx context.Context, roomID int64) (int, error)

	// Device 操作
	ListDevices(ctx context.Context, roomID int64) ([]*domain.Device, error)
	GetDevice(ctx context.Context, deviceID int64) (*domain.Device, error)
	FindDeviceByCode(ctx context.Context, code string) (*domain.Device, error)
	FindDeviceByCodeInRoom(ctx context.Context, code string, roomID int64) (*domain.Device, error)
	FindDeviceByShortCode(ctx context.Context, shortCode string) (*domain.Device, error)
	CreateDevice(ctx context.Context, device *domain.Device) (int64, error)
	UpdateDevice(ctx context.Context, deviceID int64, device *domain.Device) error
	DeleteDevice(ctx context.Context, deviceID int64) error
	CountShelvesInDevice(ctx context.Context, deviceID int64) (int, error)

	// Shelf 操作
	ListShelves(ctx context.Context, deviceID int64) ([]*domain.Shelf, error)
	GetShelf(ctx context.Context, shelfID int64) (*domain.Shelf, error)
	FindShelfByLabel(ctx context.Context, label string) (*domain.Shelf, error)
	FindShelfByLabelInDevice(ctx context.Context, label string, deviceID int64) (*domain.Shelf, error)
	FindShelfByShortCode(ctx context.Context, shortCode string) (*domain.Shelf, error)
	CreateShelf(ctx context.Context, shelf *domain.Shelf) (int64, error)
	UpdateShelf(ctx context.Context, shelfID int64, shelf *domain.Shelf) error
	DeleteShelf(ctx context.Context, shelfID int64) error
	CountRacksInShelf(ctx context.Context, shelfID int64) (int, error)

	// Rack 操作
	ListRacks(ctx context.Context, shelfID int64) ([]*domain.Rack, error)
	GetRack(ctx context.Context, rackID int64) (*domain.Rack, error)
	FindRackByLabel(ctx context.Context, label string) (*domain.Rack, error)
	FindRackByLabelInShelf(ctx context.Context, label string, shelfID int64) (*domain.Rack, error)
	FindRackByShortCode(ctx context.Context, shortCode string) (*domain.Rack, error)
	CreateRack(ctx context.Context, rack *domain.Rack) (int64, error)
	UpdateRack(ctx context.Context, rackID int64, rack *domain.Rack) error
	DeleteRack(ctx context.Context, rackID int64) error

	// Position 操作
	ListPositions(ctx context.Context, rackID int64) ([]*domain.Position, error)
	GetPosition(ctx context.Context, positionID int64) (*domain.Position, error)
	FindPositionByCoordinate(ctx context.Context, coordinate string) (*domain.Position, error)
	FindPositionByCoordinateInRack(ctx context.Context, coordinate string, rackID int64) (*domain.Position, error)
	CreatePosition(ctx context.Context, position *domain.Position) (int64, error)
	UpdatePosition(ctx context.Context, positionID int64, position *domain.Position) error
	DeletePosition(ctx context.Context, positionID int64) error

	// 占用计数：统计子树内（含挂在中间层级上的）有效分配
	CountOccupiedInDevice(ctx context.Context, deviceID int64) (int, error)
	CountOccupiedInShelf(ctx context.Context, shelfID int64) (int, error)
	CountOccupiedInRack(ctx context.Context, rackID int64) (int, error)
}

// RoomFilters 房间查询过滤器
type RoomFilters struct {
	Search     string // 模糊搜索 code, name
	ActiveOnly bool
}
