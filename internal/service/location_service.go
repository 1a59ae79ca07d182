package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"biobank-data/internal/domain"
	"biobank-data/internal/repository"
)

// ============================================
// 请求/响应结构
// ============================================

type ListRoomsRequest struct {
	Search     string
	ActiveOnly bool
	Page       int
	Size       int
}

type ListRoomsResponse struct {
	Rooms []*RoomAPIView `json:"rooms"`
	Total int            `json:"total"`
}

type CreateRoomRequest struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UpdateRoomRequest Code 字段即使传入也被忽略（创建后只读，静默保留原值）
type UpdateRoomRequest struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

type CreateDeviceRequest struct {
	RoomID        int64    `json:"room_id"`
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	DeviceType    string   `json:"device_type"`
	Temperature   *float64 `json:"temperature"`
	CapacityLimit *int64   `json:"capacity_limit"`
	ShortCode     string   `json:"short_code"`
}

// UpdateDeviceRequest Code/RoomID 即使传入也被忽略
type UpdateDeviceRequest struct {
	Code          string   `json:"code"`
	RoomID        int64    `json:"room_id"`
	Name          string   `json:"name"`
	DeviceType    string   `json:"device_type"`
	Temperature   *float64 `json:"temperature"`
	CapacityLimit *int64   `json:"capacity_limit"`
	ShortCode     string   `json:"short_code"`
	Active        *bool    `json:"active"`
}

type CreateShelfRequest struct {
	DeviceID      int64  `json:"device_id"`
	Label         string `json:"label"`
	CapacityLimit *int64 `json:"capacity_limit"`
	ShortCode     string `json:"short_code"`
}

type UpdateShelfRequest struct {
	DeviceID      int64  `json:"device_id"`
	Label         string `json:"label"`
	CapacityLimit *int64 `json:"capacity_limit"`
	ShortCode     string `json:"short_code"`
	Active        *bool  `json:"active"`
}

type CreateRackRequest struct {
	ShelfID        int64  `json:"shelf_id"`
	Label          string `json:"label"`
	Rows           int    `json:"rows"`
	Columns        int    `json:"columns"`
	PositionSchema string `json:"position_schema"`
	ShortCode      string `json:"short_code"`
}

type UpdateRackRequest struct {
	ShelfID        int64  `json:"shelf_id"`
	Label          string `json:"label"`
	Rows           *int   `json:"rows"`
	Columns        *int   `json:"columns"`
	PositionSchema string `json:"position_schema"`
	ShortCode      string `json:"short_code"`
	Active         *bool  `json:"active"`
}

type CreatePositionRequest struct {
	DeviceID   int64  `json:"device_id"`
	ShelfID    *int64 `json:"shelf_id"`
	RackID     *int64 `json:"rack_id"`
	Coordinate string `json:"coordinate"`
}

// UpdateShortCodeResponse 短码写入结果，Warning 仅提示不阻断
type UpdateShortCodeResponse struct {
	Warning string `json:"warning,omitempty"`
}

// ============================================
// API 读投影（父节点名称与占用数预联好，供列表页直接渲染）
// ============================================

type RoomAPIView struct {
	RoomID      int64  `json:"room_id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
	ExternalID  string `json:"external_id"`
	DeviceCount int    `json:"device_count"`
}

type DeviceAPIView struct {
	DeviceID      int64    `json:"device_id"`
	RoomID        int64    `json:"room_id"`
	RoomName      string   `json:"room_name"`
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	DeviceType    string   `json:"device_type"`
	Temperature   *float64 `json:"temperature"`
	CapacityLimit *int64   `json:"capacity_limit"`
	ShortCode     string   `json:"short_code,omitempty"`
	Active        bool     `json:"active"`
	ShelfCount    int      `json:"shelf_count"`
	Occupied      int      `json:"occupied"`
}

type ShelfAPIView struct {
	ShelfID       int64  `json:"shelf_id"`
	DeviceID      int64  `json:"device_id"`
	DeviceName    string `json:"device_name"`
	Label         string `json:"label"`
	CapacityLimit *int64 `json:"capacity_limit"`
	ShortCode     string `json:"short_code,omitempty"`
	Active        bool   `json:"active"`
	RackCount     int    `json:"rack_count"`
	Occupied      int    `json:"occupied"`
}

type RackAPIView struct {
	RackID         int64  `json:"rack_id"`
	ShelfID        int64  `json:"shelf_id"`
	ShelfLabel     string `json:"shelf_label"`
	Label          string `json:"label"`
	Rows           int    `json:"rows"`
	Columns        int    `json:"columns"`
	Capacity       int    `json:"capacity"`
	PositionSchema string `json:"position_schema,omitempty"`
	ShortCode      string `json:"short_code,omitempty"`
	Active         bool   `json:"active"`
	Occupied       int    `json:"occupied"`
}

// ============================================
// Service 接口
// ============================================

// LocationService 存储位置层级管理：CRUD、容量计算、路径渲染、API 投影
type LocationService interface {
	// Room
	ListRooms(ctx context.Context, req *ListRoomsRequest) (*ListRoomsResponse, error)
	GetRoom(ctx context.Context, roomID int64) (*domain.Room, error)
	CreateRoom(ctx context.Context, req *CreateRoomRequest) (*domain.Room, error)
	UpdateRoom(ctx context.Context, roomID int64, req *UpdateRoomRequest) (*domain.Room, error)
	DeleteRoom(ctx context.Context, roomID int64) error

	// Device
	ListDevicesForAPI(ctx context.Context, roomID int64) ([]*DeviceAPIView, error)
	GetDevice(ctx context.Context, deviceID int64) (*domain.Device, error)
	CreateDevice(ctx context.Context, req *CreateDeviceRequest) (*domain.Device, error)
	UpdateDevice(ctx context.Context, deviceID int64, req *UpdateDeviceRequest) (*domain.Device, string, error)
	DeleteDevice(ctx context.Context, deviceID int64) error

	// Shelf
	ListShelvesForAPI(ctx context.Context, deviceID int64) ([]*ShelfAPIView, error)
	GetShelf(ctx context.Context, shelfID int64) (*domain.Shelf, error)
	CreateShelf(ctx context.Context, req *CreateShelfRequest) (*domain.Shelf, error)
	UpdateShelf(ctx context.Context, shelfID int64, req *UpdateShelfRequest) (*domain.Shelf, string, error)
	DeleteShelf(ctx context.Context, shelfID int64) error

	// Rack
	ListRacksForAPI(ctx context.Context, shelfID int64) ([]*RackAPIView, error)
	GetRack(ctx context.Context, rackID int64) (*domain.Rack, error)
	CreateRack(ctx context.Context, req *CreateRackRequest) (*domain.Rack, error)
	UpdateRack(ctx context.Context, rackID int64, req *UpdateRackRequest) (*domain.Rack, string, error)
	DeleteRack(ctx context.Context, rackID int64) error

	// Position
	ListPositions(ctx context.Context, rackID int64) ([]*domain.Position, error)
	CreatePosition(ctx context.Context, req *CreatePositionRequest) (*domain.Position, error)
	DeletePosition(ctx context.Context, positionID int64) error

	// 容量与路径
	CalculateCapacity(ctx context.Context, ref domain.LocationRef) (*CapacityInfo, error)
	BuildHierarchicalPath(ctx context.Context, ref domain.LocationRef) (string, error)
}

type locationService struct {
	locations  repository.LocationsRepository
	shortCodes ShortCodeValidator
	logger     *zap.Logger
}

func NewLocationService(locations repository.LocationsRepository, shortCodes ShortCodeValidator, logger *zap.Logger) LocationService {
	return &locationService{
		locations:  locations,
		shortCodes: shortCodes,
		logger:     logger,
	}
}

// ============================================
// Room
// ============================================

func (s *locationService) ListRooms(ctx context.Context, req *ListRoomsRequest) (*ListRoomsResponse, error) {
	rooms, total, err := s.locations.ListRooms(ctx, repository.RoomFilters{
		Search:     req.Search,
		ActiveOnly: req.ActiveOnly,
	}, req.Page, req.Size)
	if err != nil {
		s.logger.Error("failed to list rooms", zap.Error(err))
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	views := make([]*RoomAPIView, 0, len(rooms))
	for _, room := range rooms {
		deviceCount, err := s.locations.CountDevicesInRoom(ctx, room.RoomID)
		if err != nil {
			return nil, fmt.Errorf("failed to count devices in room %d: %w", room.RoomID, err)
		}
		views = append(views, &RoomAPIView{
			RoomID:      room.RoomID,
			Code:        room.Code,
			Name:        room.Name,
			Description: room.Description.String,
			Active:      room.Active,
			ExternalID:  room.ExternalID,
			DeviceCount: deviceCount,
		})
	}
	return &ListRoomsResponse{Rooms: views, Total: total}, nil
}

func (s *locationService) GetRoom(ctx context.Context, roomID int64) (*domain.Room, error) {
	room, err := s.locations.GetRoom(ctx, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("room %d not found", roomID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

func (s *locationService) CreateRoom(ctx context.Context, req *CreateRoomRequest) (*domain.Room, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return nil, fmt.Errorf("room code is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("room name is required")
	}

	// Room code 全局唯一
	if _, err := s.locations.FindRoomByCode(ctx, code); err == nil {
		return nil, fmt.Errorf("room code %s already exists", code)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check room code: %w", err)
	}

	room := &domain.Room{
		Code:        code,
		Name:        strings.TrimSpace(req.Name),
		Description: nullString(req.Description),
		Active:      true,
	}
	roomID, err := s.locations.CreateRoom(ctx, room)
	if err != nil {
		s.logger.Error("failed to create room", zap.String("code", code), zap.Error(err))
		return nil, err
	}
	s.logger.Info("room created", zap.Int64("room_id", roomID), zap.String("code", code))
	return s.locations.GetRoom(ctx, roomID)
}

// UpdateRoom 只读字段（code）先加载再拷贝可变字段，传入值不落库
func (s *locationService) UpdateRoom(ctx context.Context, roomID int64, req *UpdateRoomRequest) (*domain.Room, error) {
	room, err := s.locations.GetRoom(ctx, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("room %d not found", roomID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	if strings.TrimSpace(req.Name) != "" {
		room.Name = strings.TrimSpace(req.Name)
	}
	room.Description = nullString(req.Description)
	if req.Active != nil {
		room.Active = *req.Active
	}

	if err := s.locations.UpdateRoom(ctx, roomID, room); err != nil {
		s.logger.Error("failed to update room", zap.Int64("room_id", roomID), zap.Error(err))
		return nil, err
	}
	return s.locations.GetRoom(ctx, roomID)
}

func (s *locationService) DeleteRoom(ctx context.Context, roomID int64) error {
	room, err := s.locations.GetRoom(ctx, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("room %d not found", roomID)
	}
	if err != nil {
		return fmt.Errorf("failed to get room: %w", err)
	}

	deviceCount, err := s.locations.CountDevicesInRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to count devices in room: %w", err)
	}
	if deviceCount > 0 {
		return fmt.Errorf("cannot delete room %s: %d devices still attached", room.Code, deviceCount)
	}
	if err := s.locations.DeleteRoom(ctx, roomID); err != nil {
		s.logger.Error("failed to delete room", zap.Int64("room_id", roomID), zap.Error(err))
		return err
	}
	s.logger.Info("room deleted", zap.Int64("room_id", roomID), zap.String("code", room.Code))
	return nil
}

// ============================================
// Device
// ============================================

func (s *locationService) ListDevicesForAPI(ctx context.Context, roomID int64) ([]*DeviceAPIView, error) {
	devices, err := s.locations.ListDevices(ctx, roomID)
	if err != nil {
		s.logger.Error("failed to list devices", zap.Int64("room_id", roomID), zap.Error(err))
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	roomNames := map[int64]string{}
	views := make([]*DeviceAPIView, 0, len(devices))
	for _, d := range devices {
		roomName, cached := roomNames[d.RoomID]
		if !cached {
			room, err := s.locations.GetRoom(ctx, d.RoomID)
			if errors.Is(err, sql.ErrNoRows) {
				roomName = "Unknown Location"
			} else if err != nil {
				return nil, fmt.Errorf("failed to get room %d: %w", d.RoomID, err)
			} else {
				roomName = room.Name
			}
			roomNames[d.RoomID] = roomName
		}
		shelfCount, err := s.locations.CountShelvesInDevice(ctx, d.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("failed to count shelves in device %d: %w", d.DeviceID, err)
		}
		occupied, err := s.locations.CountOccupiedInDevice(ctx, d.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("failed to count occupancy of device %d: %w", d.DeviceID, err)
		}
		views = append(views, &DeviceAPIView{
			DeviceID:      d.DeviceID,
			RoomID:        d.RoomID,
			RoomName:      roomName,
			Code:          d.Code,
			Name:          d.Name,
			DeviceType:    d.DeviceType,
			Temperature:   floatPtr(d.Temperature),
			CapacityLimit: int64Ptr(d.CapacityLimit),
			ShortCode:     d.ShortCode.String,
			Active:        d.Active,
			ShelfCount:    shelfCount,
			Occupied:      occupied,
		})
	}
	return views, nil
}

func (s *locationService) GetDevice(ctx context.Context, deviceID int64) (*domain.Device, error) {
	device, err := s.locations.GetDevice(ctx, deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("device %d not found", deviceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return device, nil
}

func (s *locationService) CreateDevice(ctx context.Context, req *CreateDeviceRequest) (*domain.Device, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return nil, fmt.Errorf("device code is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("device name is required")
	}
	if !domain.IsValidDeviceType(req.DeviceType) {
		return nil, fmt.Errorf("invalid device type: %s", req.DeviceType)
	}

	if _, err := s.locations.GetRoom(ctx, req.RoomID); errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("room %d not found", req.RoomID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	// Device code 在所属 Room 内唯一
	if _, err := s.locations.FindDeviceByCodeInRoom(ctx, code, req.RoomID); err == nil {
		return nil, fmt.Errorf("device code %s already exists in room %d", code, req.RoomID)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check device code: %w", err)
	}

	shortCode, err := s.checkShortCode(ctx, req.ShortCode, string(domain.LocationTypeDevice), 0)
	if err != nil {
		return nil, err
	}

	device := &domain.Device{
		RoomID:        req.RoomID,
		Code:          code,
		Name:          strings.TrimSpace(req.Name),
		DeviceType:    req.DeviceType,
		Temperature:   nullFloat(req.Temperature),
		CapacityLimit: nullInt64(req.CapacityLimit),
		ShortCode:     nullString(shortCode),
		Active:        true,
	}
	deviceID, err := s.locations.CreateDevice(ctx, device)
	if err != nil {
		s.logger.Error("failed to create device", zap.String("code", code), zap.Error(err))
		return nil, err
	}
	s.logger.Info("device created", zap.Int64("device_id", deviceID), zap.String("code", code))
	return s.locations.GetDevice(ctx, deviceID)
}

// UpdateDevice 返回 (设备, 短码变更提示, 错误)；code/room_id 静默保留原值
func (s *locationService) UpdateDevice(ctx context.Context, deviceID int64, req *UpdateDeviceRequest) (*domain.Device, string, error) {
	device, err := s.locations.GetDevice(ctx, deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("device %d not found", deviceID)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get device: %w", err)
	}

	if strings.TrimSpace(req.Name) != "" {
		device.Name = strings.TrimSpace(req.Name)
	}
	if req.DeviceType != "" {
		if !domain.IsValidDeviceType(req.DeviceType) {
			return nil, "", fmt.Errorf("invalid device type: %s", req.DeviceType)
		}
		device.DeviceType = req.DeviceType
	}
	device.Temperature = nullFloat(req.Temperature)
	device.CapacityLimit = nullInt64(req.CapacityLimit)
	if req.Active != nil {
		device.Active = *req.Active
	}

	warning := ""
	if req.ShortCode != device.ShortCode.String {
		shortCode, err := s.checkShortCode(ctx, req.ShortCode, string(domain.LocationTypeDevice), deviceID)
		if err != nil {
			return nil, "", err
		}
		warning = s.shortCodes.ChangeWarning(device.ShortCode.String, shortCode, deviceID)
		device.ShortCode = nullString(shortCode)
	}

	if err := s.locations.UpdateDevice(ctx, deviceID, device); err != nil {
		s.logger.Error("failed to update device", zap.Int64("device_id", deviceID), zap.Error(err))
		return nil, "", err
	}
	updated, err := s.locations.GetDevice(ctx, deviceID)
	return updated, warning, err
}

func (s *locationService) DeleteDevice(ctx context.Context, deviceID int64) error {
	device, err := s.locations.GetDevice(ctx, deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("device %d not found", deviceID)
	}
	if err != nil {
		return fmt.Errorf("failed to get device: %w", err)
	}

	shelfCount, err := s.locations.CountShelvesInDevice(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("failed to count shelves in device: %w", err)
	}
	if shelfCount > 0 {
		return fmt.Errorf("cannot delete device %s: %d shelves still attached", device.Code, shelfCount)
	}
	if err := s.locations.DeleteDevice(ctx, deviceID); err != nil {
		s.logger.Error("failed to delete device", zap.Int64("device_id", deviceID), zap.Error(err))
		return err
	}
	s.logger.Info("device deleted", zap.Int64("device_id", deviceID), zap.String("code", device.Code))
	return nil
}

// ============================================
// Shelf
// ============================================

func (s *locationService) ListShelvesForAPI(ctx context.Context, deviceID int64) ([]*ShelfAPIView, error) {
	shelves, err := s.locations.ListShelves(ctx, deviceID)
	if err != nil {
		s.logger.Error("failed to list shelves", zap.Int64("device_id", deviceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list shelves: %w", err)
	}

	deviceNames := map[int64]string{}
	views := make([]*ShelfAPIView, 0, len(shelves))
	for _, sh := range shelves {
		deviceName, cached := deviceNames[sh.DeviceID]
		if !cached {
			device, err := s.locations.GetDevice(ctx, sh.DeviceID)
			if errors.Is(err, sql.ErrNoRows) {
				deviceName = "Unknown"
			} else if err != nil {
				return nil, fmt.Errorf("failed to get device %d: %w", sh.DeviceID, err)
			} else {
				deviceName = device.Name
			}
			deviceNames[sh.DeviceID] = deviceName
		}
		rackCount, err := s.locations.CountRacksInShelf(ctx, sh.ShelfID)
		if err != nil {
			return nil, fmt.Errorf("failed to count racks in shelf %d: %w", sh.ShelfID, err)
		}
		occupied, err := s.locations.CountOccupiedInShelf(ctx, sh.ShelfID)
		if err != nil {
			return nil, fmt.Errorf("failed to count occupancy of shelf %d: %w", sh.ShelfID, err)
		}
		views = append(views, &ShelfAPIView{
			ShelfID:       sh.ShelfID,
			DeviceID:      sh.DeviceID,
			DeviceName:    deviceName,
			Label:         sh.Label,
			CapacityLimit: int64Ptr(sh.CapacityLimit),
			ShortCode:     sh.ShortCode.String,
			Active:        sh.Active,
			RackCount:     rackCount,
			Occupied:      occupied,
		})
	}
	return views, nil
}

func (s *locationService) GetShelf(ctx context.Context, shelfID int64) (*domain.Shelf, error) {
	shelf, err := s.locations.GetShelf(ctx, shelfID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("shelf %d not found", shelfID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shelf: %w", err)
	}
	return shelf, nil
}

func (s *locationService) CreateShelf(ctx context.Context, req *CreateShelfRequest) (*domain.Shelf, error) {
	label := strings.ToUpper(strings.TrimSpace(req.Label))
	if label == "" {
		return nil, fmt.Errorf("shelf label is required")
	}
	if _, err := s.locations.GetDevice(ctx, req.DeviceID); errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("device %d not found", req.DeviceID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	if _, err := s.locations.FindShelfByLabelInDevice(ctx, label, req.DeviceID); err == nil {
		return nil, fmt.Errorf("shelf label %s already exists in device %d", label, req.DeviceID)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check shelf label: %w", err)
	}

	shortCode, err := s.checkShortCode(ctx, req.ShortCode, string(domain.LocationTypeShelf), 0)
	if err != nil {
		return nil, err
	}

	shelf := &domain.Shelf{
		DeviceID:      req.DeviceID,
		Label:         label,
		CapacityLimit: nullInt64(req.CapacityLimit),
		ShortCode:     nullString(shortCode),
		Active:        true,
	}
	shelfID, err := s.locations.CreateShelf(ctx, shelf)
	if err != nil {
		s.logger.Error("failed to create shelf", zap.String("label", label), zap.Error(err))
		return nil, err
	}
	s.logger.Info("shelf created", zap.Int64("shelf_id", shelfID), zap.String("label", label))
	return s.locations.GetShelf(ctx, shelfID)
}

func (s *locationService) UpdateShelf(ctx context.Context, shelfID int64, req *UpdateShelfRequest) (*domain.Shelf, string, error) {
	shelf, err := s.locations.GetShelf(ctx, shelfID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("shelf %d not found", shelfID)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get shelf: %w", err)
	}

	if strings.TrimSpace(req.Label) != "" {
		shelf.Label = strings.ToUpper(strings.TrimSpace(req.Label))
	}
	shelf.CapacityLimit = nullInt64(req.CapacityLimit)
	if req.Active != nil {
		shelf.Active = *req.Active
	}

	warning := ""
	if req.ShortCode != shelf.ShortCode.String {
		shortCode, err := s.checkShortCode(ctx, req.ShortCode, string(domain.LocationTypeShelf), shelfID)
		if err != nil {
			return nil, "", err
		}
		warning = s.shortCodes.ChangeWarning(shelf.ShortCode.String, shortCode, shelfID)
		shelf.ShortCode = nullString(shortCode)
	}

	if err := s.locations.UpdateShelf(ctx, shelfID, shelf); err != nil {
		s.logger.Error("failed to update shelf", zap.Int64("shelf_id", shelfID), zap.Error(err))
		return nil, "", err
	}
	updated, err := s.locations.GetShelf(ctx, shelfID)
	return updated, warning, err
}

func (s *locationService) DeleteShelf(ctx context.Context, shelfID int64) error {
	shelf, err := s.locations.GetShelf(ctx, shelfID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("shelf %d not found", shelfID)
	}
	if err != nil {
		return fmt.Errorf("failed to get shelf: %w", err)
	}

	rackCount, err := s.locations.CountRacksInShelf(ctx, shelfID)
	if err != nil {
		return fmt.Errorf("failed to count racks in shelf: %w", err)
	}
	if rackCount > 0 {
		return fmt.Errorf("cannot delete shelf %s: %d racks still attached", shelf.Label, rackCount)
	}
	if err := s.locations.DeleteShelf(ctx, shelfID); err != nil {
		s.logger.Error("failed to delete shelf", zap.Int64("shelf_id", shelfID), zap.Error(err))
		return err
	}
	s.logger.Info("shelf deleted", zap.Int64("shelf_id", shelfID), zap.String("label", shelf.Label))
	return nil
}

// ============================================
// Rack
// ============================================

func (s *locationService) ListRacksForAPI(ctx context.Context, shelfID int64) ([]*RackAPIView, error) {
	racks, err := s.locations.ListRacks(ctx, shelfID)
	if err != nil {
		s.logger.Error("failed to list racks", zap.Int64("shelf_id", shelfID), zap.Error(err))
		return nil, fmt.Errorf("failed to list racks: %w", err)
	}

	shelfLabels := map[int64]string{}
	views := make([]*RackAPIView, 0, len(racks))
	for _, rk := range racks {
		shelfLabel, cached := shelfLabels[rk.ShelfID]
		if !cached {
			shelf, err := s.locations.GetShelf(ctx, rk.ShelfID)
			if errors.Is(err, sql.ErrNoRows) {
				shelfLabel = "Unknown"
			} else if err != nil {
				return nil, fmt.Errorf("failed to get shelf %d: %w", rk.ShelfID, err)
			} else {
				shelfLabel = shelf.Label
			}
			shelfLabels[rk.ShelfID] = shelfLabel
		}
		occupied, err := s.locations.CountOccupiedInRack(ctx, rk.RackID)
		if err != nil {
			return nil, fmt.Errorf("failed to count occupancy of rack %d: %w", rk.RackID, err)
		}
		views = append(views, &RackAPIView{
			RackID:         rk.RackID,
			ShelfID:        rk.ShelfID,
			ShelfLabel:     shelfLabel,
			Label:          rk.Label,
			Rows:           rk.Rows,
			Columns:        rk.Columns,
			Capacity:       rk.Capacity(),
			PositionSchema: rk.PositionSchema.String,
			ShortCode:      rk.ShortCode.String,
			Active:         rk.Active,
			Occupied:       occupied,
		})
	}
	return views, nil
}

func (s *locationService) GetRack(ctx context.Context, rackID int64) (*domain.Rack, error) {
	rack, err := s.locations.GetRack(ctx, rackID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rack %d not found", rackID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rack: %w", err)
	}
	return rack, nil
}

func (s *locationService) CreateRack(ctx context.Context, req *CreateRackRequest) (*domain.Rack, error) {
	label := strings.ToUpper(strings.TrimSpace(req.Label))
	if label == "" {
		return nil, fmt.Errorf("rack label is required")
	}
	// 0 行/列合法（容量为 0 的占位架），负数拒绝
	if req.Rows < 0 || req.Columns < 0 {
		return nil, fmt.Errorf("rack rows and columns must not be negative")
	}
	if _, err := s.locations.GetShelf(ctx, req.ShelfID); errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("shelf %d not found", req.ShelfID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get shelf: %w", err)
	}

	if _, err := s.locations.FindRackByLabelInShelf(ctx, label, req.ShelfID); err == nil {
		return nil, fmt.Errorf("rack label %s already exists in shelf %d", label, req.ShelfID)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check rack label: %w", err)
	}

	shortCode, err := s.checkShortCode(ctx, req.ShortCode, string(domain.LocationTypeRack), 0)
	if err != nil {
		return nil, err
	}

	rack := &domain.Rack{
		ShelfID:        req.ShelfID,
		Label:          label,
		Rows:           req.Rows,
		Columns:        req.Columns,
		PositionSchema: nullString(req.PositionSchema),
		ShortCode:      nullString(shortCode),
		Active:         true,
	}
	rackID, err := s.locations.CreateRack(ctx, rack)
	if err != nil {
		s.logger.Error("failed to create rack", zap.String("label", label), zap.Error(err))
		return nil, err
	}
	s.logger.Info("rack created", zap.Int64("rack_id", rackID), zap.String("label", label))
	return s.locations.GetRack(ctx, rackID)
}

func (s *locationService) UpdateRack(ctx context.Context, rackID int64, req *UpdateRackRequest) (*domain.Rack, string, error) {
	rack, err := s.locations.GetRack(ctx, rackID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("rack %d not found", rackID)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get rack: %w", err)
	}

	if strings.TrimSpace(req.Label) != "" {
		rack.Label = strings.ToUpper(strings.TrimSpace(req.Label))
	}
	if req.Rows != nil {
		if *req.Rows < 0 {
			return nil, "", fmt.Errorf("rack rows must not be negative")
		}
		rack.Rows = *req.Rows
	}
	if req.Columns != nil {
		if *req.Columns < 0 {
			return nil, "", fmt.Errorf("rack columns must not be negative")
		}
		rack.Columns = *req.Columns
	}
	rack.PositionSchema = nullString(req.PositionSchema)
	if req.Active != nil {
		rack.Active = *req.Active
	}

	warning := ""
	if req.ShortCode != rack.ShortCode.String {
		shortCode, err := s.checkShortCode(ctx, req.ShortCode, string(domain.LocationTypeRack), rackID)
		if err != nil {
			return nil, "", err
		}
		warning = s.shortCodes.ChangeWarning(rack.ShortCode.String, shortCode, rackID)
		rack.ShortCode = nullString(shortCode)
	}

	if err := s.locations.UpdateRack(ctx, rackID, rack); err != nil {
		s.logger.Error("failed to update rack", zap.Int64("rack_id", rackID), zap.Error(err))
		return nil, "", err
	}
	updated, err := s.locations.GetRack(ctx, rackID)
	return updated, warning, err
}

func (s *locationService) DeleteRack(ctx context.Context, rackID int64) error {
	if _, err := s.locations.GetRack(ctx, rackID); errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("rack %d not found", rackID)
	} else if err != nil {
		return fmt.Errorf("failed to get rack: %w", err)
	}
	if err := s.locations.DeleteRack(ctx, rackID); err != nil {
		s.logger.Error("failed to delete rack", zap.Int64("rack_id", rackID), zap.Error(err))
		return err
	}
	s.logger.Info("rack deleted", zap.Int64("rack_id", rackID))
	return nil
}

// ============================================
// Position
// ============================================

func (s *locationService) ListPositions(ctx context.Context, rackID int64) ([]*domain.Position, error) {
	positions, err := s.locations.ListPositions(ctx, rackID)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	return positions, nil
}

func (s *locationService) CreatePosition(ctx context.Context, req *CreatePositionRequest) (*domain.Position, error) {
	coordinate := strings.ToUpper(strings.TrimSpace(req.Coordinate))
	if coordinate == "" {
		return nil, fmt.Errorf("position coordinate is required")
	}
	if _, err := s.locations.GetDevice(ctx, req.DeviceID); errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("device %d not found", req.DeviceID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	if req.RackID != nil {
		if _, err := s.locations.GetRack(ctx, *req.RackID); errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rack %d not found", *req.RackID)
		} else if err != nil {
			return nil, fmt.Errorf("failed to get rack: %w", err)
		}
		if _, err := s.locations.FindPositionByCoordinateInRack(ctx, coordinate, *req.RackID); err == nil {
			return nil, fmt.Errorf("position %s already exists in rack %d", coordinate, *req.RackID)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to check position coordinate: %w", err)
		}
	}

	position := &domain.Position{
		DeviceID:   req.DeviceID,
		ShelfID:    nullInt64(req.ShelfID),
		RackID:     nullInt64(req.RackID),
		Coordinate: coordinate,
		Active:     true,
	}
	positionID, err := s.locations.CreatePosition(ctx, position)
	if err != nil {
		s.logger.Error("failed to create position", zap.String("coordinate", coordinate), zap.Error(err))
		return nil, err
	}
	return s.locations.GetPosition(ctx, positionID)
}

func (s *locationService) DeletePosition(ctx context.Context, positionID int64) error {
	if err := s.locations.DeletePosition(ctx, positionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("position %d not found", positionID)
		}
		return err
	}
	return nil
}

// ============================================
// 路径渲染
// ============================================

// BuildHierarchicalPath 从 Room 向下用 " > " 连接祖先名称，
// 坐标存在时末尾追加 "Position {coordinate}"；
// 祖先缺失时回退为 Unknown Location / Unknown，保证总能渲染出内容
func (s *locationService) BuildHierarchicalPath(ctx context.Context, ref domain.LocationRef) (string, error) {
	parts := []string{}

	appendDeviceChain := func(deviceID int64) {
		device, err := s.locations.GetDevice(ctx, deviceID)
		if err != nil {
			parts = append(parts, "Unknown Location", "Unknown")
			return
		}
		room, err := s.locations.GetRoom(ctx, device.RoomID)
		if err != nil {
			parts = append(parts, "Unknown Location")
		} else {
			parts = append(parts, room.Name)
		}
		parts = append(parts, device.Name)
	}

	switch ref.Type {
	case domain.LocationTypeDevice:
		appendDeviceChain(ref.ID)
	case domain.LocationTypeShelf:
		shelf, err := s.locations.GetShelf(ctx, ref.ID)
		if err != nil {
			parts = append(parts, "Unknown Location", "Unknown", "Unknown")
			break
		}
		appendDeviceChain(shelf.DeviceID)
		parts = append(parts, shelf.Label)
	case domain.LocationTypeRack:
		rack, err := s.locations.GetRack(ctx, ref.ID)
		if err != nil {
			parts = append(parts, "Unknown Location", "Unknown", "Unknown", "Unknown")
			break
		}
		shelf, err := s.locations.GetShelf(ctx, rack.ShelfID)
		if err != nil {
			parts = append(parts, "Unknown Location", "Unknown", "Unknown")
		} else {
			appendDeviceChain(shelf.DeviceID)
			parts = append(parts, shelf.Label)
		}
		parts = append(parts, rack.Label)
	default:
		return "", fmt.Errorf("unsupported location type: %s", ref.Type)
	}

	path := strings.Join(parts, " > ")
	if ref.Coordinate.Valid && ref.Coordinate.String != "" {
		path = path + " > Position " + ref.Coordinate.String
	}
	return path, nil
}

// ============================================
// 内部辅助
// ============================================

// checkShortCode 格式+唯一性一并校验，返回规范化后的短码（空串表示未设置）
func (s *locationService) checkShortCode(ctx context.Context, code string, level string, excludeID int64) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", nil
	}
	format := s.shortCodes.ValidateFormat(code)
	if !format.Valid {
		return "", errors.New(format.Error)
	}
	unique, err := s.shortCodes.ValidateUniqueness(ctx, format.NormalizedCode, level, excludeID)
	if err != nil {
		return "", err
	}
	if !unique.Valid {
		return "", errors.New(unique.Error)
	}
	return format.NormalizedCode, nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
