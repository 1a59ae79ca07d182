package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"biobank-data/internal/domain"

	"github.com/google/uuid"
)

// MemoryLocationsRepo: 用于 DB 未就绪时的联测和单元测试
// - ID 使用自增 int64，external_id 使用 uuid
// - 唯一约束/只读字段由 Service 层保证，这里只做存取
type MemoryLocationsRepo struct {
	mu sync.RWMutex

	nextID    int64
	rooms     map[int64]domain.Room
	devices   map[int64]domain.Device
	shelves   map[int64]domain.Shelf
	racks     map[int64]domain.Rack
	positions map[int64]domain.Position

	// 占用计数需要读分配表；测试里与 MemoryStorageRepo 绑定
	storage *MemoryStorageRepo
}

func NewMemoryLocationsRepo() *MemoryLocationsRepo {
	return &MemoryLocationsRepo{
		rooms:     map[int64]domain.Room{},
		devices:   map[int64]domain.Device{},
		shelves:   map[int64]domain.Shelf{},
		racks:     map[int64]domain.Rack{},
		positions: map[int64]domain.Position{},
	}
}

// BindStorage 绑定分配存储，启用占用计数
func (r *MemoryLocationsRepo) BindStorage(s *MemoryStorageRepo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage = s
}

func (r *MemoryLocationsRepo) allocID() int64 {
	r.nextID++
	return r.nextID
}

func now() sql.NullTime {
	return sql.NullTime{Time: time.Now(), Valid: true}
}

// ---- Rooms ----

func (r *MemoryLocationsRepo) ListRooms(_ context.Context, filters RoomFilters, page, size int) ([]*domain.Room, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.Room{}
	for id := range r.rooms {
		room := r.rooms[id]
		if filters.ActiveOnly && !room.Active {
			continue
		}
		if filters.Search != "" {
			s := strings.ToLower(filters.Search)
			if !strings.Contains(strings.ToLower(room.Code), s) && !strings.Contains(strings.ToLower(room.Name), s) {
				continue
			}
		}
		out = append(out, &room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })

	total := len(out)
	if page > 0 && size > 0 {
		start := (page - 1) * size
		if start >= total {
			return []*domain.Room{}, total, nil
		}
		end := start + size
		if end > total {
			end = total
		}
		out = out[start:end]
	}
	return out, total, nil
}

func (r *MemoryLocationsRepo) GetRoom(_ context.Context, roomID int64) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &room, nil
}

func (r *MemoryLocationsRepo) FindRoomByCode(_ context.Context, code string) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id := range r.rooms {
		room := r.rooms[id]
		if room.Code == code {
			return &room, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *MemoryLocationsRepo) CreateRoom(_ context.Context, room *domain.Room) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.allocID()
	stored := *room
	stored.RoomID = id
	if stored.ExternalID == "" {
		stored.ExternalID = uuid.NewString()
	}
	stored.CreatedAt = now()
	stored.UpdatedAt = now()
	r.rooms[id] = stored
	return id, nil
}

func (r *MemoryLocationsRepo) UpdateRoom(_ context.Context, roomID int64, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rooms[roomID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Name = room.Name
	stored.Description = room.Description
	stored.Active = room.Active
	stored.UpdatedAt = now()
	r.rooms[roomID] = stored
	return nil
}

func (r *MemoryLocationsRepo) DeleteRoom(_ context.Context, roomID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[roomID]; !ok {
		return sql.ErrNoRows
	}
	delete(r.rooms, roomID)
	return nil
}

func (r *MemoryLocationsRepo) CountDevicesInRoom(_ context.Context, roomID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, d := range r.devices {
		if d.RoomID == roomID {
			n++
		}
	}
	return n, nil
}

// ---- Devices ----

func (r *MemoryLocationsRepo) ListDevices(_ context.Context, roomID int64) ([]*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*domain.Device{}
	for id := range r.devices {
		d := r.devices[id]
		if roomID == 0 || d.RoomID == roomID {
			out = append(out, &d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

func (r *MemoryLocationsRepo) GetDevice(_ context.Context, deviceID int64) (*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[deviceID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &d, nil
}

func (r *MemoryLocationsRepo) findDevice(match func(domain.Device) bool) (*domain.Device, error) {
	ids := make([]int64, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		d := r.devices[id]
		if match(d) {
			return &d, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *MemoryLocationsRepo) FindDeviceByCode(_ context.Context, code string) (*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findDevice(func(d domain.Device) bool { return d.Code == code })
}

func (r *MemoryLocationsRepo) FindDeviceByCodeInRoom(_ context.Context, code string, roomID int64) (*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findDevice(func(d domain.Device) bool { return d.Code == code && d.RoomID == roomID })
}

func (r *MemoryLocationsRepo) FindDeviceByShortCode(_ context.Context, shortCode string) (*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findDevice(func(d domain.Device) bool { return d.ShortCode.Valid && d.ShortCode.String == shortCode })
}

func (r *MemoryLocationsRepo) CreateDevice(_ context.Context, device *domain.Device) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.allocID()
	stored := *device
	stored.DeviceID = id
	if stored.ExternalID == "" {
		stored.ExternalID = uuid.NewString()
	}
	stored.CreatedAt = now()
	stored.UpdatedAt = now()
	r.devices[id] = stored
	return id, nil
}

func (r *MemoryLocationsRepo) UpdateDevice(_ context.Context, deviceID int64, device *domain.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.devices[deviceID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Name = device.Name
	stored.DeviceType = device.DeviceType
	stored.Temperature = device.Temperature
	stored.CapacityLimit = device.CapacityLimit
	stored.ShortCode = device.ShortCode
	stored.Active = device.Active
	stored.UpdatedAt = now()
	r.devices[deviceID] = stored
	return nil
}

func (r *MemoryLocationsRepo) DeleteDevice(_ context.Context, deviceID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[deviceID]; !ok {
		return sql.ErrNoRows
	}
	delete(r.devices, deviceID)
	return nil
}

func (r *MemoryLocationsRepo) CountShelvesInDevice(_ context.Context, deviceID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.shelves {
		if s.DeviceID == deviceID {
			n++
		}
	}
	return n, nil
}

// ---- Shelves ----

func (r *MemoryLocationsRepo) ListShelves(_ context.Context, deviceID int64) ([]*domain.Shelf, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*domain.Shelf{}
	for id := range r.shelves {
		s := r.shelves[id]
		if deviceID == 0 || s.DeviceID == deviceID {
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShelfID < out[j].ShelfID })
	return out, nil
}

func (r *MemoryLocationsRepo) GetShelf(_ context.Context, shelfID int64) (*domain.Shelf, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.shelves[shelfID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (r *MemoryLocationsRepo) findShelf(match func(domain.Shelf) bool) (*domain.Shelf, error) {
	ids := make([]int64, 0, len(r.shelves))
	for id := range r.shelves {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		s := r.shelves[id]
		if match(s) {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *MemoryLocationsRepo) FindShelfByLabel(_ context.Context, label string) (*domain.Shelf, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findShelf(func(s domain.Shelf) bool { return s.Label == label })
}

func (r *MemoryLocationsRepo) FindShelfByLabelInDevice(_ context.Context, label string, deviceID int64) (*domain.Shelf, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findShelf(func(s domain.Shelf) bool { return s.Label == label && s.DeviceID == deviceID })
}

func (r *MemoryLocationsRepo) FindShelfByShortCode(_ context.Context, shortCode string) (*domain.Shelf, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findShelf(func(s domain.Shelf) bool { return s.ShortCode.Valid && s.ShortCode.String == shortCode })
}

func (r *MemoryLocationsRepo) CreateShelf(_ context.Context, shelf *domain.Shelf) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.allocID()
	stored := *shelf
	stored.ShelfID = id
	if stored.ExternalID == "" {
		stored.ExternalID = uuid.NewString()
	}
	stored.CreatedAt = now()
	stored.UpdatedAt = now()
	r.shelves[id] = stored
	return id, nil
}

func (r *MemoryLocationsRepo) UpdateShelf(_ context.Context, shelfID int64, shelf *domain.Shelf) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.shelves[shelfID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Label = shelf.Label
	stored.CapacityLimit = shelf.CapacityLimit
	stored.ShortCode = shelf.ShortCode
	stored.Active = shelf.Active
	stored.UpdatedAt = now()
	r.shelves[shelfID] = stored
	return nil
}

func (r *MemoryLocationsRepo) DeleteShelf(_ context.Context, shelfID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.shelves[shelfID]; !ok {
		return sql.ErrNoRows
	}
	delete(r.shelves, shelfID)
	return nil
}

func (r *MemoryLocationsRepo) CountRacksInShelf(_ context.Context, shelfID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, rk := range r.racks {
		if rk.ShelfID == shelfID {
			n++
		}
	}
	return n, nil
}

// ---- Racks ----

func (r *MemoryLocationsRepo) ListRacks(_ context.Context, shelfID int64) ([]*domain.Rack, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*domain.Rack{}
	for id := range r.racks {
		rk := r.racks[id]
		if shelfID == 0 || rk.ShelfID == shelfID {
			out = append(out, &rk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RackID < out[j].RackID })
	return out, nil
}

func (r *MemoryLocationsRepo) GetRack(_ context.Context, rackID int64) (*domain.Rack, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rk, ok := r.racks[rackID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &rk, nil
}

func (r *MemoryLocationsRepo) findRack(match func(domain.Rack) bool) (*domain.Rack, error) {
	ids := make([]int64, 0, len(r.racks))
	for id := range r.racks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		rk := r.racks[id]
		if match(rk) {
			return &rk, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *MemoryLocationsRepo) FindRackByLabel(_ context.Context, label string) (*domain.Rack, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findRack(func(rk domain.Rack) bool { return rk.Label == label })
}

func (r *MemoryLocationsRepo) FindRackByLabelInShelf(_ context.Context, label string, shelfID int64) (*domain.Rack, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findRack(func(rk domain.Rack) bool { return rk.Label == label && rk.ShelfID == shelfID })
}

func (r *MemoryLocationsRepo) FindRackByShortCode(_ context.Context, shortCode string) (*domain.Rack, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findRack(func(rk domain.Rack) bool { return rk.ShortCode.Valid && rk.ShortCode.String == shortCode })
}

func (r *MemoryLocationsRepo) CreateRack(_ context.Context, rack *domain.Rack) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.allocID()
	stored := *rack
	stored.RackID = id
	if stored.ExternalID == "" {
		stored.ExternalID = uuid.NewString()
	}
	stored.CreatedAt = now()
	stored.UpdatedAt = now()
	r.racks[id] = stored
	return id, nil
}

func (r *MemoryLocationsRepo) UpdateRack(_ context.Context, rackID int64, rack *domain.Rack) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.racks[rackID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Label = rack.Label
	stored.Rows = rack.Rows
	stored.Columns = rack.Columns
	stored.PositionSchema = rack.PositionSchema
	stored.ShortCode = rack.ShortCode
	stored.Active = rack.Active
	stored.UpdatedAt = now()
	r.racks[rackID] = stored
	return nil
}

func (r *MemoryLocationsRepo) DeleteRack(_ context.Context, rackID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.racks[rackID]; !ok {
		return sql.ErrNoRows
	}
	delete(r.racks, rackID)
	// 点位随架一起删除
	for id, p := range r.positions {
		if p.RackID.Valid && p.RackID.Int64 == rackID {
			delete(r.positions, id)
		}
	}
	return nil
}

// ---- Positions ----

func (r *MemoryLocationsRepo) ListPositions(_ context.Context, rackID int64) ([]*domain.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*domain.Position{}
	for id := range r.positions {
		p := r.positions[id]
		if rackID == 0 || (p.RackID.Valid && p.RackID.Int64 == rackID) {
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PositionID < out[j].PositionID })
	return out, nil
}

func (r *MemoryLocationsRepo) GetPosition(_ context.Context, positionID int64) (*domain.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.positions[positionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (r *MemoryLocationsRepo) findPosition(match func(domain.Position) bool) (*domain.Position, error) {
	ids := make([]int64, 0, len(r.positions))
	for id := range r.positions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		p := r.positions[id]
		if match(p) {
			return &p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *MemoryLocationsRepo) FindPositionByCoordinate(_ context.Context, coordinate string) (*domain.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findPosition(func(p domain.Position) bool { return p.Coordinate == coordinate })
}

func (r *MemoryLocationsRepo) FindPositionByCoordinateInRack(_ context.Context, coordinate string, rackID int64) (*domain.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findPosition(func(p domain.Position) bool {
		return p.Coordinate == coordinate && p.RackID.Valid && p.RackID.Int64 == rackID
	})
}

func (r *MemoryLocationsRepo) CreatePosition(_ context.Context, position *domain.Position) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.allocID()
	stored := *position
	stored.PositionID = id
	if stored.ExternalID == "" {
		stored.ExternalID = uuid.NewString()
	}
	stored.CreatedAt = now()
	stored.UpdatedAt = now()
	r.positions[id] = stored
	return id, nil
}

func (r *MemoryLocationsRepo) UpdatePosition(_ context.Context, positionID int64, position *domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.positions[positionID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Coordinate = position.Coordinate
	stored.Active = position.Active
	stored.UpdatedAt = now()
	r.positions[positionID] = stored
	return nil
}

func (r *MemoryLocationsRepo) DeletePosition(_ context.Context, positionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.positions[positionID]; !ok {
		return sql.ErrNoRows
	}
	delete(r.positions, positionID)
	return nil
}

// ---- 占用计数 ----

// countOccupied 统计子树内的分配数；match 判断单条分配是否落在子树内
func (r *MemoryLocationsRepo) countOccupied(match func(domain.SampleStorageAssignment) bool) (int, error) {
	if r.storage == nil {
		return 0, nil
	}
	assignments := r.storage.snapshotAssignments()
	n := 0
	for _, a := range assignments {
		if match(a) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryLocationsRepo) CountOccupiedInDevice(_ context.Context, deviceID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	shelfIDs := map[int64]bool{}
	for id, s := range r.shelves {
		if s.DeviceID == deviceID {
			shelfIDs[id] = true
		}
	}
	rackIDs := map[int64]bool{}
	for id, rk := range r.racks {
		if shelfIDs[rk.ShelfID] {
			rackIDs[id] = true
		}
	}
	return r.countOccupied(func(a domain.SampleStorageAssignment) bool {
		switch a.LocationType {
		case domain.LocationTypeDevice:
			return a.LocationID == deviceID
		case domain.LocationTypeShelf:
			return shelfIDs[a.LocationID]
		case domain.LocationTypeRack:
			return rackIDs[a.LocationID]
		}
		return false
	})
}

func (r *MemoryLocationsRepo) CountOccupiedInShelf(_ context.Context, shelfID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rackIDs := map[int64]bool{}
	for id, rk := range r.racks {
		if rk.ShelfID == shelfID {
			rackIDs[id] = true
		}
	}
	return r.countOccupied(func(a domain.SampleStorageAssignment) bool {
		switch a.LocationType {
		case domain.LocationTypeShelf:
			return a.LocationID == shelfID
		case domain.LocationTypeRack:
			return rackIDs[a.LocationID]
		}
		return false
	})
}

func (r *MemoryLocationsRepo) CountOccupiedInRack(_ context.Context, rackID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countOccupied(func(a domain.SampleStorageAssignment) bool {
		return a.LocationType == domain.LocationTypeRack && a.LocationID == rackID
	})
}
