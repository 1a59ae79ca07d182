package repository

import (
	"context"
	"database/sql"
	"fmt"

	"biobank-data/internal/domain"
)

type PostgresLocationsRepository struct {
	db *sql.DB
}

func NewPostgresLocationsRepository(db *sql.DB) *PostgresLocationsRepository {
	return &PostgresLocationsRepository{db: db}
}

const roomColumns = `
	room_id,
	code,
	name,
	description,
	active,
	external_id::text,
	created_at,
	updated_at`

func scanRoom(row interface{ Scan(...any) error }) (*domain.Room, error) {
	var r domain.Room
	if err := row.Scan(
		&r.RoomID,
		&r.Code,
		&r.Name,
		&r.Description,
		&r.Active,
		&r.ExternalID,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

// ============================================
// Room 操作
// ============================================

func (r *PostgresLocationsRepository) ListRooms(ctx context.Context, filters RoomFilters, page, size int) ([]*domain.Room, int, error) {
	where := "TRUE"
	args := []any{}
	argIdx := 1
	if filters.ActiveOnly {
		where += " AND active = TRUE"
	}
	if filters.Search != "" {
		where += fmt.Sprintf(" AND (code ILIKE $%d OR name ILIKE $%d)", argIdx, argIdx)
		args = append(args, "%"+filters.Search+"%")
		argIdx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT` + roomColumns + `
		FROM rooms
		WHERE ` + where + `
		ORDER BY code`
	if page > 0 && size > 0 {
		q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
		args = append(args, size, (page-1)*size)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []*domain.Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, room)
	}
	return out, total, rows.Err()
}

func (r *PostgresLocationsRepository) GetRoom(ctx context.Context, roomID int64) (*domain.Room, error) {
	return scanRoom(r.db.QueryRowContext(ctx,
		`SELECT`+roomColumns+` FROM rooms WHERE room_id = $1`, roomID))
}

func (r *PostgresLocationsRepository) FindRoomByCode(ctx context.Context, code string) (*domain.Room, error) {
	return scanRoom(r.db.QueryRowContext(ctx,
		`SELECT`+roomColumns+` FROM rooms WHERE code = $1`, code))
}

func (r *PostgresLocationsRepository) CreateRoom(ctx context.Context, room *domain.Room) (int64, error) {
	var roomID int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO rooms (code, name, description, active, external_id)
		 VALUES ($1, $2, $3, $4, COALESCE(NULLIF($5, '')::uuid, gen_random_uuid()))
		 RETURNING room_id`,
		room.Code, room.Name, room.Description, room.Active, room.ExternalID,
	).Scan(&roomID)
	if err != nil {
		return 0, fmt.Errorf("failed to create room: %w", err)
	}
	return roomID, nil
}

// UpdateRoom 不触碰 code/external_id（只读字段由 Service 层保证，这里同样不更新）
func (r *PostgresLocationsRepository) UpdateRoom(ctx context.Context, roomID int64, room *domain.Room) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE rooms
		 SET name = $1, description = $2, active = $3, updated_at = CURRENT_TIMESTAMP
		 WHERE room_id = $4`,
		room.Name, room.Description, room.Active, roomID,
	)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresLocationsRepository) DeleteRoom(ctx context.Context, roomID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE room_id = $1`, roomID)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresLocationsRepository) CountDevicesInRoom(ctx context.Context, roomID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM devices WHERE room_id = $1`, roomID).Scan(&n)
	return n, err
}

// ============================================
// Device 操作
// ============================================

const deviceColumns = `
	device_id,
	room_id,
	code,
	name,
	device_type,
	temperature,
	capacity_limit,
	short_code,
	active,
	external_id::text,
	created_at,
	updated_at`

func scanDevice(row interface{ Scan(...any) error }) (*domain.Device, error) {
	var d domain.Device
	if err := row.Scan(
		&d.DeviceID,
		&d.RoomID,
		&d.Code,
		&d.Name,
		&d.DeviceType,
		&d.Temperature,
		&d.CapacityLimit,
		&d.ShortCode,
		&d.Active,
		&d.ExternalID,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *PostgresLocationsRepository) ListDevices(ctx context.Context, roomID int64) ([]*domain.Device, error) {
	where := "TRUE"
	args := []any{}
	if roomID > 0 {
		where = "room_id = $1"
		args = append(args, roomID)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+deviceColumns+` FROM devices WHERE `+where+` ORDER BY code`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PostgresLocationsRepository) GetDevice(ctx context.Context, deviceID int64) (*domain.Device, error) {
	return scanDevice(r.db.QueryRowContext(ctx,
		`SELECT`+deviceColumns+` FROM devices WHERE device_id = $1`, deviceID))
}

// FindDeviceByCode 全局查找（存在性检查用，不限定父节点）
func (r *PostgresLocationsRepository) FindDeviceByCode(ctx context.Context, code string) (*domain.Device, error) {
	return scanDevice(r.db.QueryRowContext(ctx,
		`SELECT`+deviceColumns+` FROM devices WHERE code = $1 ORDER BY device_id LIMIT 1`, code))
}

// FindDeviceByCodeInRoom 父节点范围内查找（层级检查用）
func (r *PostgresLocationsRepository) FindDeviceByCodeInRoom(ctx context.Context, code string, roomID int64) (*domain.Device, error) {
	return scanDevice(r.db.QueryRowContext(ctx,
		`SELECT`+deviceColumns+` FROM devices WHERE code = $1 AND room_id = $2`, code, roomID))
}

func (r *PostgresLocationsRepository) FindDeviceByShortCode(ctx context.Context, shortCode string) (*domain.Device, error) {
	return scanDevice(r.db.QueryRowContext(ctx,
		`SELECT`+deviceColumns+` FROM devices WHERE short_code = $1 ORDER BY device_id LIMIT 1`, shortCode))
}

func (r *PostgresLocationsRepository) CreateDevice(ctx context.Context, device *domain.Device) (int64, error) {
	var deviceID int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO devices (room_id, code, name, device_type, temperature, capacity_limit, short_code, active, external_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE(NULLIF($9, '')::uuid, gen_random_uuid()))
		 RETURNING device_id`,
		device.RoomID, device.Code, device.Name, device.DeviceType,
		device.Temperature, device.CapacityLimit, device.ShortCode, device.Active, device.ExternalID,
	).Scan(&deviceID)
	if err != nil {
		return 0, fmt.Errorf("failed to create device: %w", err)
	}
	return deviceID, nil
}

// UpdateDevice 不触碰 code/room_id（创建后只读）
func (r *PostgresLocationsRepository) UpdateDevice(ctx context.Context, deviceID int64, device *domain.Device) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE devices
		 SET name = $1, device_type = $2, temperature = $3, capacity_limit = $4,
		     short_code = $5, active = $6, updated_at = CURRENT_TIMESTAMP
		 WHERE device_id = $7`,
		device.Name, device.DeviceType, device.Temperature, device.CapacityLimit,
		device.ShortCode, device.Active, deviceID,
	)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresLocationsRepository) DeleteDevice(ctx context.Context, deviceID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE device_id = $1`, deviceID)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresLocationsRepository) CountShelvesInDevice(ctx context.Context, deviceID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shelves WHERE device_id = $1`, deviceID).Scan(&n)
	return n, err
}

// ============================================
// Shelf 操作
// ============================================

const shelfColumns = `
	shelf_id,
	device_id,
	label,
	capacity_limit,
	short_code,
	active,
	external_id::text,
	created_at,
	updated_at`

func scanShelf(row interface{ Scan(...any) error }) (*domain.Shelf, error) {
	var s domain.Shelf
	if err := row.Scan(
		&s.ShelfID,
		&s.DeviceID,
		&s.Label,
		&s.CapacityLimit,
		&s.ShortCode,
		&s.Active,
		&s.ExternalID,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresLocationsRepository) ListShelves(ctx context.Context, deviceID int64) ([]*domain.Shelf, error) {
	where := "TRUE"
	args := []any{}
	if deviceID > 0 {
		where = "device_id = $1"
		args = append(args, deviceID)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+shelfColumns+` FROM shelves WHERE `+where+` ORDER BY label`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Shelf{}
	for rows.Next() {
		s, err := scanShelf(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresLocationsRepository) GetShelf(ctx context.Context, shelfID int64) (*domain.Shelf, error) {
	return scanShelf(r.db.QueryRowContext(ctx,
		`SELECT`+shelfColumns+` FROM shelves WHERE shelf_id = $1`, shelfID))
}

func (r *PostgresLocationsRepository) FindShelfByLabel(ctx context.Context, label string) (*domain.Shelf, error) {
	return scanShelf(r.db.QueryRowContext(ctx,
		`SELECT`+shelfColumns+` FROM shelves WHERE label = $1 ORDER BY shelf_id LIMIT 1`, label))
}

func (r *PostgresLocationsRepository) FindShelfByLabelInDevice(ctx context.Context, label string, deviceID int64) (*domain.Shelf, error) {
	return scanShelf(r.db.QueryRowContext(ctx,
		`SELECT`+shelfColumns+` FROM shelves WHERE label = $1 AND device_id = $2`, label, deviceID))
}

func (r *PostgresLocationsRepository) FindShelfByShortCode(ctx context.Context, shortCode string) (*domain.Shelf, error) {
	return scanShelf(r.db.QueryRowContext(ctx,
		`SELECT`+shelfColumns+` FROM shelves WHERE short_code = $1 ORDER BY shelf_id LIMIT 1`, shortCode))
}

func (r *PostgresLocationsRepository) CreateShelf(ctx context.Context, shelf *domain.Shelf) (int64, error) {
	var shelfID int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO shelves (device_id, label, capacity_limit, short_code, active, external_id)
		 VALUES ($1, $2, $3, $4, $5, COALESCE(NULLIF($6, '')::uuid, gen_random_uuid()))
		 RETURNING shelf_id`,
		shelf.DeviceID, shelf.Label, shelf.CapacityLimit, shelf.ShortCode, shelf.Active, shelf.ExternalID,
	).Scan(&shelfID)
	if err != nil {
		return 0, fmt.Errorf("failed to create shelf: %w", err)
	}
	return shelfID, nil
}

func (r *PostgresLocationsRepository) UpdateShelf(ctx context.Context, shelfID int64, shelf *domain.Shelf) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE shelves
		 SET label = $1, capacity_limit = $2, short_code = $3, active = $4, updated_at = CURRENT_TIMESTAMP
		 WHERE shelf_id = $5`,
		shelf.Label, shelf.CapacityLimit, shelf.ShortCode, shelf.Active, shelfID,
	)
	if err != nil {
		return fmt.Errorf("failed to update shelf: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresLocationsRepository) DeleteShelf(ctx context.Context, shelfID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shelves WHERE shelf_id = $1`, shelfID)
	if err != nil {
		return fmt.Errorf("failed to delete shelf: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresLocationsRepository) CountRacksInShelf(ctx context.Context, shelfID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM racks WHERE shelf_id = $1`, shelfID).Scan(&n)
	return n, err
}

// ============================================
// Rack 操作
// ============================================

const rackColumns = `
	rack_id,
	shelf_id,
	label,
	grid_rows,
	grid_columns,
	position_schema,
	short_code,
	active,
	external_id::text,
	created_at,
	updated_at`

func scanRack(row interface{ Scan(...any) error }) (*domain.Rack, error) {
	var rk domain.Rack
	if err := row.Scan(
		&rk.RackID,
		&rk.ShelfID,
		&rk.Label,
		&rk.Rows,
		&rk.Columns,
		&rk.PositionSchema,
		&rk.ShortCode,
		&rk.Active,
		&rk.ExternalID,
		&rk.CreatedAt,
		&rk.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &rk, nil
}

func (r *PostgresLocationsRepository) ListRacks(ctx context.Context, shelfID int64) ([]*domain.Rack, error) {
	where := "TRUE"
	args := []any{}
	if shelfID > 0 {
		where = "shelf_id = $1"
		args = append(args, shelfID)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+rackColumns+` FROM racks WHERE `+where+` ORDER BY label`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Rack{}
	for rows.Next() {
		rk, err := scanRack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rk)
	}
	return out, rows.Err()
}

func (r *PostgresLocationsRepository) GetRack(ctx context.Context, rackID int64) (*domain.Rack, error) {
	return scanRack(r.db.QueryRowContext(ctx,
		`SELECT`+rackColumns+` FROM racks WHERE rack_id = $1`, rackID))
}

func (r *PostgresLocationsRepository) FindRackByLabel(ctx context.Context, label string) (*domain.Rack, error) {
	return scanRack(r.db.QueryRowContext(ctx,
		`SELECT`+rackColumns+` FROM racks WHERE label = $1 ORDER BY rack_id LIMIT 1`, label))
}

func (r *PostgresLocationsRepository) FindRackByLabelInShelf(ctx context.Context, label string, shelfID int64) (*domain.Rack, error) {
	return scanRack(r.db.QueryRowContext(ctx,
		`SELECT`+rackColumns+` FROM racks WHERE label = $1 AND shelf_id = $2`, label, shelfID))
}

func (r *PostgresLocationsRepository) FindRackByShortCode(ctx context.Context, shortCode string) (*domain.Rack, error) {
	return scanRack(r.db.QueryRowContext(ctx,
		`SELECT`+rackColumns+` FROM racks WHERE short_code = $1 ORDER BY rack_id LIMIT 1`, shortCode))
}

func (r *PostgresLocationsRepository) CreateRack(ctx context.Context, rack *domain.Rack) (int64, error) {
	var rackID int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO racks (shelf_id, label, grid_rows, grid_columns, position_schema, short_code, active, external_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE(NULLIF($8, '')::uuid, gen_random_uuid()))
		 RETURNING rack_id`,
		rack.ShelfID, rack.Label, rack.Rows, rack.Columns,
		rack.PositionSchema, rack.ShortCode, rack.Active, rack.ExternalID,
	).Scan(&rackID)
	if err != nil {
		return 0, fmt.Errorf("failed to create rack: %w", err)
	}
	return rackID, nil
}

func (r *PostgresLocationsRepository) UpdateRack(ctx context.Context, rackID int64, rack *domain.Rack) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE racks
		 SET label = $1, grid_rows = $2, grid_columns = $3, position_schema = $4,
		     short_code = $5, active = $6, updated_at = CURRENT_TIMESTAMP
		 WHERE rack_id = $7`,
		rack.Label, rack.Rows, rack.Columns, rack.PositionSchema,
		rack.ShortCode, rack.Active, rackID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rack: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteRack 点位随架一起删除
func (r *PostgresLocationsRepository) DeleteRack(ctx context.Context, rackID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM positions WHERE rack_id = $1`, rackID); err != nil {
		return fmt.Errorf("failed to delete rack positions: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM racks WHERE rack_id = $1`, rackID)
	if err != nil {
		return fmt.Errorf("failed to delete rack: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ============================================
// Position 操作
// ============================================

const positionColumns = `
	position_id,
	device_id,
	shelf_id,
	rack_id,
	coordinate,
	active,
	external_id::text,
	created_at,
	updated_at`

func scanPosition(row interface{ Scan(...any) error }) (*domain.Position, error) {
	var p domain.Position
	if err := row.Scan(
		&p.PositionID,
		&p.DeviceID,
		&p.ShelfID,
		&p.RackID,
		&p.Coordinate,
		&p.Active,
		&p.ExternalID,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresLocationsRepository) ListPositions(ctx context.Context, rackID int64) ([]*domain.Position, error) {
	where := "TRUE"
	args := []any{}
	if rackID > 0 {
		where = "rack_id = $1"
		args = append(args, rackID)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+positionColumns+` FROM positions WHERE `+where+` ORDER BY coordinate`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Position{}
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresLocationsRepository) GetPosition(ctx context.Context, positionID int64) (*domain.Position, error) {
	return scanPosition(r.db.QueryRowContext(ctx,
		`SELECT`+positionColumns+` FROM positions WHERE position_id = $1`, positionID))
}

func (r *PostgresLocationsRepository) FindPositionByCoordinate(ctx context.Context, coordinate string) (*domain.Position, error) {
	return scanPosition(r.db.QueryRowContext(ctx,
		`SELECT`+positionColumns+` FROM positions WHERE coordinate = $1 ORDER BY position_id LIMIT 1`, coordinate))
}

func (r *PostgresLocationsRepository) FindPositionByCoordinateInRack(ctx context.Context, coordinate string, rackID int64) (*domain.Position, error) {
	return scanPosition(r.db.QueryRowContext(ctx,
		`SELECT`+positionColumns+` FROM positions WHERE coordinate = $1 AND rack_id = $2`, coordinate, rackID))
}

func (r *PostgresLocationsRepository) CreatePosition(ctx context.Context, position *domain.Position) (int64, error) {
	var positionID int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO positions (device_id, shelf_id, rack_id, coordinate, active, external_id)
		 VALUES ($1, $2, $3, $4, $5, COALESCE(NULLIF($6, '')::uuid, gen_random_uuid()))
		 RETURNING position_id`,
		position.DeviceID, position.ShelfID, position.RackID,
		position.Coordinate, position.Active, position.ExternalID,
	).Scan(&positionID)
	if err != nil {
		return 0, fmt.Errorf("failed to create position: %w", err)
	}
	return positionID, nil
}

func (r *PostgresLocationsRepository) UpdatePosition(ctx context.Context, positionID int64, position *domain.Position) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE positions
		 SET coordinate = $1, active = $2, updated_at = CURRENT_TIMESTAMP
		 WHERE position_id = $3`,
		position.Coordinate, position.Active, positionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresLocationsRepository) DeletePosition(ctx context.Context, positionID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM positions WHERE position_id = $1`, positionID)
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ============================================
// 占用计数
// ============================================

// CountOccupiedInDevice 统计设备子树内的分配：挂在设备本身、其层板、其架上的都算
func (r *PostgresLocationsRepository) CountOccupiedInDevice(ctx context.Context, deviceID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM sample_storage_assignments a
		WHERE (a.location_type = 'device' AND a.location_id = $1)
		   OR (a.location_type = 'shelf' AND a.location_id IN (
		        SELECT shelf_id FROM shelves WHERE device_id = $1))
		   OR (a.location_type = 'rack' AND a.location_id IN (
		        SELECT rk.rack_id
		        FROM racks rk
		        JOIN shelves sh ON rk.shelf_id = sh.shelf_id
		        WHERE sh.device_id = $1))
	`, deviceID).Scan(&n)
	return n, err
}

func (r *PostgresLocationsRepository) CountOccupiedInShelf(ctx context.Context, shelfID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM sample_storage_assignments a
		WHERE (a.location_type = 'shelf' AND a.location_id = $1)
		   OR (a.location_type = 'rack' AND a.location_id IN (
		        SELECT rack_id FROM racks WHERE shelf_id = $1))
	`, shelfID).Scan(&n)
	return n, err
}

func (r *PostgresLocationsRepository) CountOccupiedInRack(ctx context.Context, rackID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM sample_storage_assignments a
		WHERE a.location_type = 'rack' AND a.location_id = $1
	`, rackID).Scan(&n)
	return n, err
}
