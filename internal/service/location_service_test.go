package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"biobank-data/internal/domain"
)

// 重复 code 拒绝：Room 全局、Device 按 Room 范围
func TestLocationService_DuplicateCodeRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room, err := env.locSvc.CreateRoom(ctx, &CreateRoomRequest{Code: "main", Name: "Main Lab"})
	require.NoError(t, err)
	require.Equal(t, "MAIN", room.Code)

	_, err = env.locSvc.CreateRoom(ctx, &CreateRoomRequest{Code: "MAIN", Name: "Duplicate"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "room code MAIN already exists")

	_, err = env.locSvc.CreateDevice(ctx, &CreateDeviceRequest{
		RoomID: room.RoomID, Code: "FRZ01", Name: "Freezer 01", DeviceType: domain.DeviceTypeFreezer,
	})
	require.NoError(t, err)
	_, err = env.locSvc.CreateDevice(ctx, &CreateDeviceRequest{
		RoomID: room.RoomID, Code: "FRZ01", Name: "Another", DeviceType: domain.DeviceTypeFreezer,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists in room")

	// 另一个 Room 下同名 Device 合法
	other, err := env.locSvc.CreateRoom(ctx, &CreateRoomRequest{Code: "ANNEX", Name: "Annex"})
	require.NoError(t, err)
	_, err = env.locSvc.CreateDevice(ctx, &CreateDeviceRequest{
		RoomID: other.RoomID, Code: "FRZ01", Name: "Freezer 01", DeviceType: domain.DeviceTypeFreezer,
	})
	require.NoError(t, err)
}

// 更新时 code/parent 静默保留原值，不报错
func TestLocationService_ReadOnlyFieldsRetained(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	ctx := context.Background()

	room, err := env.locSvc.UpdateRoom(ctx, ids.RoomID, &UpdateRoomRequest{
		Code: "HACKED", Name: "Renamed Lab",
	})
	require.NoError(t, err)
	require.Equal(t, "MAIN", room.Code)
	require.Equal(t, "Renamed Lab", room.Name)

	device, _, err := env.locSvc.UpdateDevice(ctx, ids.DeviceID, &UpdateDeviceRequest{
		Code: "HACKED", RoomID: 999, Name: "Renamed Freezer", DeviceType: domain.DeviceTypeFreezer,
	})
	require.NoError(t, err)
	require.Equal(t, "FRZ01", device.Code)
	require.Equal(t, ids.RoomID, device.RoomID)
	require.Equal(t, "Renamed Freezer", device.Name)
}

// 删除约束：下一级仍有子节点时拒绝，错误消息带阻塞数量
func TestLocationService_DeleteConstraints(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	ctx := context.Background()

	err := env.locSvc.DeleteRoom(ctx, ids.RoomID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot delete room MAIN: 1 devices still attached")

	err = env.locSvc.DeleteDevice(ctx, ids.DeviceID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "1 shelves still attached")

	err = env.locSvc.DeleteShelf(ctx, ids.ShelfID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "1 racks still attached")

	// 自底向上清空后可删
	require.NoError(t, env.locSvc.DeleteRack(ctx, ids.RackID))
	require.NoError(t, env.locSvc.DeleteShelf(ctx, ids.ShelfID))
	require.NoError(t, env.locSvc.DeleteDevice(ctx, ids.DeviceID))
	require.NoError(t, env.locSvc.DeleteRoom(ctx, ids.RoomID))

	// rack 删除级联清点位
	_, err = env.locations.GetPosition(ctx, ids.PositionID)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

// 0 行/列合法（容量为 0 的占位架），负数拒绝；更新未传字段保持原值
func TestLocationService_RackZeroDimensions(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	ctx := context.Background()

	rack, err := env.locSvc.CreateRack(ctx, &CreateRackRequest{
		ShelfID: ids.ShelfID, Label: "RKR0", Rows: 0, Columns: 12,
	})
	require.NoError(t, err)
	require.Equal(t, 0, rack.Capacity())

	_, err = env.locSvc.CreateRack(ctx, &CreateRackRequest{
		ShelfID: ids.ShelfID, Label: "RKRN", Rows: -1, Columns: 12,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be negative")

	zero := 0
	updated, _, err := env.locSvc.UpdateRack(ctx, ids.RackID, &UpdateRackRequest{
		Rows: &zero,
	})
	require.NoError(t, err)
	require.Equal(t, 0, updated.Rows)
	require.Equal(t, 12, updated.Columns)
	require.Equal(t, 0, updated.Capacity())

	// 容量为 0 时不产生百分比和告警
	info, err := env.locSvc.CalculateCapacity(ctx, domain.LocationRef{
		Type: domain.LocationTypeRack, ID: ids.RackID,
	})
	require.NoError(t, err)
	require.NotNil(t, info.Capacity)
	require.Equal(t, 0, *info.Capacity)
	require.Nil(t, info.UsagePercent)
	require.Empty(t, info.Warning)

	neg := -3
	_, _, err = env.locSvc.UpdateRack(ctx, ids.RackID, &UpdateRackRequest{Columns: &neg})
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be negative")
}

// 路径渲染：" > " 连接，坐标追加 "Position {coord}"
func TestLocationService_BuildHierarchicalPath(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	ctx := context.Background()

	path, err := env.locSvc.BuildHierarchicalPath(ctx, domain.LocationRef{
		Type: domain.LocationTypeRack, ID: ids.RackID,
	})
	require.NoError(t, err)
	require.Equal(t, "Main Lab > Freezer 01 > SHA > RKR1", path)

	path, err = env.locSvc.BuildHierarchicalPath(ctx, domain.LocationRef{
		Type: domain.LocationTypeRack, ID: ids.RackID,
		Coordinate: sql.NullString{String: "A5", Valid: true},
	})
	require.NoError(t, err)
	require.Equal(t, "Main Lab > Freezer 01 > SHA > RKR1 > Position A5", path)

	path, err = env.locSvc.BuildHierarchicalPath(ctx, domain.LocationRef{
		Type: domain.LocationTypeDevice, ID: ids.DeviceID,
	})
	require.NoError(t, err)
	require.Equal(t, "Main Lab > Freezer 01", path)
}

// 祖先缺失时回退渲染，不抛错
func TestLocationService_PathFallbacks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 孤儿 shelf（设备不存在）
	shelfID, err := env.locations.CreateShelf(ctx, &domain.Shelf{
		DeviceID: 404, Label: "ORPHAN", Active: true,
	})
	require.NoError(t, err)

	path, err := env.locSvc.BuildHierarchicalPath(ctx, domain.LocationRef{
		Type: domain.LocationTypeShelf, ID: shelfID,
	})
	require.NoError(t, err)
	require.Equal(t, "Unknown Location > Unknown > ORPHAN", path)
}

// 列表投影预联父节点名称与占用数
func TestLocationService_APIProjections(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	ctx := context.Background()

	env.seedSample(1, domain.SampleStatusActive)
	_, err := env.storSvc.Assign(ctx, &AssignRequest{
		SampleItemID: 1, LocationID: ids.RackID, LocationType: "rack",
	})
	require.NoError(t, err)

	devices, err := env.locSvc.ListDevicesForAPI(ctx, ids.RoomID)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.Equal(t, "Main Lab", devices[0].RoomName)
	require.Equal(t, 1, devices[0].ShelfCount)
	require.Equal(t, 1, devices[0].Occupied)

	racks, err := env.locSvc.ListRacksForAPI(ctx, ids.ShelfID)
	require.NoError(t, err)
	require.Len(t, racks, 1)
	require.Equal(t, "SHA", racks[0].ShelfLabel)
	require.Equal(t, 96, racks[0].Capacity)
	require.Equal(t, 1, racks[0].Occupied)
}
