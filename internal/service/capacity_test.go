package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"biobank-data/internal/domain"
)

func seedCapacityDevice(t *testing.T, env *testEnv, limit int64) (roomID, deviceID int64) {
	t.Helper()
	ctx := context.Background()
	roomID, err := env.locations.CreateRoom(ctx, &domain.Room{Code: "CAP", Name: "Capacity Lab", Active: true})
	require.NoError(t, err)

	device := &domain.Device{
		RoomID: roomID, Code: "DEV01", Name: "Device 01",
		DeviceType: domain.DeviceTypeFreezer, Active: true,
	}
	if limit > 0 {
		device.CapacityLimit = sql.NullInt64{Int64: limit, Valid: true}
	}
	deviceID, err = env.locations.CreateDevice(ctx, device)
	require.NoError(t, err)
	return roomID, deviceID
}

// 手动上限优先：忽略任何下级结构
func TestCapacity_ManualLimitWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, deviceID := seedCapacityDevice(t, env, 500)

	// 即使挂了层板也不参与计算
	_, err := env.locations.CreateShelf(ctx, &domain.Shelf{
		DeviceID: deviceID, Label: "S1", Active: true,
		CapacityLimit: sql.NullInt64{Int64: 10, Valid: true},
	})
	require.NoError(t, err)

	info, err := env.locSvc.CalculateCapacity(ctx, domain.LocationRef{Type: domain.LocationTypeDevice, ID: deviceID})
	require.NoError(t, err)
	require.NotNil(t, info.Capacity)
	require.Equal(t, 500, *info.Capacity)
}

// 无手动上限：层板容量求和
func TestCapacity_SumOfShelves(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, deviceID := seedCapacityDevice(t, env, 0)

	for i, limit := range []int64{200, 300} {
		_, err := env.locations.CreateShelf(ctx, &domain.Shelf{
			DeviceID: deviceID, Label: string(rune('A' + i)), Active: true,
			CapacityLimit: sql.NullInt64{Int64: limit, Valid: true},
		})
		require.NoError(t, err)
	}

	info, err := env.locSvc.CalculateCapacity(ctx, domain.LocationRef{Type: domain.LocationTypeDevice, ID: deviceID})
	require.NoError(t, err)
	require.NotNil(t, info.Capacity)
	require.Equal(t, 500, *info.Capacity)
}

// 任一层板容量无法确定：设备容量无法确定（不是 0，也不是部分和）
func TestCapacity_UnknownChildPoisonsSum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, deviceID := seedCapacityDevice(t, env, 0)

	_, err := env.locations.CreateShelf(ctx, &domain.Shelf{
		DeviceID: deviceID, Label: "KNOWN", Active: true,
		CapacityLimit: sql.NullInt64{Int64: 200, Valid: true},
	})
	require.NoError(t, err)
	// 无上限、无架：无法确定
	_, err = env.locations.CreateShelf(ctx, &domain.Shelf{
		DeviceID: deviceID, Label: "EMPTY", Active: true,
	})
	require.NoError(t, err)

	info, err := env.locSvc.CalculateCapacity(ctx, domain.LocationRef{Type: domain.LocationTypeDevice, ID: deviceID})
	require.NoError(t, err)
	require.Nil(t, info.Capacity)
	require.Nil(t, info.UsagePercent)
}

// 无下级结构：无法确定而不是 0
func TestCapacity_NoChildrenUndeterminable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, deviceID := seedCapacityDevice(t, env, 0)

	info, err := env.locSvc.CalculateCapacity(ctx, domain.LocationRef{Type: domain.LocationTypeDevice, ID: deviceID})
	require.NoError(t, err)
	require.Nil(t, info.Capacity)
}

// 架容量恒为 rows × columns
func TestCapacity_RackAlwaysRowsTimesColumns(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	ctx := context.Background()

	info, err := env.locSvc.CalculateCapacity(ctx, domain.LocationRef{Type: domain.LocationTypeRack, ID: ids.RackID})
	require.NoError(t, err)
	require.NotNil(t, info.Capacity)
	require.Equal(t, 96, *info.Capacity)
}

// 占用/百分比/阈值提示
func TestCapacity_OccupancyAndWarnings(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	ctx := context.Background()

	// 把架容量压到 10，挂 9 个样本：90%
	rack, err := env.locations.GetRack(ctx, ids.RackID)
	require.NoError(t, err)
	rack.Rows = 2
	rack.Columns = 5
	require.NoError(t, env.locations.UpdateRack(ctx, ids.RackID, rack))

	for i := int64(1); i <= 9; i++ {
		env.seedSample(i, domain.SampleStatusActive)
		_, err := env.storSvc.Assign(ctx, &AssignRequest{
			SampleItemID: i,
			LocationID:   ids.RackID,
			LocationType: "rack",
		})
		require.NoError(t, err)
	}

	info, err := env.locSvc.CalculateCapacity(ctx, domain.LocationRef{Type: domain.LocationTypeRack, ID: ids.RackID})
	require.NoError(t, err)
	require.Equal(t, 9, info.Occupied)
	require.NotNil(t, info.UsagePercent)
	require.Equal(t, 90, *info.UsagePercent)
	require.Contains(t, info.Warning, "nearly full")

	// 设备层级统计整棵子树的占用
	deviceInfo, err := env.locSvc.CalculateCapacity(ctx, domain.LocationRef{Type: domain.LocationTypeDevice, ID: ids.DeviceID})
	require.NoError(t, err)
	require.Equal(t, 9, deviceInfo.Occupied)
}
