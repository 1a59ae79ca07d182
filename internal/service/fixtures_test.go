package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"biobank-data/internal/domain"
	"biobank-data/internal/repository"
)

// testEnv 单元测试公共环境：内存 repo + NOP 日志
type testEnv struct {
	locations *repository.MemoryLocationsRepo
	storage   *repository.MemoryStorageRepo
	locSvc    LocationService
	storSvc   StorageService
	validator BarcodeValidator
	shorts    ShortCodeValidator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	locations := repository.NewMemoryLocationsRepo()
	storage := repository.NewMemoryStorageRepo()
	locations.BindStorage(storage)

	log := zap.NewNop()
	shorts := NewShortCodeValidator(locations)
	locSvc := NewLocationService(locations, shorts, log)
	storSvc := NewStorageService(storage, locations, locSvc, NoopLimsNotifier{}, log)
	validator := NewBarcodeValidator(NewDelimiterBarcodeParser(), locations, log)

	return &testEnv{
		locations: locations,
		storage:   storage,
		locSvc:    locSvc,
		storSvc:   storSvc,
		validator: validator,
		shorts:    shorts,
	}
}

// seedHierarchy 预置标准五层结构：
// Room(MAIN) > Device(FRZ01) > Shelf(SHA) > Rack(RKR1, 8x12) > Position(A5)
type hierarchyIDs struct {
	RoomID     int64
	DeviceID   int64
	ShelfID    int64
	RackID     int64
	PositionID int64
}

func (e *testEnv) seedHierarchy(t *testing.T) hierarchyIDs {
	t.Helper()
	ctx := context.Background()

	roomID, err := e.locations.CreateRoom(ctx, &domain.Room{
		Code: "MAIN", Name: "Main Lab", Active: true,
	})
	require.NoError(t, err)

	deviceID, err := e.locations.CreateDevice(ctx, &domain.Device{
		RoomID: roomID, Code: "FRZ01", Name: "Freezer 01",
		DeviceType: domain.DeviceTypeFreezer, Active: true,
	})
	require.NoError(t, err)

	shelfID, err := e.locations.CreateShelf(ctx, &domain.Shelf{
		DeviceID: deviceID, Label: "SHA", Active: true,
	})
	require.NoError(t, err)

	rackID, err := e.locations.CreateRack(ctx, &domain.Rack{
		ShelfID: shelfID, Label: "RKR1", Rows: 8, Columns: 12, Active: true,
	})
	require.NoError(t, err)

	positionID, err := e.locations.CreatePosition(ctx, &domain.Position{
		DeviceID:   deviceID,
		ShelfID:    sql.NullInt64{Int64: shelfID, Valid: true},
		RackID:     sql.NullInt64{Int64: rackID, Valid: true},
		Coordinate: "A5",
		Active:     true,
	})
	require.NoError(t, err)

	return hierarchyIDs{
		RoomID:     roomID,
		DeviceID:   deviceID,
		ShelfID:    shelfID,
		RackID:     rackID,
		PositionID: positionID,
	}
}

func (e *testEnv) seedSample(sampleItemID int64, status string) {
	e.storage.SeedSampleItem(domain.SampleItem{
		SampleItemID:    sampleItemID,
		AccessionNumber: "AB123456",
		Status:          status,
	})
}
