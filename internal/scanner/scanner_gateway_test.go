package scanner

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"biobank-data/internal/domain"
	"biobank-data/internal/repository"
	"biobank-data/internal/service"
)

func newTestGateway(t *testing.T) *ScannerGateway {
	t.Helper()
	locations := repository.NewMemoryLocationsRepo()
	ctx := context.Background()

	roomID, err := locations.CreateRoom(ctx, &domain.Room{Code: "MAIN", Name: "Main Lab", Active: true})
	require.NoError(t, err)
	deviceID, err := locations.CreateDevice(ctx, &domain.Device{
		RoomID: roomID, Code: "FRZ01", Name: "Freezer 01",
		DeviceType: domain.DeviceTypeFreezer, Active: true,
	})
	require.NoError(t, err)
	shelfID, err := locations.CreateShelf(ctx, &domain.Shelf{DeviceID: deviceID, Label: "SHA", Active: true})
	require.NoError(t, err)
	rackID, err := locations.CreateRack(ctx, &domain.Rack{
		ShelfID: shelfID, Label: "RKR1", Rows: 8, Columns: 12, Active: true,
	})
	require.NoError(t, err)
	_, err = locations.CreatePosition(ctx, &domain.Position{
		DeviceID:   deviceID,
		ShelfID:    sql.NullInt64{Int64: shelfID, Valid: true},
		RackID:     sql.NullInt64{Int64: rackID, Valid: true},
		Coordinate: "A5",
		Active:     true,
	})
	require.NoError(t, err)

	validator := service.NewBarcodeValidator(service.NewDelimiterBarcodeParser(), locations, zap.NewNop())
	return NewScannerGateway(validator, zap.NewNop())
}

// 批次中混合有效/无效扫码：逐条返回结果，无效不中断批次
func TestScannerGateway_MixedBatch(t *testing.T) {
	gw := newTestGateway(t)

	payload := []byte(`[
		{"station_id": "BENCH-03", "barcode": "MAIN-FRZ01-SHA-RKR1-A5", "timestamp": 1722240000},
		{"station_id": "BENCH-03", "barcode": "NOPE-FRZ01", "timestamp": 1722240001},
		{"station_id": "BENCH-07", "barcode": "MAIN-FRZ01", "timestamp": 1722240002}
	]`)

	outcomes, err := gw.HandleMessage(context.Background(), payload)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	require.Equal(t, "BENCH-03", outcomes[0].StationID)
	require.True(t, outcomes[0].Result.Valid)

	require.False(t, outcomes[1].Result.Valid)
	require.Equal(t, service.StepLocationExistence, outcomes[1].Result.FailedStep)

	require.Equal(t, "BENCH-07", outcomes[2].StationID)
	require.True(t, outcomes[2].Result.Valid)
}

func TestScannerGateway_MalformedPayload(t *testing.T) {
	gw := newTestGateway(t)

	_, err := gw.HandleMessage(context.Background(), []byte(`{"station_id": "BENCH-03"}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to unmarshal scan payload")
}

func TestScannerGateway_EmptyBatch(t *testing.T) {
	gw := newTestGateway(t)

	outcomes, err := gw.HandleMessage(context.Background(), []byte(`[]`))
	require.NoError(t, err)
	require.Empty(t, outcomes)
}
