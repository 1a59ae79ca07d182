package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"biobank-data/internal/domain"
)

// 端到端：MAIN-FRZ01-SHA-RKR1-A5 全链路通过，5 个层级全部进 validComponents
func TestBarcodeValidator_FullChainValid(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	ctx := context.Background()

	result, err := env.validator.Validate(ctx, "MAIN-FRZ01-SHA-RKR1-A5")
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, BarcodeTypeLocation, result.BarcodeType)
	require.Empty(t, result.FailedStep)
	require.Empty(t, result.ErrorMessage)
	require.Len(t, result.ValidComponents, 5)
	require.Equal(t, ids.RoomID, result.ValidComponents["room"].ID)
	require.Equal(t, ids.DeviceID, result.ValidComponents["device"].ID)
	require.Equal(t, ids.ShelfID, result.ValidComponents["shelf"].ID)
	require.Equal(t, ids.RackID, result.ValidComponents["rack"].ID)
	require.Equal(t, ids.PositionID, result.ValidComponents["position"].ID)
	require.Equal(t, "FRZ01", result.ValidComponents["device"].Code)
}

// 解析失败：FORMAT_VALIDATION，无 validComponents，通用错误消息
func TestBarcodeValidator_FormatFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seedHierarchy(t)
	ctx := context.Background()

	result, err := env.validator.Validate(ctx, "JUSTONESEG")
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Equal(t, StepFormatValidation, result.FailedStep)
	require.Empty(t, result.ValidComponents)
	require.Contains(t, result.ErrorMessage, "Scanned code: JUSTONESEG")
	require.Contains(t, result.ErrorMessage, "Invalid barcode format.")
}

// 样本条码扫进位置入口：BARCODE_TYPE_MISMATCH，不再继续后续步骤
func TestBarcodeValidator_SampleBarcodeMismatch(t *testing.T) {
	env := newTestEnv(t)
	env.seedHierarchy(t)
	ctx := context.Background()

	result, err := env.validator.Validate(ctx, "AB123456")
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Equal(t, BarcodeTypeSample, result.BarcodeType)
	require.Equal(t, StepBarcodeTypeMismatch, result.FailedStep)
	require.Empty(t, result.ValidComponents)
}

// Room code 不存在：LOCATION_EXISTENCE，validComponents 为空
func TestBarcodeValidator_RoomNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.seedHierarchy(t)
	ctx := context.Background()

	result, err := env.validator.Validate(ctx, "NOPE-FRZ01")
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Equal(t, StepLocationExistence, result.FailedStep)
	require.Empty(t, result.ValidComponents)
	require.Contains(t, result.ErrorMessage, "Room NOPE does not exist.")
	require.Contains(t, result.ErrorMessage, "(Room: NOPE, Device: FRZ01)")
}

// Device 全局存在但不在解析出的 Room 下：HIERARCHY_VALIDATION，Room 仍保留在 validComponents
func TestBarcodeValidator_DeviceWrongRoom(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	ctx := context.Background()

	// FRZ02 挂在另一个房间下
	otherRoomID, err := env.locations.CreateRoom(ctx, &domain.Room{
		Code: "ANNEX", Name: "Annex Lab", Active: true,
	})
	require.NoError(t, err)
	_, err = env.locations.CreateDevice(ctx, &domain.Device{
		RoomID: otherRoomID, Code: "FRZ02", Name: "Freezer 02",
		DeviceType: domain.DeviceTypeFreezer, Active: true,
	})
	require.NoError(t, err)

	result, err := env.validator.Validate(ctx, "MAIN-FRZ02")
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Equal(t, StepHierarchyValidation, result.FailedStep)
	require.Contains(t, result.ErrorMessage, "Device FRZ02 does not belong to Room MAIN.")
	require.Len(t, result.ValidComponents, 1)
	require.Equal(t, ids.RoomID, result.ValidComponents["room"].ID)
}

// 某层只挂了 ACTIVITY_CHECK 失败：下层仍能以它为父节点继续层级解析
func TestBarcodeValidator_InactiveLevel(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	ctx := context.Background()

	shelf, err := env.locations.GetShelf(ctx, ids.ShelfID)
	require.NoError(t, err)
	shelf.Active = false
	require.NoError(t, env.locations.UpdateShelf(ctx, ids.ShelfID, shelf))

	result, err := env.validator.Validate(ctx, "MAIN-FRZ01-SHA-RKR1")
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Equal(t, StepActivityCheck, result.FailedStep)
	require.Contains(t, result.ErrorMessage, "Shelf SHA is not active.")
	// shelf 不进 validComponents，但 rack 仍通过层级解析
	require.NotContains(t, result.ValidComponents, "shelf")
	require.Contains(t, result.ValidComponents, "rack")
	require.Equal(t, ids.RackID, result.ValidComponents["rack"].ID)
}

// 上层存在性失败后，下层只能做存在性检查，层级检查跳过，首个错误保留
func TestBarcodeValidator_FirstFailureRetained(t *testing.T) {
	env := newTestEnv(t)
	env.seedHierarchy(t)
	ctx := context.Background()

	result, err := env.validator.Validate(ctx, "MAIN-MISSING-SHA")
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Equal(t, StepLocationExistence, result.FailedStep)
	require.Contains(t, result.ErrorMessage, "Device MISSING does not exist.")
	// Room 有效；Shelf 全局存在但无父可挂，不进 validComponents
	require.Contains(t, result.ValidComponents, "room")
	require.NotContains(t, result.ValidComponents, "shelf")
}

// 幂等：同一输入、存储不变，两次结果一致
func TestBarcodeValidator_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	env.seedHierarchy(t)
	ctx := context.Background()

	first, err := env.validator.Validate(ctx, "MAIN-FRZ01-SHA-RKR1-A5")
	require.NoError(t, err)
	second, err := env.validator.Validate(ctx, "MAIN-FRZ01-SHA-RKR1-A5")
	require.NoError(t, err)
	require.Equal(t, first, second)

	badFirst, err := env.validator.Validate(ctx, "NOPE-FRZ01")
	require.NoError(t, err)
	badSecond, err := env.validator.Validate(ctx, "NOPE-FRZ01")
	require.NoError(t, err)
	require.Equal(t, badFirst, badSecond)
}
