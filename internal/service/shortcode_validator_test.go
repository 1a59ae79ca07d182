package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"biobank-data/internal/domain"
)

func TestShortCode_Format(t *testing.T) {
	env := newTestEnv(t)

	// 小写归一化为大写
	res := env.shorts.ValidateFormat("frz01")
	require.True(t, res.Valid)
	require.Equal(t, "FRZ01", res.NormalizedCode)

	// 分隔符开头拒绝，错误指明原因
	res = env.shorts.ValidateFormat("-frz01")
	require.False(t, res.Valid)
	require.Contains(t, res.Error, "cannot start with a separator")

	res = env.shorts.ValidateFormat("_frz01")
	require.False(t, res.Valid)
	require.Contains(t, res.Error, "cannot start with a separator")

	// 恰好 10 字符通过，11 字符拒绝
	res = env.shorts.ValidateFormat(strings.Repeat("A", 10))
	require.True(t, res.Valid)
	res = env.shorts.ValidateFormat(strings.Repeat("A", 11))
	require.False(t, res.Valid)
	require.Contains(t, res.Error, "exceeds 10 characters")

	// 空值
	res = env.shorts.ValidateFormat("   ")
	require.False(t, res.Valid)
	require.Contains(t, res.Error, "blank")

	// 非法字符
	res = env.shorts.ValidateFormat("FRZ 01")
	require.False(t, res.Valid)
	require.Contains(t, res.Error, "invalid characters")

	// 连字符/下划线在非首位合法
	res = env.shorts.ValidateFormat("FRZ-01_A")
	require.True(t, res.Valid)
	require.Equal(t, "FRZ-01_A", res.NormalizedCode)
}

func TestShortCode_Uniqueness(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	roomID, err := env.locations.CreateRoom(ctx, &domain.Room{Code: "SC", Name: "Short Code Lab", Active: true})
	require.NoError(t, err)
	deviceID, err := env.locations.CreateDevice(ctx, &domain.Device{
		RoomID: roomID, Code: "DEV01", Name: "Device 01",
		DeviceType: domain.DeviceTypeFreezer, Active: true,
		ShortCode: sql.NullString{String: "FRZ01", Valid: true},
	})
	require.NoError(t, err)

	// 其他实体用同一短码：拒绝
	res, err := env.shorts.ValidateUniqueness(ctx, "frz01", "device", 0)
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Contains(t, res.Error, "already in use")

	// 编辑自身：放行
	res, err = env.shorts.ValidateUniqueness(ctx, "FRZ01", "device", deviceID)
	require.NoError(t, err)
	require.True(t, res.Valid)

	// 未占用的短码：放行
	res, err = env.shorts.ValidateUniqueness(ctx, "FRZ02", "device", 0)
	require.NoError(t, err)
	require.True(t, res.Valid)

	// 层级按类型隔离：shelf 范围内 FRZ01 未占用
	res, err = env.shorts.ValidateUniqueness(ctx, "FRZ01", "shelf", 0)
	require.NoError(t, err)
	require.True(t, res.Valid)

	// 非法层级
	_, err = env.shorts.ValidateUniqueness(ctx, "FRZ01", "room", 0)
	require.Error(t, err)
}

func TestShortCode_ChangeWarning(t *testing.T) {
	env := newTestEnv(t)

	// 新实体（旧码为空）：不提示
	require.Empty(t, env.shorts.ChangeWarning("", "FRZ01", 1))
	// 未变更（大小写不敏感）：不提示
	require.Empty(t, env.shorts.ChangeWarning("frz01", "FRZ01", 1))
	// 变更：提示旧标签失效，但不阻断
	warning := env.shorts.ChangeWarning("FRZ01", "FRZ02", 1)
	require.Contains(t, warning, "invalidate previously printed labels")
}
