package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDelimiterBarcodeParser_Parse(t *testing.T) {
	p := NewDelimiterBarcodeParser()

	// 五段完整条码
	parsed, ok := p.Parse("MAIN-FRZ01-SHA-RKR1-A5")
	require.True(t, ok)
	require.Equal(t, "MAIN", parsed.RoomCode)
	require.Equal(t, "FRZ01", parsed.DeviceCode)
	require.Equal(t, "SHA", parsed.ShelfLabel)
	require.Equal(t, "RKR1", parsed.RackLabel)
	require.Equal(t, "A5", parsed.PositionCode)
	require.Equal(t, 5, parsed.SegmentCount())

	// 两段最短条码
	parsed, ok = p.Parse("MAIN-FRZ01")
	require.True(t, ok)
	require.Equal(t, "MAIN", parsed.RoomCode)
	require.Equal(t, "FRZ01", parsed.DeviceCode)
	require.Empty(t, parsed.ShelfLabel)

	// 小写/空白归一化
	parsed, ok = p.Parse("  main-frz01 ")
	require.True(t, ok)
	require.Equal(t, "MAIN", parsed.RoomCode)

	// 单段、六段、空段均非法
	_, ok = p.Parse("MAIN")
	require.False(t, ok)
	_, ok = p.Parse("A-B-C-D-E-F")
	require.False(t, ok)
	_, ok = p.Parse("MAIN--SHA")
	require.False(t, ok)
	_, ok = p.Parse("")
	require.False(t, ok)
}

func TestDelimiterBarcodeParser_Classify(t *testing.T) {
	p := NewDelimiterBarcodeParser()

	require.Equal(t, BarcodeTypeSample, p.Classify("AB123456"))
	require.Equal(t, BarcodeTypeSample, p.Classify("SAMP-000123"))
	require.Equal(t, BarcodeTypeSample, p.Classify("smp_42"))
	require.Equal(t, BarcodeTypeLocation, p.Classify("MAIN-FRZ01"))
	require.Equal(t, BarcodeTypeUnknown, p.Classify("FRZ01"))
	require.Equal(t, BarcodeTypeUnknown, p.Classify(""))
}
