package service

import (
	"regexp"
	"strings"
)

// 条码类型
const (
	BarcodeTypeLocation = "location"
	BarcodeTypeSample   = "sample"
	BarcodeTypeUnknown  = "unknown"
)

// ParsedBarcode 位置条码按层级拆出的各段，缺省段为空串
// 段序固定：房间-设备-层板-架-坐标，从左往右填充
type ParsedBarcode struct {
	RoomCode     string
	DeviceCode   string
	ShelfLabel   string
	RackLabel    string
	PositionCode string
}

// SegmentCount 非空段数量
func (p *ParsedBarcode) SegmentCount() int {
	n := 0
	for _, s := range []string{p.RoomCode, p.DeviceCode, p.ShelfLabel, p.RackLabel, p.PositionCode} {
		if s != "" {
			n++
		}
	}
	return n
}

// BarcodeParser 扫码归类与位置条码拆段
type BarcodeParser interface {
	// Classify 根据形态判断条码类型：location / sample / unknown
	Classify(raw string) string
	// Parse 拆位置条码，段数不在 2~5 范围内时 ok 为 false
	Parse(raw string) (parsed ParsedBarcode, ok bool)
}

// DelimiterBarcodeParser 以连字符分段的解析器
// 例：MAIN-FRZ01-SHA-RKR1-A5 → Room=MAIN Device=FRZ01 Shelf=SHA Rack=RKR1 Position=A5
type DelimiterBarcodeParser struct {
	delimiter string
}

func NewDelimiterBarcodeParser() *DelimiterBarcodeParser {
	return &DelimiterBarcodeParser{delimiter: "-"}
}

// 样本登记号形态：纯字母前缀+数字（AB123456），或带 SAMP/SMP 前缀
var (
	accessionPattern  = regexp.MustCompile(`^[A-Z]{1,4}[0-9]{4,}$`)
	samplePrefixRegex = regexp.MustCompile(`^(SAMP|SMP|SPEC)[-_]?[0-9]+$`)
)

func (p *DelimiterBarcodeParser) Classify(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return BarcodeTypeUnknown
	}
	if samplePrefixRegex.MatchString(s) || accessionPattern.MatchString(s) {
		return BarcodeTypeSample
	}
	if strings.Contains(s, p.delimiter) {
		return BarcodeTypeLocation
	}
	return BarcodeTypeUnknown
}

func (p *DelimiterBarcodeParser) Parse(raw string) (ParsedBarcode, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return ParsedBarcode{}, false
	}
	segments := strings.Split(s, p.delimiter)
	for _, seg := range segments {
		if strings.TrimSpace(seg) == "" {
			return ParsedBarcode{}, false
		}
	}
	if len(segments) < 2 || len(segments) > 5 {
		return ParsedBarcode{}, false
	}

	var parsed ParsedBarcode
	parsed.RoomCode = segments[0]
	parsed.DeviceCode = segments[1]
	if len(segments) > 2 {
		parsed.ShelfLabel = segments[2]
	}
	if len(segments) > 3 {
		parsed.RackLabel = segments[3]
	}
	if len(segments) > 4 {
		parsed.PositionCode = segments[4]
	}
	return parsed, true
}
