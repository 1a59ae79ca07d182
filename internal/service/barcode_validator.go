package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"biobank-data/internal/domain"
	"biobank-data/internal/repository"
)

// 校验失败步骤
const (
	StepBarcodeTypeMismatch = "BARCODE_TYPE_MISMATCH"
	StepFormatValidation    = "FORMAT_VALIDATION"
	StepLocationExistence   = "LOCATION_EXISTENCE"
	StepHierarchyValidation = "HIERARCHY_VALIDATION"
	StepActivityCheck       = "ACTIVITY_CHECK"
)

// BarcodeComponent 校验通过的层级节点，供 UI 预填
type BarcodeComponent struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// BarcodeValidationResult 条码校验结果
// Valid 为 true 时 FailedStep/ErrorMessage 为空；ValidComponents 只含完全通过的层级
type BarcodeValidationResult struct {
	Valid           bool                        `json:"valid"`
	BarcodeType     string                      `json:"barcode_type"`
	FailedStep      string                      `json:"failed_step,omitempty"`
	ErrorMessage    string                      `json:"error_message,omitempty"`
	ValidComponents map[string]BarcodeComponent `json:"valid_components"`
}

// BarcodeValidator 位置条码五步校验
type BarcodeValidator interface {
	Validate(ctx context.Context, rawBarcode string) (*BarcodeValidationResult, error)
}

type barcodeValidator struct {
	parser    BarcodeParser
	locations repository.LocationsRepository
	logger    *zap.Logger
}

func NewBarcodeValidator(parser BarcodeParser, locations repository.LocationsRepository, logger *zap.Logger) BarcodeValidator {
	return &barcodeValidator{
		parser:    parser,
		locations: locations,
		logger:    logger,
	}
}

// firstFailure 累加器：继续校验后续层级，但只保留第一个错误
type firstFailure struct {
	step    string
	message string
}

func (f *firstFailure) record(step, message string) {
	if f.step == "" {
		f.step = step
		f.message = message
	}
}

// Validate 五步校验，continue-past-failure 语义：
// 某层失败后继续解析后续层级，让 UI 能预填所有能解析出来的节点
func (v *barcodeValidator) Validate(ctx context.Context, rawBarcode string) (*BarcodeValidationResult, error) {
	raw := strings.TrimSpace(rawBarcode)

	result := &BarcodeValidationResult{
		BarcodeType:     BarcodeTypeLocation,
		ValidComponents: map[string]BarcodeComponent{},
	}

	// Step 1+2: 类型判定与格式解析，解析失败即终止（没有可解析的层级）
	parsed, ok := v.parser.Parse(raw)
	if !ok {
		result.BarcodeType = v.parser.Classify(raw)
		switch result.BarcodeType {
		case BarcodeTypeSample:
			result.FailedStep = StepBarcodeTypeMismatch
			result.ErrorMessage = fmt.Sprintf("Scanned code: %s This is a sample barcode, not a storage location barcode.", raw)
		default:
			result.FailedStep = StepFormatValidation
			result.ErrorMessage = fmt.Sprintf("Scanned code: %s Invalid barcode format.", raw)
		}
		return result, nil
	}

	var failure firstFailure

	// Step 3: 逐层解析 Room → Device → Shelf → Rack → Position
	// 每层三查：全局存在性、父节点范围内的层级归属、激活状态
	// 上一层存在性/层级失败时，下一层无父节点可查，层级检查跳过（不算新错误）

	// Room（无父节点，存在性即层级）
	var resolvedRoom *domain.Room
	room, err := v.locations.FindRoomByCode(ctx, parsed.RoomCode)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		failure.record(StepLocationExistence, fmt.Sprintf("Room %s does not exist.", parsed.RoomCode))
	case err != nil:
		v.logger.Error("failed to look up room for barcode", zap.String("code", parsed.RoomCode), zap.Error(err))
		return nil, fmt.Errorf("failed to look up room: %w", err)
	default:
		resolvedRoom = room
		if !room.Active {
			failure.record(StepActivityCheck, fmt.Sprintf("Room %s is not active.", room.Code))
		} else {
			result.ValidComponents["room"] = BarcodeComponent{ID: room.RoomID, Name: room.Name, Code: room.Code}
		}
	}

	// Device
	var resolvedDevice *domain.Device
	if parsed.DeviceCode != "" {
		_, err := v.locations.FindDeviceByCode(ctx, parsed.DeviceCode)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			failure.record(StepLocationExistence, fmt.Sprintf("Device %s does not exist.", parsed.DeviceCode))
		case err != nil:
			v.logger.Error("failed to look up device for barcode", zap.String("code", parsed.DeviceCode), zap.Error(err))
			return nil, fmt.Errorf("failed to look up device: %w", err)
		case resolvedRoom != nil:
			scoped, err := v.locations.FindDeviceByCodeInRoom(ctx, parsed.DeviceCode, resolvedRoom.RoomID)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				failure.record(StepHierarchyValidation,
					fmt.Sprintf("Device %s does not belong to Room %s.", parsed.DeviceCode, resolvedRoom.Code))
			case err != nil:
				v.logger.Error("failed to look up device in room", zap.String("code", parsed.DeviceCode), zap.Error(err))
				return nil, fmt.Errorf("failed to look up device: %w", err)
			default:
				resolvedDevice = scoped
				if !scoped.Active {
					failure.record(StepActivityCheck, fmt.Sprintf("Device %s is not active.", scoped.Code))
				} else {
					result.ValidComponents["device"] = BarcodeComponent{ID: scoped.DeviceID, Name: scoped.Name, Code: scoped.Code}
				}
			}
		}
		// resolvedRoom 为空时层级检查无从谈起，沿用已记录的首个错误
	}

	// Shelf
	var resolvedShelf *domain.Shelf
	if parsed.ShelfLabel != "" {
		_, err := v.locations.FindShelfByLabel(ctx, parsed.ShelfLabel)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			failure.record(StepLocationExistence, fmt.Sprintf("Shelf %s does not exist.", parsed.ShelfLabel))
		case err != nil:
			v.logger.Error("failed to look up shelf for barcode", zap.String("label", parsed.ShelfLabel), zap.Error(err))
			return nil, fmt.Errorf("failed to look up shelf: %w", err)
		case resolvedDevice != nil:
			scoped, err := v.locations.FindShelfByLabelInDevice(ctx, parsed.ShelfLabel, resolvedDevice.DeviceID)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				failure.record(StepHierarchyValidation,
					fmt.Sprintf("Shelf %s does not belong to Device %s.", parsed.ShelfLabel, resolvedDevice.Code))
			case err != nil:
				v.logger.Error("failed to look up shelf in device", zap.String("label", parsed.ShelfLabel), zap.Error(err))
				return nil, fmt.Errorf("failed to look up shelf: %w", err)
			default:
				resolvedShelf = scoped
				if !scoped.Active {
					failure.record(StepActivityCheck, fmt.Sprintf("Shelf %s is not active.", scoped.Label))
				} else {
					result.ValidComponents["shelf"] = BarcodeComponent{ID: scoped.ShelfID, Name: scoped.Label, Code: scoped.Label}
				}
			}
		}
	}

	// Rack
	var resolvedRack *domain.Rack
	if parsed.RackLabel != "" {
		_, err := v.locations.FindRackByLabel(ctx, parsed.RackLabel)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			failure.record(StepLocationExistence, fmt.Sprintf("Rack %s does not exist.", parsed.RackLabel))
		case err != nil:
			v.logger.Error("failed to look up rack for barcode", zap.String("label", parsed.RackLabel), zap.Error(err))
			return nil, fmt.Errorf("failed to look up rack: %w", err)
		case resolvedShelf != nil:
			scoped, err := v.locations.FindRackByLabelInShelf(ctx, parsed.RackLabel, resolvedShelf.ShelfID)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				failure.record(StepHierarchyValidation,
					fmt.Sprintf("Rack %s does not belong to Shelf %s.", parsed.RackLabel, resolvedShelf.Label))
			case err != nil:
				v.logger.Error("failed to look up rack in shelf", zap.String("label", parsed.RackLabel), zap.Error(err))
				return nil, fmt.Errorf("failed to look up rack: %w", err)
			default:
				resolvedRack = scoped
				if !scoped.Active {
					failure.record(StepActivityCheck, fmt.Sprintf("Rack %s is not active.", scoped.Label))
				} else {
					result.ValidComponents["rack"] = BarcodeComponent{ID: scoped.RackID, Name: scoped.Label, Code: scoped.Label}
				}
			}
		}
	}

	// Position
	if parsed.PositionCode != "" {
		_, err := v.locations.FindPositionByCoordinate(ctx, parsed.PositionCode)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			failure.record(StepLocationExistence, fmt.Sprintf("Position %s does not exist.", parsed.PositionCode))
		case err != nil:
			v.logger.Error("failed to look up position for barcode", zap.String("coordinate", parsed.PositionCode), zap.Error(err))
			return nil, fmt.Errorf("failed to look up position: %w", err)
		case resolvedRack != nil:
			scoped, err := v.locations.FindPositionByCoordinateInRack(ctx, parsed.PositionCode, resolvedRack.RackID)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				failure.record(StepHierarchyValidation,
					fmt.Sprintf("Position %s does not belong to Rack %s.", parsed.PositionCode, resolvedRack.Label))
			case err != nil:
				v.logger.Error("failed to look up position in rack", zap.String("coordinate", parsed.PositionCode), zap.Error(err))
				return nil, fmt.Errorf("failed to look up position: %w", err)
			default:
				if !scoped.Active {
					failure.record(StepActivityCheck, fmt.Sprintf("Position %s is not active.", scoped.Coordinate))
				} else {
					result.ValidComponents["position"] = BarcodeComponent{ID: scoped.PositionID, Name: scoped.Coordinate, Code: scoped.Coordinate}
				}
			}
		}
	}

	// Step 4+5: 汇总有效性并格式化错误消息
	if failure.step == "" {
		result.Valid = true
		return result, nil
	}
	result.FailedStep = failure.step
	result.ErrorMessage = fmt.Sprintf("Scanned code: %s (%s) %s", raw, formatParsedLevels(parsed), failure.message)
	return result, nil
}

// formatParsedLevels 括号内按序列出所有解析出的层级（Room: X, Device: Y, ...）
func formatParsedLevels(parsed ParsedBarcode) string {
	parts := []string{fmt.Sprintf("Room: %s", parsed.RoomCode)}
	if parsed.DeviceCode != "" {
		parts = append(parts, fmt.Sprintf("Device: %s", parsed.DeviceCode))
	}
	if parsed.ShelfLabel != "" {
		parts = append(parts, fmt.Sprintf("Shelf: %s", parsed.ShelfLabel))
	}
	if parsed.RackLabel != "" {
		parts = append(parts, fmt.Sprintf("Rack: %s", parsed.RackLabel))
	}
	if parsed.PositionCode != "" {
		parts = append(parts, fmt.Sprintf("Position: %s", parsed.PositionCode))
	}
	return strings.Join(parts, ", ")
}
