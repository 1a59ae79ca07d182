package scanner

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"biobank-data/internal/service"
)

// ScanMessage 扫码枪网关上报的单条扫码事件
// 消息格式：数组，每个元素一条扫码记录
//
//	[
//	  {
//	    "station_id": "BENCH-03",
//	    "barcode": "MAIN-FRZ01-SHA-RKR1-A5",
//	    "timestamp": 1234567890
//	  }
//	]
type ScanMessage struct {
	StationID string `json:"station_id"`
	Barcode   string `json:"barcode"`
	Timestamp int64  `json:"timestamp"`
}

// ScanOutcome 单条扫码的校验结果，按上报顺序返回
type ScanOutcome struct {
	StationID string                           `json:"station_id"`
	Barcode   string                           `json:"barcode"`
	Result    *service.BarcodeValidationResult `json:"result"`
}

// ScannerGateway 台式扫码枪消息入口
// 每条消息独立校验，单条失败不中断批次
type ScannerGateway struct {
	validator service.BarcodeValidator
	logger    *zap.Logger
}

func NewScannerGateway(validator service.BarcodeValidator, logger *zap.Logger) *ScannerGateway {
	return &ScannerGateway{
		validator: validator,
		logger:    logger,
	}
}

// HandleMessage 处理一批扫码事件，返回逐条校验结果
func (g *ScannerGateway) HandleMessage(ctx context.Context, payload []byte) ([]ScanOutcome, error) {
	var messages []ScanMessage
	if err := json.Unmarshal(payload, &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scan payload: %w", err)
	}

	outcomes := make([]ScanOutcome, 0, len(messages))
	for _, msg := range messages {
		result, err := g.validator.Validate(ctx, msg.Barcode)
		if err != nil {
			// 存储层故障：记日志后继续下一条
			g.logger.Error("failed to validate scanned barcode",
				zap.String("station_id", msg.StationID),
				zap.String("barcode", msg.Barcode),
				zap.Error(err))
			continue
		}
		if !result.Valid {
			g.logger.Info("scan rejected",
				zap.String("station_id", msg.StationID),
				zap.String("barcode", msg.Barcode),
				zap.String("failed_step", result.FailedStep))
		}
		outcomes = append(outcomes, ScanOutcome{
			StationID: msg.StationID,
			Barcode:   msg.Barcode,
			Result:    result,
		})
	}
	return outcomes, nil
}
