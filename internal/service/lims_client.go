package service

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"biobank-data/internal/config"
)

// MovementEvent 推送给 LIMS 的样本位置事件
type MovementEvent struct {
	SampleItemID int64  `json:"sample_item_id"`
	Event        string `json:"event"` // assigned | moved | disposed
	Path         string `json:"path,omitempty"`
}

// LimsNotifier 样本位置变更通知，尽力而为：失败只记日志，不影响主流程
type LimsNotifier interface {
	NotifyMovement(ctx context.Context, event MovementEvent)
}

type limsResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
}

// LimsClient LIMS 系统 API 客户端
type LimsClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewLimsClient(cfg *config.LimsConfig, logger *zap.Logger) *LimsClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(3*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIToken != "" {
		client.SetAuthToken(cfg.APIToken)
	}

	return &LimsClient{
		httpClient: client,
		logger:     logger,
	}
}

func (c *LimsClient) NotifyMovement(ctx context.Context, event MovementEvent) {
	var result limsResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(event).
		SetResult(&result).
		Post("/api/v1/sample-movements")
	if err != nil {
		c.logger.Warn("failed to notify LIMS of sample movement",
			zap.Int64("sample_item_id", event.SampleItemID),
			zap.String("event", event.Event),
			zap.Error(err))
		return
	}
	if resp.IsError() || result.Status != 0 {
		c.logger.Warn("LIMS rejected sample movement notification",
			zap.Int64("sample_item_id", event.SampleItemID),
			zap.String("event", event.Event),
			zap.Int("http_status", resp.StatusCode()),
			zap.Int("status", result.Status),
			zap.String("msg", result.Msg))
		return
	}
	c.logger.Debug("LIMS notified of sample movement",
		zap.Int64("sample_item_id", event.SampleItemID),
		zap.String("event", event.Event))
}

// NoopLimsNotifier LIMS 推送未启用时的空实现
type NoopLimsNotifier struct{}

func (NoopLimsNotifier) NotifyMovement(ctx context.Context, event MovementEvent) {}
