package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"biobank-data/internal/domain"
	"biobank-data/internal/repository"
)

const shortCodeMaxLength = 10

var shortCodePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]*$`)

// ShortCodeFormatResult 格式校验结果，NormalizedCode 为去空格转大写后的值
type ShortCodeFormatResult struct {
	Valid          bool   `json:"valid"`
	NormalizedCode string `json:"normalized_code"`
	Error          string `json:"error,omitempty"`
}

// ShortCodeUniquenessResult 唯一性校验结果
type ShortCodeUniquenessResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ShortCodeValidator 短码（打印标签用 ≤10 字符编码）校验
type ShortCodeValidator interface {
	// ValidateFormat 纯格式检查，不访问存储
	ValidateFormat(code string) ShortCodeFormatResult
	// ValidateUniqueness 按层级（device/shelf/rack）范围查重，excludeID 排除被编辑实体自身
	ValidateUniqueness(ctx context.Context, code string, level string, excludeID int64) (ShortCodeUniquenessResult, error)
	// ChangeWarning 短码变更提示，仅提醒旧标签失效，不阻断写入
	ChangeWarning(oldCode, newCode string, entityID int64) string
}

type shortCodeValidator struct {
	locations repository.LocationsRepository
}

func NewShortCodeValidator(locations repository.LocationsRepository) ShortCodeValidator {
	return &shortCodeValidator{locations: locations}
}

// ValidateFormat 失败原因分四类报告：空值、超长、分隔符开头、非法字符
func (v *shortCodeValidator) ValidateFormat(code string) ShortCodeFormatResult {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return ShortCodeFormatResult{Error: "short code cannot be blank"}
	}
	if len(normalized) > shortCodeMaxLength {
		return ShortCodeFormatResult{
			NormalizedCode: normalized,
			Error:          fmt.Sprintf("short code %s exceeds %d characters", normalized, shortCodeMaxLength),
		}
	}
	first := normalized[0]
	if first == '-' || first == '_' {
		return ShortCodeFormatResult{
			NormalizedCode: normalized,
			Error:          fmt.Sprintf("short code %s cannot start with a separator", normalized),
		}
	}
	if !shortCodePattern.MatchString(normalized) {
		return ShortCodeFormatResult{
			NormalizedCode: normalized,
			Error:          fmt.Sprintf("short code %s contains invalid characters: only letters, digits, hyphen and underscore are allowed", normalized),
		}
	}
	return ShortCodeFormatResult{Valid: true, NormalizedCode: normalized}
}

func (v *shortCodeValidator) ValidateUniqueness(ctx context.Context, code string, level string, excludeID int64) (ShortCodeUniquenessResult, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return ShortCodeUniquenessResult{Valid: true}, nil
	}

	var existingID int64
	var err error
	switch level {
	case string(domain.LocationTypeDevice):
		var d *domain.Device
		d, err = v.locations.FindDeviceByShortCode(ctx, normalized)
		if err == nil {
			existingID = d.DeviceID
		}
	case string(domain.LocationTypeShelf):
		var s *domain.Shelf
		s, err = v.locations.FindShelfByShortCode(ctx, normalized)
		if err == nil {
			existingID = s.ShelfID
		}
	case string(domain.LocationTypeRack):
		var r *domain.Rack
		r, err = v.locations.FindRackByShortCode(ctx, normalized)
		if err == nil {
			existingID = r.RackID
		}
	default:
		return ShortCodeUniquenessResult{}, fmt.Errorf("unsupported short code level: %s", level)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ShortCodeUniquenessResult{Valid: true}, nil
	}
	if err != nil {
		return ShortCodeUniquenessResult{}, fmt.Errorf("failed to check short code uniqueness: %w", err)
	}
	if existingID == excludeID {
		return ShortCodeUniquenessResult{Valid: true}, nil
	}
	return ShortCodeUniquenessResult{
		Error: fmt.Sprintf("short code %s is already in use by another %s", normalized, level),
	}, nil
}

func (v *shortCodeValidator) ChangeWarning(oldCode, newCode string, entityID int64) string {
	oldNorm := strings.ToUpper(strings.TrimSpace(oldCode))
	newNorm := strings.ToUpper(strings.TrimSpace(newCode))
	if oldNorm == "" || oldNorm == newNorm {
		return ""
	}
	return fmt.Sprintf("changing short code from %s to %s will invalidate previously printed labels", oldNorm, newNorm)
}
