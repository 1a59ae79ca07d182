package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"biobank-data/internal/domain"
)

// CapacityInfo 容量汇总
// Capacity 为 nil 表示无法确定（与 0 严格区分）；Warning 仅提示，从不阻断分配
type CapacityInfo struct {
	Capacity     *int   `json:"capacity"`
	Occupied     int    `json:"occupied"`
	UsagePercent *int   `json:"usage_percent"`
	Warning      string `json:"warning,omitempty"`
}

// CalculateCapacity 两级容量算法 + 子树占用统计
// 容量：手动上限优先，否则对直接子节点递归求和；任一子节点无法确定则整体无法确定
// （把未知当 0 会低估容量，宁可报告未知）
func (s *locationService) CalculateCapacity(ctx context.Context, ref domain.LocationRef) (*CapacityInfo, error) {
	var capacity *int
	var occupied int
	var err error

	switch ref.Type {
	case domain.LocationTypeDevice:
		capacity, err = s.deviceCapacity(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		occupied, err = s.locations.CountOccupiedInDevice(ctx, ref.ID)
	case domain.LocationTypeShelf:
		capacity, err = s.shelfCapacity(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		occupied, err = s.locations.CountOccupiedInShelf(ctx, ref.ID)
	case domain.LocationTypeRack:
		rack, rerr := s.locations.GetRack(ctx, ref.ID)
		if errors.Is(rerr, sql.ErrNoRows) {
			return nil, fmt.Errorf("rack %d not found", ref.ID)
		}
		if rerr != nil {
			return nil, fmt.Errorf("failed to get rack: %w", rerr)
		}
		c := rack.Capacity()
		capacity = &c
		occupied, err = s.locations.CountOccupiedInRack(ctx, ref.ID)
	default:
		return nil, fmt.Errorf("unsupported location type: %s", ref.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to count occupancy: %w", err)
	}

	info := &CapacityInfo{Capacity: capacity, Occupied: occupied}
	if capacity != nil && *capacity > 0 {
		percent := occupied * 100 / *capacity
		info.UsagePercent = &percent
		info.Warning = capacityWarning(percent)
	}
	return info, nil
}

// deviceCapacity 手动上限 > 0 时直接返回，否则聚合各层板容量
func (s *locationService) deviceCapacity(ctx context.Context, deviceID int64) (*int, error) {
	device, err := s.locations.GetDevice(ctx, deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("device %d not found", deviceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	if device.CapacityLimit.Valid && device.CapacityLimit.Int64 > 0 {
		c := int(device.CapacityLimit.Int64)
		return &c, nil
	}

	shelves, err := s.locations.ListShelves(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shelves: %w", err)
	}
	if len(shelves) == 0 {
		return nil, nil
	}
	total := 0
	for _, shelf := range shelves {
		c, err := s.shelfCapacityOf(ctx, shelf)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, nil
		}
		total += *c
	}
	return &total, nil
}

func (s *locationService) shelfCapacity(ctx context.Context, shelfID int64) (*int, error) {
	shelf, err := s.locations.GetShelf(ctx, shelfID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("shelf %d not found", shelfID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shelf: %w", err)
	}
	return s.shelfCapacityOf(ctx, shelf)
}

// shelfCapacityOf 手动上限 > 0 时直接返回，否则聚合各架容量（架容量恒为 rows × columns）
func (s *locationService) shelfCapacityOf(ctx context.Context, shelf *domain.Shelf) (*int, error) {
	if shelf.CapacityLimit.Valid && shelf.CapacityLimit.Int64 > 0 {
		c := int(shelf.CapacityLimit.Int64)
		return &c, nil
	}
	racks, err := s.locations.ListRacks(ctx, shelf.ShelfID)
	if err != nil {
		return nil, fmt.Errorf("failed to list racks: %w", err)
	}
	if len(racks) == 0 {
		return nil, nil
	}
	total := 0
	for _, rack := range racks {
		total += rack.Capacity()
	}
	return &total, nil
}

// capacityWarning 阈值 80/90/100，仅提示
func capacityWarning(percent int) string {
	switch {
	case percent >= 100:
		return fmt.Sprintf("location is at or over capacity (%d%%)", percent)
	case percent >= 90:
		return fmt.Sprintf("location is nearly full (%d%%)", percent)
	case percent >= 80:
		return fmt.Sprintf("location usage is high (%d%%)", percent)
	}
	return ""
}
