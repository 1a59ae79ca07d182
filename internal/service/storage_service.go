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

const positionCoordinateMaxLength = 50

// ErrLocationConflict 乐观锁冲突的统一出口，调用方据此提示"重新加载后重试"
var ErrLocationConflict = errors.New("location was modified by another user, reload and retry")

// ============================================
// 请求/响应结构
// ============================================

type AssignRequest struct {
	SampleItemID       int64  `json:"sample_item_id"`
	LocationID         int64  `json:"location_id"`
	LocationType       string `json:"location_type"` // device | shelf | rack
	PositionCoordinate string `json:"position_coordinate"`
	Notes              string `json:"notes"`
	AssignedByUserID   *int64 `json:"assigned_by_user_id"`
}

type AssignResponse struct {
	AssignmentID    int64  `json:"assignment_id"`
	Path            string `json:"path"`
	CapacityWarning string `json:"capacity_warning,omitempty"`
}

type MoveRequest struct {
	SampleItemID       int64  `json:"sample_item_id"`
	LocationID         int64  `json:"location_id"`
	LocationType       string `json:"location_type"`
	PositionCoordinate string `json:"position_coordinate"`
	Notes              string `json:"notes"`
	Reason             string `json:"reason"`
	MovedByUserID      *int64 `json:"moved_by_user_id"`
}

type MoveResponse struct {
	AssignmentID    int64  `json:"assignment_id"`
	Path            string `json:"path"`
	CapacityWarning string `json:"capacity_warning,omitempty"`
}

type DisposeRequest struct {
	SampleItemID  int64  `json:"sample_item_id"`
	Reason        string `json:"reason"`
	Method        string `json:"method"`
	Notes         string `json:"notes"`
	MovedByUserID *int64 `json:"moved_by_user_id"`
}

type UpdateMetadataRequest struct {
	SampleItemID       int64   `json:"sample_item_id"`
	PositionCoordinate *string `json:"position_coordinate"`
	Notes              *string `json:"notes"`
}

type SampleLocationResponse struct {
	Assignment *domain.SampleStorageAssignment `json:"assignment"`
	Path       string                          `json:"path"`
}

// ============================================
// Service 接口
// ============================================

// StorageService 样本存储分配
// 状态机：Unassigned → Assigned → (Move)* → Disposed，Disposed 不可逆
type StorageService interface {
	Assign(ctx context.Context, req *AssignRequest) (*AssignResponse, error)
	Move(ctx context.Context, req *MoveRequest) (*MoveResponse, error)
	Dispose(ctx context.Context, req *DisposeRequest) error
	UpdateMetadata(ctx context.Context, req *UpdateMetadataRequest) error
	GetSampleLocation(ctx context.Context, sampleItemID int64) (*SampleLocationResponse, error)
	ListMovements(ctx context.Context, sampleItemID int64) ([]*domain.SampleStorageMovement, error)
}

type storageService struct {
	storage     repository.StorageRepository
	locations   repository.LocationsRepository
	locationSvc LocationService
	notifier    LimsNotifier
	logger      *zap.Logger
}

func NewStorageService(
	storage repository.StorageRepository,
	locations repository.LocationsRepository,
	locationSvc LocationService,
	notifier LimsNotifier,
	logger *zap.Logger,
) StorageService {
	return &storageService{
		storage:     storage,
		locations:   locations,
		locationSvc: locationSvc,
		notifier:    notifier,
		logger:      logger,
	}
}

// ============================================
// Assign
// ============================================

func (s *storageService) Assign(ctx context.Context, req *AssignRequest) (*AssignResponse, error) {
	ref, err := s.validateTarget(ctx, req.LocationType, req.LocationID, req.PositionCoordinate)
	if err != nil {
		return nil, err
	}

	sample, err := s.storage.GetSampleItem(ctx, req.SampleItemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sample item %d not found", req.SampleItemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sample item: %w", err)
	}
	if sample.Status == domain.SampleStatusDisposed {
		return nil, fmt.Errorf("sample item %d is disposed and cannot be assigned", req.SampleItemID)
	}

	// 每个样本最多一条有效分配
	if _, err := s.storage.GetAssignmentBySampleItem(ctx, req.SampleItemID); err == nil {
		return nil, fmt.Errorf("sample item %d is already assigned: use move instead", req.SampleItemID)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check existing assignment: %w", err)
	}

	assignment := &domain.SampleStorageAssignment{
		SampleItemID:       req.SampleItemID,
		LocationID:         ref.ID,
		LocationType:       ref.Type,
		PositionCoordinate: ref.Coordinate,
		Notes:              nullString(req.Notes),
		AssignedByUserID:   nullInt64(req.AssignedByUserID),
	}
	assignmentID, err := s.storage.CreateAssignment(ctx, assignment)
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, ErrLocationConflict
		}
		s.logger.Error("failed to create assignment", zap.Int64("sample_item_id", req.SampleItemID), zap.Error(err))
		return nil, err
	}

	// 审计记录严格在分配写入成功之后追加，首次分配 previous 全为 NULL
	movement := &domain.SampleStorageMovement{
		SampleItemID:          req.SampleItemID,
		NewLocationID:         sql.NullInt64{Int64: ref.ID, Valid: true},
		NewLocationType:       sql.NullString{String: string(ref.Type), Valid: true},
		NewPositionCoordinate: ref.Coordinate,
		MovedByUserID:         nullInt64(req.AssignedByUserID),
	}
	if _, err := s.storage.AppendMovement(ctx, movement); err != nil {
		s.logger.Error("failed to append movement", zap.Int64("sample_item_id", req.SampleItemID), zap.Error(err))
		return nil, fmt.Errorf("failed to append movement: %w", err)
	}

	path, err := s.locationSvc.BuildHierarchicalPath(ctx, ref)
	if err != nil {
		return nil, err
	}
	warning, err := s.capacityWarningFor(ctx, ref)
	if err != nil {
		return nil, err
	}

	s.logger.Info("sample assigned",
		zap.Int64("sample_item_id", req.SampleItemID),
		zap.String("location_type", string(ref.Type)),
		zap.Int64("location_id", ref.ID))
	s.notifier.NotifyMovement(ctx, MovementEvent{
		SampleItemID: req.SampleItemID,
		Event:        "assigned",
		Path:         path,
	})
	return &AssignResponse{AssignmentID: assignmentID, Path: path, CapacityWarning: warning}, nil
}

// ============================================
// Move
// ============================================

func (s *storageService) Move(ctx context.Context, req *MoveRequest) (*MoveResponse, error) {
	ref, err := s.validateTarget(ctx, req.LocationType, req.LocationID, req.PositionCoordinate)
	if err != nil {
		return nil, err
	}

	assignment, err := s.storage.GetAssignmentBySampleItem(ctx, req.SampleItemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sample item %d has no assignment: use assign first", req.SampleItemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	// 变更前先快照旧位置，审计行的 previous 必须反映更新前的状态
	prev := assignment.Ref()

	assignment.LocationID = ref.ID
	assignment.LocationType = ref.Type
	assignment.PositionCoordinate = ref.Coordinate
	if strings.TrimSpace(req.Notes) != "" {
		assignment.Notes = nullString(req.Notes)
	}
	// 操作人缺省时保留最初分配人，不抹成 NULL
	if req.MovedByUserID != nil {
		assignment.AssignedByUserID = nullInt64(req.MovedByUserID)
	}

	if err := s.storage.UpdateAssignment(ctx, assignment); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, ErrLocationConflict
		}
		s.logger.Error("failed to update assignment", zap.Int64("sample_item_id", req.SampleItemID), zap.Error(err))
		return nil, err
	}

	movement := &domain.SampleStorageMovement{
		SampleItemID:           req.SampleItemID,
		PrevLocationID:         sql.NullInt64{Int64: prev.ID, Valid: true},
		PrevLocationType:       sql.NullString{String: string(prev.Type), Valid: true},
		PrevPositionCoordinate: prev.Coordinate,
		NewLocationID:          sql.NullInt64{Int64: ref.ID, Valid: true},
		NewLocationType:        sql.NullString{String: string(ref.Type), Valid: true},
		NewPositionCoordinate:  ref.Coordinate,
		Reason:                 nullString(req.Reason),
		MovedByUserID:          nullInt64(req.MovedByUserID),
	}
	if _, err := s.storage.AppendMovement(ctx, movement); err != nil {
		s.logger.Error("failed to append movement", zap.Int64("sample_item_id", req.SampleItemID), zap.Error(err))
		return nil, fmt.Errorf("failed to append movement: %w", err)
	}

	path, err := s.locationSvc.BuildHierarchicalPath(ctx, ref)
	if err != nil {
		return nil, err
	}
	warning, err := s.capacityWarningFor(ctx, ref)
	if err != nil {
		return nil, err
	}

	s.logger.Info("sample moved",
		zap.Int64("sample_item_id", req.SampleItemID),
		zap.String("location_type", string(ref.Type)),
		zap.Int64("location_id", ref.ID))
	s.notifier.NotifyMovement(ctx, MovementEvent{
		SampleItemID: req.SampleItemID,
		Event:        "moved",
		Path:         path,
	})
	return &MoveResponse{AssignmentID: assignment.AssignmentID, Path: path, CapacityWarning: warning}, nil
}

// ============================================
// Dispose
// ============================================

func (s *storageService) Dispose(ctx context.Context, req *DisposeRequest) error {
	reason := strings.TrimSpace(req.Reason)
	method := strings.TrimSpace(req.Method)
	if reason == "" {
		return fmt.Errorf("disposal reason is required")
	}
	if method == "" {
		return fmt.Errorf("disposal method is required")
	}

	sample, err := s.storage.GetSampleItem(ctx, req.SampleItemID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sample item %d not found", req.SampleItemID)
	}
	if err != nil {
		return fmt.Errorf("failed to get sample item: %w", err)
	}
	if sample.Status == domain.SampleStatusDisposed {
		return fmt.Errorf("sample item %d is already disposed", req.SampleItemID)
	}

	if err := s.storage.UpdateSampleItemStatus(ctx, req.SampleItemID, domain.SampleStatusDisposed, method); err != nil {
		s.logger.Error("failed to mark sample item disposed", zap.Int64("sample_item_id", req.SampleItemID), zap.Error(err))
		return err
	}

	// 无分配则只改状态，不写审计行
	assignment, err := s.storage.GetAssignmentBySampleItem(ctx, req.SampleItemID)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Info("sample disposed without assignment", zap.Int64("sample_item_id", req.SampleItemID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get assignment: %w", err)
	}

	prev := assignment.Ref()
	if err := s.storage.DeleteAssignment(ctx, assignment.AssignmentID); err != nil {
		s.logger.Error("failed to delete assignment", zap.Int64("assignment_id", assignment.AssignmentID), zap.Error(err))
		return err
	}

	// 处置审计行：previous 记录最后已知位置，new 全为 NULL
	movement := &domain.SampleStorageMovement{
		SampleItemID:           req.SampleItemID,
		PrevLocationID:         sql.NullInt64{Int64: prev.ID, Valid: true},
		PrevLocationType:       sql.NullString{String: string(prev.Type), Valid: true},
		PrevPositionCoordinate: prev.Coordinate,
		Reason:                 nullString(fmt.Sprintf("%s (method: %s)", reason, method)),
		MovedByUserID:          nullInt64(req.MovedByUserID),
	}
	if _, err := s.storage.AppendMovement(ctx, movement); err != nil {
		s.logger.Error("failed to append disposal movement", zap.Int64("sample_item_id", req.SampleItemID), zap.Error(err))
		return fmt.Errorf("failed to append movement: %w", err)
	}

	s.logger.Info("sample disposed",
		zap.Int64("sample_item_id", req.SampleItemID),
		zap.String("method", method))
	s.notifier.NotifyMovement(ctx, MovementEvent{
		SampleItemID: req.SampleItemID,
		Event:        "disposed",
	})
	return nil
}

// ============================================
// 元数据与查询
// ============================================

// UpdateMetadata 只改坐标/备注，不算位置变更，不写审计行
func (s *storageService) UpdateMetadata(ctx context.Context, req *UpdateMetadataRequest) error {
	assignment, err := s.storage.GetAssignmentBySampleItem(ctx, req.SampleItemID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sample item %d has no assignment", req.SampleItemID)
	}
	if err != nil {
		return fmt.Errorf("failed to get assignment: %w", err)
	}

	if req.PositionCoordinate != nil {
		coordinate := strings.ToUpper(strings.TrimSpace(*req.PositionCoordinate))
		if len(coordinate) > positionCoordinateMaxLength {
			return fmt.Errorf("position coordinate %s exceeds %d characters", coordinate, positionCoordinateMaxLength)
		}
		assignment.PositionCoordinate = nullString(coordinate)
	}
	if req.Notes != nil {
		assignment.Notes = nullString(*req.Notes)
	}

	if err := s.storage.UpdateAssignment(ctx, assignment); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return ErrLocationConflict
		}
		s.logger.Error("failed to update assignment metadata", zap.Int64("sample_item_id", req.SampleItemID), zap.Error(err))
		return err
	}
	return nil
}

func (s *storageService) GetSampleLocation(ctx context.Context, sampleItemID int64) (*SampleLocationResponse, error) {
	assignment, err := s.storage.GetAssignmentBySampleItem(ctx, sampleItemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sample item %d has no assignment", sampleItemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	path, err := s.locationSvc.BuildHierarchicalPath(ctx, assignment.Ref())
	if err != nil {
		return nil, err
	}
	return &SampleLocationResponse{Assignment: assignment, Path: path}, nil
}

func (s *storageService) ListMovements(ctx context.Context, sampleItemID int64) ([]*domain.SampleStorageMovement, error) {
	movements, err := s.storage.ListMovementsBySampleItem(ctx, sampleItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	return movements, nil
}

// ============================================
// 目标位置校验
// ============================================

// validateTarget 分配/移动共用的目标校验：
// 位置类型限定 device/shelf/rack；坐标 ≤50 字符；
// 目标节点完整祖先链必须满足最小深度（Room+Device）且逐级 active
func (s *storageService) validateTarget(ctx context.Context, locationType string, locationID int64, coordinate string) (domain.LocationRef, error) {
	lt, err := domain.ParseLocationType(locationType)
	if err != nil {
		return domain.LocationRef{}, err
	}
	coordinate = strings.ToUpper(strings.TrimSpace(coordinate))
	if len(coordinate) > positionCoordinateMaxLength {
		return domain.LocationRef{}, fmt.Errorf("position coordinate %s exceeds %d characters", coordinate, positionCoordinateMaxLength)
	}

	checkDeviceChain := func(deviceID int64) error {
		device, err := s.locations.GetDevice(ctx, deviceID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("device %d not found", deviceID)
		}
		if err != nil {
			return fmt.Errorf("failed to get device: %w", err)
		}
		if !device.Active {
			return fmt.Errorf("device %s is not active", device.Code)
		}
		room, err := s.locations.GetRoom(ctx, device.RoomID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("room %d not found for device %s", device.RoomID, device.Code)
		}
		if err != nil {
			return fmt.Errorf("failed to get room: %w", err)
		}
		if !room.Active {
			return fmt.Errorf("room %s is not active", room.Code)
		}
		return nil
	}

	switch lt {
	case domain.LocationTypeDevice:
		if err := checkDeviceChain(locationID); err != nil {
			return domain.LocationRef{}, err
		}
	case domain.LocationTypeShelf:
		shelf, err := s.locations.GetShelf(ctx, locationID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.LocationRef{}, fmt.Errorf("shelf %d not found", locationID)
		}
		if err != nil {
			return domain.LocationRef{}, fmt.Errorf("failed to get shelf: %w", err)
		}
		if !shelf.Active {
			return domain.LocationRef{}, fmt.Errorf("shelf %s is not active", shelf.Label)
		}
		if err := checkDeviceChain(shelf.DeviceID); err != nil {
			return domain.LocationRef{}, err
		}
	case domain.LocationTypeRack:
		rack, err := s.locations.GetRack(ctx, locationID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.LocationRef{}, fmt.Errorf("rack %d not found", locationID)
		}
		if err != nil {
			return domain.LocationRef{}, fmt.Errorf("failed to get rack: %w", err)
		}
		if !rack.Active {
			return domain.LocationRef{}, fmt.Errorf("rack %s is not active", rack.Label)
		}
		shelf, err := s.locations.GetShelf(ctx, rack.ShelfID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.LocationRef{}, fmt.Errorf("shelf %d not found for rack %s", rack.ShelfID, rack.Label)
		}
		if err != nil {
			return domain.LocationRef{}, fmt.Errorf("failed to get shelf: %w", err)
		}
		if !shelf.Active {
			return domain.LocationRef{}, fmt.Errorf("shelf %s is not active", shelf.Label)
		}
		if err := checkDeviceChain(shelf.DeviceID); err != nil {
			return domain.LocationRef{}, err
		}
	}

	ref := domain.LocationRef{Type: lt, ID: locationID}
	if coordinate != "" {
		ref.Coordinate = sql.NullString{String: coordinate, Valid: true}
	}
	return ref, nil
}

// capacityWarningFor 目标本身有容量告警则返回；rack 无告警时退回其所在 shelf 的告警
func (s *storageService) capacityWarningFor(ctx context.Context, ref domain.LocationRef) (string, error) {
	info, err := s.locationSvc.CalculateCapacity(ctx, ref)
	if err != nil {
		return "", err
	}
	if info.Warning != "" || ref.Type != domain.LocationTypeRack {
		return info.Warning, nil
	}
	rack, err := s.locations.GetRack(ctx, ref.ID)
	if err != nil {
		return "", nil
	}
	shelfInfo, err := s.locationSvc.CalculateCapacity(ctx, domain.LocationRef{Type: domain.LocationTypeShelf, ID: rack.ShelfID})
	if err != nil {
		return "", err
	}
	return shelfInfo.Warning, nil
}
