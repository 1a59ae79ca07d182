package repository

import (
	"context"

	"biobank-data/internal/domain"
)

// StorageRepository 样本分配/移动Repository接口
// 分配记录按 version 做乐观锁：UpdateAssignment 在版本过期时返回 ErrVersionConflict
type StorageRepository interface {
	// Assignment 操作（每个样本最多一条）
	GetAssignmentBySampleItem(ctx context.Context, sampleItemID int64) (*domain.SampleStorageAssignment, error)
	CreateAssignment(ctx context.Context, a *domain.SampleStorageAssignment) (int64, error)
	UpdateAssignment(ctx context.Context, a *domain.SampleStorageAssignment) error
	DeleteAssignment(ctx context.Context, assignmentID int64) error
	CountAssignments(ctx context.Context) (int, error)

	// Movement 操作（只追加，永不更新/删除）
	AppendMovement(ctx context.Context, m *domain.SampleStorageMovement) (int64, error)
	ListMovementsBySampleItem(ctx context.Context, sampleItemID int64) ([]*domain.SampleStorageMovement, error)

	// SampleItem 操作（外部实体的最小投影）
	GetSampleItem(ctx context.Context, sampleItemID int64) (*domain.SampleItem, error)
	UpdateSampleItemStatus(ctx context.Context, sampleItemID int64, status string, disposalMethod string) error
}
