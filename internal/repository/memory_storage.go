package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"biobank-data/internal/domain"
)

// MemoryStorageRepo: 分配/移动记录的内存实现（联测和单元测试用）
// UpdateAssignment 模拟行级乐观锁：版本不匹配时返回 ErrVersionConflict
type MemoryStorageRepo struct {
	mu sync.RWMutex

	nextID      int64
	assignments map[int64]domain.SampleStorageAssignment // assignmentID -> row
	movements   []domain.SampleStorageMovement
	sampleItems map[int64]domain.SampleItem
}

func NewMemoryStorageRepo() *MemoryStorageRepo {
	return &MemoryStorageRepo{
		assignments: map[int64]domain.SampleStorageAssignment{},
		sampleItems: map[int64]domain.SampleItem{},
	}
}

func (r *MemoryStorageRepo) allocID() int64 {
	r.nextID++
	return r.nextID
}

// SeedSampleItem 测试/联测用：预置样本条目
func (r *MemoryStorageRepo) SeedSampleItem(item domain.SampleItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sampleItems[item.SampleItemID] = item
}

// snapshotAssignments 占用计数用（MemoryLocationsRepo.BindStorage）
func (r *MemoryStorageRepo) snapshotAssignments() []domain.SampleStorageAssignment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.SampleStorageAssignment, 0, len(r.assignments))
	for _, a := range r.assignments {
		out = append(out, a)
	}
	return out
}

// ---- Assignments ----

func (r *MemoryStorageRepo) GetAssignmentBySampleItem(_ context.Context, sampleItemID int64) (*domain.SampleStorageAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id := range r.assignments {
		a := r.assignments[id]
		if a.SampleItemID == sampleItemID {
			return &a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *MemoryStorageRepo) CreateAssignment(_ context.Context, a *domain.SampleStorageAssignment) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.allocID()
	stored := *a
	stored.AssignmentID = id
	stored.Version = 1
	if !stored.AssignedDate.Valid {
		stored.AssignedDate = sql.NullTime{Time: time.Now(), Valid: true}
	}
	r.assignments[id] = stored
	return id, nil
}

func (r *MemoryStorageRepo) UpdateAssignment(_ context.Context, a *domain.SampleStorageAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.assignments[a.AssignmentID]
	if !ok {
		return sql.ErrNoRows
	}
	if stored.Version != a.Version {
		return ErrVersionConflict
	}
	stored.LocationID = a.LocationID
	stored.LocationType = a.LocationType
	stored.PositionCoordinate = a.PositionCoordinate
	stored.Notes = a.Notes
	stored.AssignedByUserID = a.AssignedByUserID
	stored.Version++
	r.assignments[a.AssignmentID] = stored
	return nil
}

func (r *MemoryStorageRepo) DeleteAssignment(_ context.Context, assignmentID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assignments[assignmentID]; !ok {
		return sql.ErrNoRows
	}
	delete(r.assignments, assignmentID)
	return nil
}

func (r *MemoryStorageRepo) CountAssignments(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assignments), nil
}

// BumpAssignmentVersion 测试用：模拟并发写把版本抬高
func (r *MemoryStorageRepo) BumpAssignmentVersion(assignmentID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.assignments[assignmentID]; ok {
		a.Version++
		r.assignments[assignmentID] = a
	}
}

// ---- Movements ----

func (r *MemoryStorageRepo) AppendMovement(_ context.Context, m *domain.SampleStorageMovement) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.allocID()
	stored := *m
	stored.MovementID = id
	if !stored.MovementDate.Valid {
		stored.MovementDate = sql.NullTime{Time: time.Now(), Valid: true}
	}
	r.movements = append(r.movements, stored)
	return id, nil
}

func (r *MemoryStorageRepo) ListMovementsBySampleItem(_ context.Context, sampleItemID int64) ([]*domain.SampleStorageMovement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*domain.SampleStorageMovement{}
	for i := range r.movements {
		if r.movements[i].SampleItemID == sampleItemID {
			m := r.movements[i]
			out = append(out, &m)
		}
	}
	// 新的在前
	sort.Slice(out, func(i, j int) bool { return out[i].MovementID > out[j].MovementID })
	return out, nil
}

// ---- SampleItems ----

func (r *MemoryStorageRepo) GetSampleItem(_ context.Context, sampleItemID int64) (*domain.SampleItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.sampleItems[sampleItemID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

func (r *MemoryStorageRepo) UpdateSampleItemStatus(_ context.Context, sampleItemID int64, status string, disposalMethod string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.sampleItems[sampleItemID]
	if !ok {
		return sql.ErrNoRows
	}
	item.Status = status
	if disposalMethod != "" {
		item.DisposalMethod = sql.NullString{String: disposalMethod, Valid: true}
	}
	item.UpdatedAt = sql.NullTime{Time: time.Now(), Valid: true}
	r.sampleItems[sampleItemID] = item
	return nil
}
