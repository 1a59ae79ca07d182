package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"biobank-data/internal/domain"
	"biobank-data/internal/repository"
)

// 首次分配：恰好一条分配 + 一条审计行，previous 全为 NULL
func TestStorageService_AssignCreatesSingleMovement(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	env.seedSample(1, domain.SampleStatusActive)
	ctx := context.Background()

	resp, err := env.storSvc.Assign(ctx, &AssignRequest{
		SampleItemID:       1,
		LocationID:         ids.RackID,
		LocationType:       "rack",
		PositionCoordinate: "a5",
	})
	require.NoError(t, err)
	require.Equal(t, "Main Lab > Freezer 01 > SHA > RKR1 > Position A5", resp.Path)

	count, err := env.storage.CountAssignments(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	movements, err := env.storSvc.ListMovements(ctx, 1)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	m := movements[0]
	require.False(t, m.PrevLocationID.Valid)
	require.False(t, m.PrevLocationType.Valid)
	require.True(t, m.NewLocationID.Valid)
	require.Equal(t, ids.RackID, m.NewLocationID.Int64)
	require.Equal(t, "rack", m.NewLocationType.String)
	require.Equal(t, "A5", m.NewPositionCoordinate.String)
}

func TestStorageService_AssignRejectsAlreadyAssigned(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	env.seedSample(1, domain.SampleStatusActive)
	ctx := context.Background()

	_, err := env.storSvc.Assign(ctx, &AssignRequest{
		SampleItemID: 1, LocationID: ids.RackID, LocationType: "rack",
	})
	require.NoError(t, err)

	_, err = env.storSvc.Assign(ctx, &AssignRequest{
		SampleItemID: 1, LocationID: ids.DeviceID, LocationType: "device",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "use move instead")
}

func TestStorageService_AssignRejectsDisposedSample(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	env.seedSample(2, domain.SampleStatusDisposed)
	ctx := context.Background()

	_, err := env.storSvc.Assign(ctx, &AssignRequest{
		SampleItemID: 2, LocationID: ids.RackID, LocationType: "rack",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "disposed and cannot be assigned")
}

func TestStorageService_AssignRejectsPositionType(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	env.seedSample(1, domain.SampleStatusActive)
	ctx := context.Background()

	_, err := env.storSvc.Assign(ctx, &AssignRequest{
		SampleItemID: 1, LocationID: ids.PositionID, LocationType: "position",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "use device, shelf or rack with position_coordinate")
}

// 祖先链 active 校验：Room 停用后整棵子树拒绝分配
func TestStorageService_AssignRejectsInactiveAncestor(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	env.seedSample(1, domain.SampleStatusActive)
	ctx := context.Background()

	room, err := env.locations.GetRoom(ctx, ids.RoomID)
	require.NoError(t, err)
	room.Active = false
	require.NoError(t, env.locations.UpdateRoom(ctx, ids.RoomID, room))

	_, err = env.storSvc.Assign(ctx, &AssignRequest{
		SampleItemID: 1, LocationID: ids.RackID, LocationType: "rack",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "room MAIN is not active")
}

// 移动：原地更新同一条分配，审计行 previous 为更新前的位置
func TestStorageService_MoveUpdatesInPlace(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	env.seedSample(1, domain.SampleStatusActive)
	ctx := context.Background()

	_, err := env.storSvc.Assign(ctx, &AssignRequest{
		SampleItemID: 1, LocationID: ids.RackID, LocationType: "rack", PositionCoordinate: "A5",
	})
	require.NoError(t, err)

	resp, err := env.storSvc.Move(ctx, &MoveRequest{
		SampleItemID: 1, LocationID: ids.ShelfID, LocationType: "shelf",
		Reason: "rack defrost",
	})
	require.NoError(t, err)
	require.Equal(t, "Main Lab > Freezer 01 > SHA", resp.Path)

	count, err := env.storage.CountAssignments(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	assignment, err := env.storage.GetAssignmentBySampleItem(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, ids.ShelfID, assignment.LocationID)
	require.Equal(t, domain.LocationTypeShelf, assignment.LocationType)
	require.Equal(t, int64(2), assignment.Version)

	movements, err := env.storSvc.ListMovements(ctx, 1)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	// 新的在前
	m := movements[0]
	require.Equal(t, ids.RackID, m.PrevLocationID.Int64)
	require.Equal(t, "rack", m.PrevLocationType.String)
	require.Equal(t, "A5", m.PrevPositionCoordinate.String)
	require.Equal(t, ids.ShelfID, m.NewLocationID.Int64)
	require.Equal(t, "shelf", m.NewLocationType.String)
	require.Equal(t, "rack defrost", m.Reason.String)
}

// 版本守卫的存储层契约：持旧版本副本写入被拒
func TestStorageService_StaleWriteRejectedByRepo(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	env.seedSample(1, domain.SampleStatusActive)
	ctx := context.Background()

	resp, err := env.storSvc.Assign(ctx, &AssignRequest{
		SampleItemID: 1, LocationID: ids.RackID, LocationType: "rack",
	})
	require.NoError(t, err)

	// 读到旧版本后被并发写抬高
	stale, err := env.storage.GetAssignmentBySampleItem(ctx, 1)
	require.NoError(t, err)
	env.storage.BumpAssignmentVersion(resp.AssignmentID)

	stale.LocationID = ids.ShelfID
	stale.LocationType = domain.LocationTypeShelf
	err = env.storage.UpdateAssignment(ctx, stale)
	require.ErrorIs(t, err, repository.ErrVersionConflict)
}

// staleWriteStorageRepo 读写之间总被并发写抢先的存储层
type staleWriteStorageRepo struct {
	repository.StorageRepository
}

func (r *staleWriteStorageRepo) UpdateAssignment(_ context.Context, _ *domain.SampleStorageAssignment) error {
	return repository.ErrVersionConflict
}

// 并发写冲突翻译为 ErrLocationConflict
func TestStorageService_MoveVersionConflict(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	env.seedSample(1, domain.SampleStatusActive)
	ctx := context.Background()

	_, err := env.storSvc.Assign(ctx, &AssignRequest{
		SampleItemID: 1, LocationID: ids.RackID, LocationType: "rack",
	})
	require.NoError(t, err)

	conflicted := NewStorageService(
		&staleWriteStorageRepo{StorageRepository: env.storage},
		env.locations, env.locSvc, NoopLimsNotifier{}, zap.NewNop(),
	)

	_, err = conflicted.Move(ctx, &MoveRequest{
		SampleItemID: 1, LocationID: ids.ShelfID, LocationType: "shelf",
	})
	require.ErrorIs(t, err, ErrLocationConflict)

	notes := "relabel"
	err = conflicted.UpdateMetadata(ctx, &UpdateMetadataRequest{
		SampleItemID: 1, Notes: &notes,
	})
	require.ErrorIs(t, err, ErrLocationConflict)
}

// 操作人缺省的移动保留最初分配人，显式传入时才覆盖
func TestStorageService_MoveKeepsAssignerWhenMoverAbsent(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	env.seedSample(1, domain.SampleStatusActive)
	ctx := context.Background()

	assigner := int64(7)
	_, err := env.storSvc.Assign(ctx, &AssignRequest{
		SampleItemID: 1, LocationID: ids.RackID, LocationType: "rack",
		AssignedByUserID: &assigner,
	})
	require.NoError(t, err)

	_, err = env.storSvc.Move(ctx, &MoveRequest{
		SampleItemID: 1, LocationID: ids.ShelfID, LocationType: "shelf",
	})
	require.NoError(t, err)

	assignment, err := env.storage.GetAssignmentBySampleItem(ctx, 1)
	require.NoError(t, err)
	require.True(t, assignment.AssignedByUserID.Valid)
	require.Equal(t, int64(7), assignment.AssignedByUserID.Int64)

	mover := int64(9)
	_, err = env.storSvc.Move(ctx, &MoveRequest{
		SampleItemID: 1, LocationID: ids.RackID, LocationType: "rack",
		MovedByUserID: &mover,
	})
	require.NoError(t, err)

	assignment, err = env.storage.GetAssignmentBySampleItem(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(9), assignment.AssignedByUserID.Int64)
}

// 处置：删分配、写审计行（new 全 NULL），reason 带 method 后缀
func TestStorageService_Dispose(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	env.seedSample(1, domain.SampleStatusActive)
	ctx := context.Background()

	_, err := env.storSvc.Assign(ctx, &AssignRequest{
		SampleItemID: 1, LocationID: ids.RackID, LocationType: "rack", PositionCoordinate: "A5",
	})
	require.NoError(t, err)

	err = env.storSvc.Dispose(ctx, &DisposeRequest{
		SampleItemID: 1, Reason: "study closed", Method: "incineration",
	})
	require.NoError(t, err)

	_, err = env.storage.GetAssignmentBySampleItem(ctx, 1)
	require.ErrorIs(t, err, sql.ErrNoRows)

	sample, err := env.storage.GetSampleItem(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, domain.SampleStatusDisposed, sample.Status)
	require.Equal(t, "incineration", sample.DisposalMethod.String)

	movements, err := env.storSvc.ListMovements(ctx, 1)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	m := movements[0]
	require.Equal(t, ids.RackID, m.PrevLocationID.Int64)
	require.Equal(t, "rack", m.PrevLocationType.String)
	require.False(t, m.NewLocationID.Valid)
	require.False(t, m.NewLocationType.Valid)
	require.False(t, m.NewPositionCoordinate.Valid)
	require.Equal(t, "study closed (method: incineration)", m.Reason.String)
}

func TestStorageService_DisposeRejectsAlreadyDisposed(t *testing.T) {
	env := newTestEnv(t)
	env.seedHierarchy(t)
	env.seedSample(1, domain.SampleStatusDisposed)
	ctx := context.Background()

	err := env.storSvc.Dispose(ctx, &DisposeRequest{
		SampleItemID: 1, Reason: "cleanup", Method: "autoclave",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "already disposed")
}

// reason/method 缺失时在任何写入前就失败
func TestStorageService_DisposeRequiresReasonAndMethod(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	env.seedSample(1, domain.SampleStatusActive)
	ctx := context.Background()

	_, err := env.storSvc.Assign(ctx, &AssignRequest{
		SampleItemID: 1, LocationID: ids.RackID, LocationType: "rack",
	})
	require.NoError(t, err)

	err = env.storSvc.Dispose(ctx, &DisposeRequest{SampleItemID: 1, Method: "autoclave"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "disposal reason is required")

	err = env.storSvc.Dispose(ctx, &DisposeRequest{SampleItemID: 1, Reason: "cleanup"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "disposal method is required")

	// 样本仍未处置，分配仍在
	sample, err := env.storage.GetSampleItem(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, domain.SampleStatusActive, sample.Status)
	count, err := env.storage.CountAssignments(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

// 无分配的样本也能处置，只改状态，不写审计行
func TestStorageService_DisposeWithoutAssignment(t *testing.T) {
	env := newTestEnv(t)
	env.seedHierarchy(t)
	env.seedSample(1, domain.SampleStatusActive)
	ctx := context.Background()

	err := env.storSvc.Dispose(ctx, &DisposeRequest{
		SampleItemID: 1, Reason: "never stored", Method: "autoclave",
	})
	require.NoError(t, err)

	movements, err := env.storSvc.ListMovements(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, movements)
}

// 元数据更新不产生审计行
func TestStorageService_UpdateMetadataNoMovement(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	env.seedSample(1, domain.SampleStatusActive)
	ctx := context.Background()

	_, err := env.storSvc.Assign(ctx, &AssignRequest{
		SampleItemID: 1, LocationID: ids.RackID, LocationType: "rack", PositionCoordinate: "A5",
	})
	require.NoError(t, err)

	coord := "b7"
	notes := "relabeled"
	err = env.storSvc.UpdateMetadata(ctx, &UpdateMetadataRequest{
		SampleItemID: 1, PositionCoordinate: &coord, Notes: &notes,
	})
	require.NoError(t, err)

	assignment, err := env.storage.GetAssignmentBySampleItem(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "B7", assignment.PositionCoordinate.String)
	require.Equal(t, "relabeled", assignment.Notes.String)

	movements, err := env.storSvc.ListMovements(ctx, 1)
	require.NoError(t, err)
	require.Len(t, movements, 1)
}

func TestStorageService_GetSampleLocation(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedHierarchy(t)
	env.seedSample(1, domain.SampleStatusActive)
	ctx := context.Background()

	_, err := env.storSvc.Assign(ctx, &AssignRequest{
		SampleItemID: 1, LocationID: ids.DeviceID, LocationType: "device",
	})
	require.NoError(t, err)

	loc, err := env.storSvc.GetSampleLocation(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "Main Lab > Freezer 01", loc.Path)
	require.Equal(t, domain.LocationTypeDevice, loc.Assignment.LocationType)

	_, err = env.storSvc.GetSampleLocation(ctx, 99)
	require.Error(t, err)
	require.Contains(t, err.Error(), "has no assignment")
}
