package repository

import (
	"context"
	"database/sql"
	"fmt"

	"biobank-data/internal/domain"
)

type PostgresStorageRepository struct {
	db *sql.DB
}

func NewPostgresStorageRepository(db *sql.DB) *PostgresStorageRepository {
	return &PostgresStorageRepository{db: db}
}

// ============================================
// Assignment 操作
// ============================================

const assignmentColumns = `
	assignment_id,
	sample_item_id,
	location_id,
	location_type,
	position_coordinate,
	notes,
	assigned_by_user_id,
	assigned_date,
	version`

func scanAssignment(row interface{ Scan(...any) error }) (*domain.SampleStorageAssignment, error) {
	var a domain.SampleStorageAssignment
	if err := row.Scan(
		&a.AssignmentID,
		&a.SampleItemID,
		&a.LocationID,
		&a.LocationType,
		&a.PositionCoordinate,
		&a.Notes,
		&a.AssignedByUserID,
		&a.AssignedDate,
		&a.Version,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PostgresStorageRepository) GetAssignmentBySampleItem(ctx context.Context, sampleItemID int64) (*domain.SampleStorageAssignment, error) {
	return scanAssignment(r.db.QueryRowContext(ctx,
		`SELECT`+assignmentColumns+`
		 FROM sample_storage_assignments
		 WHERE sample_item_id = $1`, sampleItemID))
}

func (r *PostgresStorageRepository) CreateAssignment(ctx context.Context, a *domain.SampleStorageAssignment) (int64, error) {
	var assignmentID int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO sample_storage_assignments
		   (sample_item_id, location_id, location_type, position_coordinate, notes, assigned_by_user_id, assigned_date, version)
		 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, CURRENT_TIMESTAMP), 1)
		 RETURNING assignment_id`,
		a.SampleItemID, a.LocationID, a.LocationType,
		a.PositionCoordinate, a.Notes, a.AssignedByUserID, a.AssignedDate,
	).Scan(&assignmentID)
	if err != nil {
		return 0, fmt.Errorf("failed to create assignment: %w", err)
	}
	return assignmentID, nil
}

// UpdateAssignment 乐观锁更新：version 不匹配时返回 ErrVersionConflict
func (r *PostgresStorageRepository) UpdateAssignment(ctx context.Context, a *domain.SampleStorageAssignment) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sample_storage_assignments
		 SET location_id = $1, location_type = $2, position_coordinate = $3,
		     notes = $4, assigned_by_user_id = $5, assigned_date = $6,
		     version = version + 1
		 WHERE assignment_id = $7 AND version = $8`,
		a.LocationID, a.LocationType, a.PositionCoordinate,
		a.Notes, a.AssignedByUserID, a.AssignedDate,
		a.AssignmentID, a.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM sample_storage_assignments WHERE assignment_id = $1)`,
			a.AssignmentID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrVersionConflict
		}
		return sql.ErrNoRows
	}
	a.Version++
	return nil
}

func (r *PostgresStorageRepository) DeleteAssignment(ctx context.Context, assignmentID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sample_storage_assignments WHERE assignment_id = $1`, assignmentID)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresStorageRepository) CountAssignments(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sample_storage_assignments`).Scan(&n)
	return n, err
}

// ============================================
// Movement 操作
// ============================================

const movementColumns = `
	movement_id,
	sample_item_id,
	prev_location_id,
	prev_location_type,
	prev_position_coordinate,
	new_location_id,
	new_location_type,
	new_position_coordinate,
	reason,
	moved_by_user_id,
	movement_date`

func (r *PostgresStorageRepository) AppendMovement(ctx context.Context, m *domain.SampleStorageMovement) (int64, error) {
	var movementID int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO sample_storage_movements
		   (sample_item_id,
		    prev_location_id, prev_location_type, prev_position_coordinate,
		    new_location_id, new_location_type, new_position_coordinate,
		    reason, moved_by_user_id, movement_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, CURRENT_TIMESTAMP))
		 RETURNING movement_id`,
		m.SampleItemID,
		m.PrevLocationID, m.PrevLocationType, m.PrevPositionCoordinate,
		m.NewLocationID, m.NewLocationType, m.NewPositionCoordinate,
		m.Reason, m.MovedByUserID, m.MovementDate,
	).Scan(&movementID)
	if err != nil {
		return 0, fmt.Errorf("failed to append movement: %w", err)
	}
	return movementID, nil
}

func (r *PostgresStorageRepository) ListMovementsBySampleItem(ctx context.Context, sampleItemID int64) ([]*domain.SampleStorageMovement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+movementColumns+`
		 FROM sample_storage_movements
		 WHERE sample_item_id = $1
		 ORDER BY movement_id DESC`, sampleItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.SampleStorageMovement{}
	for rows.Next() {
		var m domain.SampleStorageMovement
		if err := rows.Scan(
			&m.MovementID,
			&m.SampleItemID,
			&m.PrevLocationID,
			&m.PrevLocationType,
			&m.PrevPositionCoordinate,
			&m.NewLocationID,
			&m.NewLocationType,
			&m.NewPositionCoordinate,
			&m.Reason,
			&m.MovedByUserID,
			&m.MovementDate,
		); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// ============================================
// SampleItem 操作
// ============================================

func (r *PostgresStorageRepository) GetSampleItem(ctx context.Context, sampleItemID int64) (*domain.SampleItem, error) {
	var s domain.SampleItem
	err := r.db.QueryRowContext(ctx,
		`SELECT sample_item_id, accession_number, status, disposal_method, external_id::text, updated_at
		 FROM sample_items
		 WHERE sample_item_id = $1`, sampleItemID,
	).Scan(
		&s.SampleItemID,
		&s.AccessionNumber,
		&s.Status,
		&s.DisposalMethod,
		&s.ExternalID,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresStorageRepository) UpdateSampleItemStatus(ctx context.Context, sampleItemID int64, status string, disposalMethod string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sample_items
		 SET status = $1, disposal_method = NULLIF($2, ''), updated_at = CURRENT_TIMESTAMP
		 WHERE sample_item_id = $3`,
		status, disposalMethod, sampleItemID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sample item status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
