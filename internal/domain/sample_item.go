package domain

import (
	"database/sql"
)

// 样本状态
const (
	SampleStatusActive   = "active"
	SampleStatusDisposed = "disposed" // 终止状态，不可逆
)

// SampleItem 样本条目（外部实体的最小投影，对应 sample_items 表）
// 本服务只关心 status（处置判断）和 accession_number（展示）
type SampleItem struct {
	SampleItemID    int64          `db:"sample_item_id"`
	AccessionNumber string         `db:"accession_number"`
	Status          string         `db:"status"`
	DisposalMethod  sql.NullString `db:"disposal_method"` // 处置时写入
	ExternalID      string         `db:"external_id"`
	UpdatedAt       sql.NullTime   `db:"updated_at"`
}
