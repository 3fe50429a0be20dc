package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Settlement records a confirmed atomic settlement of a job.
type Settlement struct {
	SettlementID   uuid.UUID      `gorm:"column:settlement_id;type:uuid;primaryKey" json:"settlement_id"`
	JobID          uuid.UUID      `gorm:"column:job_id;type:uuid;not null;index" json:"job_id"`
	CompanyID      uuid.UUID      `gorm:"column:company_id;type:uuid;not null;index" json:"company_id"`
	DeveloperID    uuid.UUID      `gorm:"column:developer_id;type:uuid;not null;index" json:"developer_id"`
	CashAmount     uint64         `gorm:"column:cash_amount;not null" json:"cash_amount"`
	TokenAmount    uint64         `gorm:"column:token_amount;not null" json:"token_amount"`
	TokenPrice     uint64         `gorm:"column:token_price;not null" json:"token_price"`
	GroupID        string         `gorm:"column:group_id" json:"group_id"`
	TxIDs          datatypes.JSON `gorm:"column:tx_ids" json:"tx_ids"`
	ConfirmedRound uint64         `gorm:"column:confirmed_round" json:"confirmed_round"`
	CreatedAt      time.Time      `gorm:"column:createdAt" json:"createdAt"`
}

func (Settlement) TableName() string {
	return "Settlements"
}

func (s *Settlement) BeforeCreate(tx *gorm.DB) error {
	if s.SettlementID == uuid.Nil {
		s.SettlementID = uuid.New()
	}
	return nil
}

// PriceRefreshRun records one pass of the periodic price refresh.
type PriceRefreshRun struct {
	RunID      uuid.UUID      `gorm:"column:run_id;type:uuid;primaryKey" json:"run_id"`
	StartedAt  time.Time      `gorm:"column:started_at;not null" json:"started_at"`
	FinishedAt time.Time      `gorm:"column:finished_at;not null" json:"finished_at"`
	Updated    int            `gorm:"column:updated;not null" json:"updated"`
	Failed     int            `gorm:"column:failed;not null" json:"failed"`
	Results    datatypes.JSON `gorm:"column:results" json:"results"`
}

func (PriceRefreshRun) TableName() string {
	return "PriceRefreshRuns"
}

func (r *PriceRefreshRun) BeforeCreate(tx *gorm.DB) error {
	if r.RunID == uuid.Nil {
		r.RunID = uuid.New()
	}
	return nil
}
