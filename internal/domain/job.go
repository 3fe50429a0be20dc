package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus is the job lifecycle: open → picked → awaiting_verification → closed.
type JobStatus string

const (
	JobOpen                 JobStatus = "open"
	JobPicked               JobStatus = "picked"
	JobAwaitingVerification JobStatus = "awaiting_verification"
	JobClosed               JobStatus = "closed"
)

var jobTransitions = map[JobStatus]JobStatus{
	JobOpen:                 JobPicked,
	JobPicked:               JobAwaitingVerification,
	JobAwaitingVerification: JobClosed,
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobOpen, JobPicked, JobAwaitingVerification, JobClosed:
		return true
	}
	return false
}

// Next returns the status that follows s, if any.
func (s JobStatus) Next() (JobStatus, bool) {
	n, ok := jobTransitions[s]
	return n, ok
}

// Job is a unit of work posted by a company. UpfrontAmount is in minor currency units.
type Job struct {
	JobID                   uuid.UUID  `gorm:"column:job_id;type:uuid;primaryKey" json:"job_id"`
	CompanyID               uuid.UUID  `gorm:"column:company_id;type:uuid;not null;index" json:"company_id"`
	Title                   string     `gorm:"column:title;not null" json:"title"`
	Description             string     `gorm:"column:description" json:"description"`
	UpfrontAmount           uint64     `gorm:"column:upfront_amount;not null" json:"upfront_amount"`
	TokenAmount             uint64     `gorm:"column:token_amount;not null" json:"token_amount"`
	DeveloperID             *uuid.UUID `gorm:"column:developer_id;type:uuid;index" json:"developer_id"`
	Status                  JobStatus  `gorm:"column:status;type:varchar(32);not null;default:open" json:"status"`
	DeveloperMarkedComplete bool       `gorm:"column:developer_marked_complete;not null;default:false" json:"developer_marked_complete"`
	CreatedAt               time.Time  `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt               time.Time  `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Job) TableName() string {
	return "Jobs"
}

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.JobID == uuid.Nil {
		j.JobID = uuid.New()
	}
	if j.Status == "" {
		j.Status = JobOpen
	}
	return nil
}
