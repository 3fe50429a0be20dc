package jobs

import (
	"context"
	"errors"
	"strings"

	"ventry-backend/internal/domain"
	"ventry-backend/internal/pkg/logging"
	"ventry-backend/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrJobNotFound         = errors.New("job not found")
	ErrCompanyNotFound     = errors.New("company not found")
	ErrCompanyNotOnboarded = errors.New("complete company setup first")
	ErrDeveloperNotFound   = errors.New("developer not found")
	ErrTitleRequired       = errors.New("title is required")
	ErrInvalidTokenAmount  = errors.New("token amount must be positive and within supply")
	ErrInvalidUpfront      = errors.New("upfront amount must be a non-negative number")
	ErrJobUnavailable      = errors.New("job not available to pick up")
	ErrCannotComplete      = errors.New("cannot mark this job as completed")
)

type Service struct {
	DB *gorm.DB
}

// CreateInput describes a new job. Upfront is in major currency units.
type CreateInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Upfront     decimal.Decimal `json:"upfront"`
	TokenAmount uint64          `json:"token_amount"`
}

// View is a job joined with its company.
type View struct {
	domain.Job    `gorm:"embedded"`
	CompanyName   string `gorm:"column:company_name" json:"company_name"`
	CompanySupply uint64 `gorm:"column:company_supply" json:"company_supply"`
}

// Create posts a job for an onboarded company.
func (s *Service) Create(ctx context.Context, companyID uuid.UUID, in CreateInput) (*domain.Job, error) {
	var company domain.Company
	if err := s.DB.WithContext(ctx).Where("company_id = ?", companyID).First(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}
	if !company.Onboarded() {
		return nil, ErrCompanyNotOnboarded
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if in.TokenAmount == 0 || in.TokenAmount > company.Supply {
		return nil, ErrInvalidTokenAmount
	}
	upfront, err := pricing.ToMinor(in.Upfront)
	if err != nil {
		return nil, ErrInvalidUpfront
	}

	job := domain.Job{
		CompanyID:     companyID,
		Title:         title,
		Description:   strings.TrimSpace(in.Description),
		UpfrontAmount: upfront,
		TokenAmount:   in.TokenAmount,
		Status:        domain.JobOpen,
	}
	if err := s.DB.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info().Str("job_id", job.JobID.String()).Str("company_id", companyID.String()).Msg("job created")
	return &job, nil
}

// Pickup assigns an open job to a developer.
func (s *Service) Pickup(ctx context.Context, jobID, developerID uuid.UUID) (*domain.Job, error) {
	db := s.DB.WithContext(ctx)
	var dev domain.Account
	if err := db.Where("account_id = ? AND role = ?", developerID, domain.RoleDeveloper).First(&dev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeveloperNotFound
		}
		return nil, err
	}

	res := db.Model(&domain.Job{}).
		Where("job_id = ? AND status = ?", jobID, domain.JobOpen).
		Updates(map[string]any{"developer_id": developerID, "status": domain.JobPicked})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, s.missingOr(ctx, jobID, ErrJobUnavailable)
	}
	return s.job(ctx, jobID)
}

// Complete marks a picked job as done by its assigned developer.
func (s *Service) Complete(ctx context.Context, jobID, developerID uuid.UUID) (*domain.Job, error) {
	res := s.DB.WithContext(ctx).Model(&domain.Job{}).
		Where("job_id = ? AND status = ? AND developer_id = ?", jobID, domain.JobPicked, developerID).
		Updates(map[string]any{"developer_marked_complete": true, "status": domain.JobAwaitingVerification})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, s.missingOr(ctx, jobID, ErrCannotComplete)
	}
	return s.job(ctx, jobID)
}

// Get returns a job with its company name.
func (s *Service) Get(ctx context.Context, jobID uuid.UUID) (*View, error) {
	var views []View
	if err := s.views(ctx).Where("j.job_id = ?", jobID).Limit(1).Scan(&views).Error; err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, ErrJobNotFound
	}
	return &views[0], nil
}

// ListOpen returns every open job, newest first.
func (s *Service) ListOpen(ctx context.Context) ([]View, error) {
	views := []View{}
	err := s.views(ctx).Where("j.status = ?", domain.JobOpen).Scan(&views).Error
	return views, err
}

// ListForCompany returns a company's jobs in every status, newest first.
func (s *Service) ListForCompany(ctx context.Context, companyID uuid.UUID) ([]View, error) {
	views := []View{}
	err := s.views(ctx).Where("j.company_id = ?", companyID).Scan(&views).Error
	return views, err
}

// ListCurrent returns the jobs a developer is working on or waiting to be paid for.
func (s *Service) ListCurrent(ctx context.Context, developerID uuid.UUID) ([]View, error) {
	views := []View{}
	err := s.views(ctx).
		Where("j.developer_id = ? AND j.status IN ?", developerID,
			[]domain.JobStatus{domain.JobPicked, domain.JobAwaitingVerification}).
		Scan(&views).Error
	return views, err
}

func (s *Service) views(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx).
		Table(`"Jobs" AS j`).
		Select("j.*, c.name AS company_name, c.supply AS company_supply").
		Joins(`JOIN "Companies" AS c ON c.company_id = j.company_id`).
		Order(`j."createdAt" DESC`)
}

func (s *Service) job(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	var job domain.Job
	if err := s.DB.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// missingOr distinguishes a missing job from one in the wrong state.
func (s *Service) missingOr(ctx context.Context, jobID uuid.UUID, stateErr error) error {
	if _, err := s.job(ctx, jobID); err != nil {
		return err
	}
	return stateErr
}
