package companies

import (
	"errors"

	companysvc "ventry-backend/internal/application/companies"
	jobsvc "ventry-backend/internal/application/jobs"
	settlesvc "ventry-backend/internal/application/settlement"
	"ventry-backend/internal/domain"
	"ventry-backend/internal/ledger"
	"ventry-backend/internal/middleware"
	"ventry-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Companies  *companysvc.Service
	Jobs       *jobsvc.Service
	Settlement *settlesvc.Service
}

var ledgerFailure = response.When(ledger.IsError, fiber.StatusBadGateway)

var (
	errBadCompanyID = errors.New("Invalid UUID format for company id")
	errNotOwner     = errors.New("User is Forbidden from performing this action")
)

var lookupRules = []response.Rule{
	response.On(errBadCompanyID, fiber.StatusBadRequest),
	response.On(companysvc.ErrCompanyNotFound, fiber.StatusNotFound),
	response.On(errNotOwner, fiber.StatusForbidden),
}

func companyID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, errBadCompanyID
	}
	return id, nil
}

// owned loads the company in the path and checks that the actor owns it.
func (h *Handlers) owned(c *fiber.Ctx) (*domain.Company, error) {
	id, err := companyID(c)
	if err != nil {
		return nil, err
	}
	company, err := h.Companies.Get(c.UserContext(), id)
	if err != nil {
		return nil, err
	}
	acct := middleware.GetAccount(c)
	if acct == nil || acct.AccountID != company.AccountID {
		return nil, errNotOwner
	}
	return company, nil
}

func rules(extra ...response.Rule) []response.Rule {
	return append(append([]response.Rule{}, lookupRules...), extra...)
}

// Get GET /api/v1/companies/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := companyID(c)
	if err != nil {
		return response.FromError(c, err, lookupRules...)
	}
	company, err := h.Companies.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err, lookupRules...)
	}
	return response.Success(c, "Company fetched", company, fiber.Map{"onboarded": company.Onboarded()})
}

// Price GET /api/v1/companies/:id/price
func (h *Handlers) Price(c *fiber.Ctx) error {
	id, err := companyID(c)
	if err != nil {
		return response.FromError(c, err, lookupRules...)
	}
	q, err := h.Companies.Price(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err, rules(
			response.On(companysvc.ErrNotOnboarded, fiber.StatusConflict),
			ledgerFailure,
		)...)
	}
	return response.Success(c, "Price fetched", q, nil)
}

// Setup POST /api/v1/companies/:id/setup
func (h *Handlers) Setup(c *fiber.Ctx) error {
	company, err := h.owned(c)
	if err != nil {
		return response.FromError(c, err, lookupRules...)
	}
	var body companysvc.SetupInput
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	out, err := h.Companies.Setup(c.UserContext(), company.CompanyID, body)
	if err != nil {
		return response.FromError(c, err,
			response.On(companysvc.ErrCompanyLocked, fiber.StatusConflict),
			response.On(companysvc.ErrSupplyMismatch, fiber.StatusConflict),
			response.On(companysvc.ErrInvalidName, fiber.StatusBadRequest),
			response.On(companysvc.ErrInvalidSupply, fiber.StatusBadRequest),
			response.When(isPricingInput, fiber.StatusBadRequest),
			ledgerFailure,
		)
	}
	return response.Success(c, "Company setup completed. Configuration is now locked.", out, nil)
}

// CreateJob POST /api/v1/companies/:id/jobs
func (h *Handlers) CreateJob(c *fiber.Ctx) error {
	company, err := h.owned(c)
	if err != nil {
		return response.FromError(c, err, lookupRules...)
	}
	var body jobsvc.CreateInput
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	job, err := h.Jobs.Create(c.UserContext(), company.CompanyID, body)
	if err != nil {
		return response.FromError(c, err,
			response.On(jobsvc.ErrCompanyNotOnboarded, fiber.StatusConflict),
			response.On(jobsvc.ErrTitleRequired, fiber.StatusBadRequest),
			response.On(jobsvc.ErrInvalidTokenAmount, fiber.StatusBadRequest),
			response.On(jobsvc.ErrInvalidUpfront, fiber.StatusBadRequest),
		)
	}
	return response.SuccessCreated(c, "Job created", job, nil)
}

// ListJobs GET /api/v1/companies/:id/jobs
func (h *Handlers) ListJobs(c *fiber.Ctx) error {
	id, err := companyID(c)
	if err != nil {
		return response.FromError(c, err, lookupRules...)
	}
	jobs, err := h.Jobs.ListForCompany(c.UserContext(), id)
	if err != nil {
		return err
	}
	return response.Success(c, "Jobs fetched", jobs, fiber.Map{"count": len(jobs)})
}

// Verify POST /api/v1/companies/:id/jobs/:jobId/verify
func (h *Handlers) Verify(c *fiber.Ctx) error {
	company, err := h.owned(c)
	if err != nil {
		return response.FromError(c, err, lookupRules...)
	}
	jobID, err := uuid.Parse(c.Params("jobId"))
	if err != nil {
		return response.BadRequest(c, "Invalid UUID format for job id")
	}
	res, err := h.Settlement.VerifyForCompany(c.UserContext(), company.CompanyID, jobID)
	if err != nil {
		return response.FromError(c, err,
			response.On(settlesvc.ErrJobNotFound, fiber.StatusNotFound),
			response.On(settlesvc.ErrJobNotOwned, fiber.StatusNotFound),
			response.On(settlesvc.ErrInvalidJobState, fiber.StatusConflict),
			response.On(settlesvc.ErrNoDeveloper, fiber.StatusConflict),
			response.On(settlesvc.ErrCompanyNotOnboarded, fiber.StatusConflict),
			response.On(settlesvc.ErrSettlementInFlight, fiber.StatusConflict),
			response.On(settlesvc.ErrAccountNotFound, fiber.StatusUnprocessableEntity),
			ledgerFailure,
		)
	}
	return response.Success(c, "Job verified and settled", res, nil)
}
