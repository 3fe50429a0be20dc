package settlement

import "errors"

var (
	ErrJobNotFound         = errors.New("job not found")
	ErrJobNotOwned         = errors.New("job belongs to another company")
	ErrInvalidJobState     = errors.New("job is not awaiting verification")
	ErrNoDeveloper         = errors.New("job has no assigned developer")
	ErrCompanyNotFound     = errors.New("company not found")
	ErrCompanyNotOnboarded = errors.New("company has no token or price contract")
	ErrAccountNotFound     = errors.New("developer account not found")
	ErrSettlementInFlight  = errors.New("settlement already in progress for job")
	ErrWalletUnavailable   = errors.New("account wallet could not be restored")
)
