package app

import "errors"

var (
	ErrStartupRoleRequired    = errors.New("startup account required")
	ErrInfluencerRoleRequired = errors.New("influencer account required")

	ErrCampaignFieldsRequired = errors.New("name, description and audience required")
	ErrNegativeBudget         = errors.New("budget must be >= 0")
	ErrCampaignNotFound       = errors.New("campaign not found")

	ErrProposalMessageRequired = errors.New("proposal message required")
	ErrProposalNotFound        = errors.New("proposal not found")
	ErrProposalAlreadyDecided  = errors.New("proposal already decided")
	ErrNotCampaignOwner        = errors.New("not the campaign owner")
	ErrInvalidDecision         = errors.New("decision must be accepted or rejected")
)
