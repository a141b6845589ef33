package store

import (
	"time"

	"kreatorboard/pkg/domain"
)

// Store defines persistence operations for users, messaging, campaigns,
// proposals, profiles, and earnings.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)
	ListRecentUsers(limit int) ([]domain.User, error)
	CountUsers() (int, error)
	SetUserBlocked(id string, blocked bool) error
	SetUserAdmin(id string, admin bool) error

	// messages
	AppendMessage(domain.Message) error
	ListThread(userA, userB string) ([]domain.Message, error)
	ListConversations(userID string) ([]domain.Conversation, error)
	MarkThreadRead(userID, partnerID string, at time.Time) error

	// campaigns
	CreateCampaign(domain.Campaign) error
	DeleteCampaign(id string) error
	GetCampaign(id string) (domain.Campaign, bool, error)
	ListOpenCampaigns() ([]domain.Campaign, error)
	ListCampaignsByOwner(owner string) ([]domain.Campaign, error)
	ListRecentCampaigns(limit int) ([]domain.Campaign, error)
	CountCampaigns() (int, error)
	SetCampaignBrief(id, briefURL string) error

	// proposals
	CreateProposal(domain.Proposal) error
	ListProposalsByOwner(owner string) ([]domain.Proposal, error)
	GetProposal(id string) (domain.Proposal, bool, error)
	DecideProposal(id string, status domain.ProposalStatus) error
	CountProposals() (int, error)

	// profiles
	UpsertInfluencer(domain.InfluencerProfile) error
	GetInfluencer(id string) (domain.InfluencerProfile, bool, error)
	UpsertStartup(domain.StartupProfile) error
	GetStartup(id string) (domain.StartupProfile, bool, error)

	// earnings
	CreateEarning(domain.Earning) error
	SummarizeEarnings(influencerID string) (domain.EarningsSummary, error)
	WithdrawEarnings(influencerID string) (int64, error)
	SumWithdrawn() (int64, error)
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

// UserSessionRevoker is an optional capability that revokes all sessions
// issued for a user since a cutoff time.
type UserSessionRevoker interface {
	RevokeUserSessions(userID string, since time.Time) error
}

// UserRefreshTokenRevoker is an optional capability that revokes all refresh
// tokens for a user.
type UserRefreshTokenRevoker interface {
	RevokeUserRefreshTokens(userID string) error
}

// JWK represents a JSON Web Key entry used by JWKS endpoints.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

// JWKSProvider is an optional capability exposed by session stores that can
// publish JSON Web Keys.
type JWKSProvider interface {
	JWKS() []JWK
}
