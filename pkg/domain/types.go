package domain

import "time"

type UserRole string

const (
	RoleStartup    UserRole = "startup"
	RoleInfluencer UserRole = "influencer"
)

type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalAccepted ProposalStatus = "accepted"
	ProposalRejected ProposalStatus = "rejected"
)

type CampaignStatus string

const (
	CampaignOpen   CampaignStatus = "open"
	CampaignClosed CampaignStatus = "closed"
)

type EarningStatus string

const (
	EarningPending      EarningStatus = "pending"
	EarningWithdrawable EarningStatus = "withdrawable"
	EarningWithdrawn    EarningStatus = "withdrawn"
)

type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	FullName      string    `json:"fullName"`
	Role          UserRole  `json:"role"`
	WalletAddress string    `json:"walletAddress,omitempty"`
	IsAdmin       bool      `json:"isAdmin"`
	IsBlocked     bool      `json:"isBlocked"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Conversation summarizes one inbox entry: the partner plus the most recent
// message exchanged with them.
type Conversation struct {
	PartnerID       string    `json:"partnerId"`
	PartnerName     string    `json:"partnerName"`
	PartnerRole     UserRole  `json:"partnerRole"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	UnreadCount     int       `json:"unreadCount"`
}

type Campaign struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Audience    string         `json:"audience"`
	Budget      int64          `json:"budget"`
	StartDate   string         `json:"startDate"`
	EndDate     string         `json:"endDate"`
	CreatedBy   string         `json:"createdBy"`
	BriefURL    string         `json:"briefUrl,omitempty"`
	Status      CampaignStatus `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type Proposal struct {
	ID              string         `json:"id"`
	CampaignID      string         `json:"campaignId"`
	CampaignOwner   string         `json:"campaignOwner"`
	InfluencerEmail string         `json:"influencerEmail"`
	Message         string         `json:"message"`
	Status          ProposalStatus `json:"status"`
	SubmittedAt     time.Time      `json:"submittedAt"`
}

type InfluencerProfile struct {
	ID            string    `json:"id"`
	FullName      string    `json:"fullName"`
	Bio           string    `json:"bio"`
	Instagram     string    `json:"instagram"`
	Youtube       string    `json:"youtube"`
	TwitterHandle string    `json:"twitterHandle"`
	MediaKitURL   string    `json:"mediaKitUrl,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type StartupProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Bio       string    `json:"bio"`
	Website   string    `json:"website"`
	LogoURL   string    `json:"logoUrl,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Earning struct {
	ID           string        `json:"id"`
	InfluencerID string        `json:"influencerId"`
	Amount       int64         `json:"amount"`
	Status       EarningStatus `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// EarningsSummary is what the wallet view renders.
type EarningsSummary struct {
	TotalEarned  int64 `json:"totalEarned"`
	Pending      int64 `json:"pending"`
	Withdrawable int64 `json:"withdrawable"`
}

// AdminStats aggregates the platform-wide counters on the admin dashboard.
type AdminStats struct {
	Users           int        `json:"users"`
	Campaigns       int        `json:"campaigns"`
	Proposals       int        `json:"proposals"`
	TotalPayouts    int64      `json:"totalPayouts"`
	LatestUsers     []User     `json:"latestUsers"`
	LatestCampaigns []Campaign `json:"latestCampaigns"`
}
