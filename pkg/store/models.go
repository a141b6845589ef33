package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	ID            string `gorm:"primaryKey"`
	Email         string `gorm:"uniqueIndex;not null"`
	PasswordHash  string `gorm:"not null"`
	FullName      string
	Role          string `gorm:"not null"`
	WalletAddress string
	IsAdmin       bool      `gorm:"not null;default:false"`
	IsBlocked     bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time
}

type MessageModel struct {
	ID         string    `gorm:"primaryKey"`
	SenderID   string    `gorm:"not null;index"`
	ReceiverID string    `gorm:"not null;index"`
	Message    string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

// ThreadReadModel records when a user last opened a thread. Messages stay
// immutable; unread counts derive from this mark.
type ThreadReadModel struct {
	UserID     string    `gorm:"primaryKey"`
	PartnerID  string    `gorm:"primaryKey"`
	LastReadAt time.Time `gorm:"not null"`
}

type CampaignModel struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Description string
	Audience    string
	Budget      int64 `gorm:"not null"`
	StartDate   string
	EndDate     string
	CreatedBy   string `gorm:"not null;index"`
	BriefURL    string
	Status      string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

type ProposalModel struct {
	ID              string `gorm:"primaryKey"`
	CampaignID      string `gorm:"not null;index"`
	CampaignOwner   string `gorm:"not null;index"`
	InfluencerEmail string `gorm:"not null"`
	Message         string
	Status          string    `gorm:"not null"`
	SubmittedAt     time.Time `gorm:"not null"`
}

type InfluencerModel struct {
	ID            string `gorm:"primaryKey"`
	FullName      string
	Bio           string
	Instagram     string
	Youtube       string
	TwitterHandle string
	MediaKitURL   string
	UpdatedAt     time.Time
}

type StartupModel struct {
	ID        string `gorm:"primaryKey"`
	Name      string
	Bio       string
	Website   string
	LogoURL   string
	UpdatedAt time.Time
}

type EarningModel struct {
	ID           string `gorm:"primaryKey"`
	InfluencerID string `gorm:"not null;index"`
	Amount       int64  `gorm:"not null"`
	Status       string `gorm:"not null;index"`
	CreatedAt    time.Time
}
