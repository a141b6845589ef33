package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"kreatorboard/internal/util"
	"kreatorboard/pkg/domain"
	"kreatorboard/pkg/storage"
	"kreatorboard/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	Store       store.Store
	Briefs      storage.ObjectStore
	MediaKits   storage.ObjectStore
	Logos       storage.ObjectStore
}

// App is the core application service for campaigns, proposals, creator
// profiles and the wallet.
type App struct {
	store     store.Store
	briefs    storage.ObjectStore
	mediaKits storage.ObjectStore
	logos     storage.ObjectStore
}

// Upload carries one incoming file.
type Upload struct {
	Reader      io.Reader
	Size        int64
	ContentType string
	Filename    string
}

// CampaignInput is what a startup submits to open a campaign.
type CampaignInput struct {
	Name        string
	Description string
	Audience    string
	Budget      int64
	StartDate   string
	EndDate     string
}

// New constructs the application with database-backed storage.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	if cfg.Briefs == nil || cfg.MediaKits == nil || cfg.Logos == nil {
		return nil, fmt.Errorf("object stores required")
	}
	return &App{
		store:     dataStore,
		briefs:    cfg.Briefs,
		mediaKits: cfg.MediaKits,
		logos:     cfg.Logos,
	}, nil
}

// UserByID resolves a user row, for request authorization.
func (a *App) UserByID(id string) (domain.User, bool, error) {
	return a.store.GetUserByID(id)
}

// CreateCampaign inserts the campaign and, when a brief is attached, uploads
// it and records its URL. A failed upload deletes the fresh campaign row so
// no half-created campaign survives.
func (a *App) CreateCampaign(ctx context.Context, self domain.User, input CampaignInput, brief *Upload) (domain.Campaign, error) {
	if self.Role != domain.RoleStartup {
		return domain.Campaign{}, ErrStartupRoleRequired
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.Audience = strings.TrimSpace(input.Audience)
	if input.Name == "" || input.Description == "" || input.Audience == "" {
		return domain.Campaign{}, ErrCampaignFieldsRequired
	}
	if input.Budget < 0 {
		return domain.Campaign{}, ErrNegativeBudget
	}
	campaign := domain.Campaign{
		ID:          util.NewID(),
		Name:        input.Name,
		Description: input.Description,
		Audience:    input.Audience,
		Budget:      input.Budget,
		StartDate:   strings.TrimSpace(input.StartDate),
		EndDate:     strings.TrimSpace(input.EndDate),
		CreatedBy:   self.ID,
		Status:      domain.CampaignOpen,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.store.CreateCampaign(campaign); err != nil {
		return domain.Campaign{}, fmt.Errorf("create campaign: %w", err)
	}
	if brief == nil {
		return campaign, nil
	}
	key := campaign.ID + path.Ext(brief.Filename)
	if err := a.briefs.Put(ctx, key, brief.Reader, brief.Size, brief.ContentType); err != nil {
		if delErr := a.store.DeleteCampaign(campaign.ID); delErr != nil {
			return domain.Campaign{}, fmt.Errorf("upload brief: %w (cleanup failed: %v)", err, delErr)
		}
		return domain.Campaign{}, fmt.Errorf("upload brief: %w", err)
	}
	campaign.BriefURL = a.briefs.PublicURL(key)
	if err := a.store.SetCampaignBrief(campaign.ID, campaign.BriefURL); err != nil {
		return domain.Campaign{}, fmt.Errorf("record brief url: %w", err)
	}
	return campaign, nil
}

// ListOpenCampaigns returns every campaign influencers can still apply to.
func (a *App) ListOpenCampaigns() ([]domain.Campaign, error) {
	return a.store.ListOpenCampaigns()
}

// ListMyCampaigns returns campaigns created by self.
func (a *App) ListMyCampaigns(self domain.User) ([]domain.Campaign, error) {
	return a.store.ListCampaignsByOwner(self.ID)
}

// SubmitProposal files an influencer's pitch against an existing campaign.
// The campaign owner is denormalized onto the proposal row so the owner's
// inbox query never joins back to campaigns.
func (a *App) SubmitProposal(self domain.User, campaignID, message string) (domain.Proposal, error) {
	if self.Role != domain.RoleInfluencer {
		return domain.Proposal{}, ErrInfluencerRoleRequired
	}
	if strings.TrimSpace(message) == "" {
		return domain.Proposal{}, ErrProposalMessageRequired
	}
	campaign, ok, err := a.store.GetCampaign(strings.TrimSpace(campaignID))
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("fetch campaign: %w", err)
	}
	if !ok {
		return domain.Proposal{}, ErrCampaignNotFound
	}
	proposal := domain.Proposal{
		ID:              util.NewID(),
		CampaignID:      campaign.ID,
		CampaignOwner:   campaign.CreatedBy,
		InfluencerEmail: self.Email,
		Message:         message,
		Status:          domain.ProposalPending,
		SubmittedAt:     time.Now().UTC(),
	}
	if err := a.store.CreateProposal(proposal); err != nil {
		return domain.Proposal{}, fmt.Errorf("create proposal: %w", err)
	}
	return proposal, nil
}

// ListProposals returns proposals filed against self's campaigns.
func (a *App) ListProposals(self domain.User) ([]domain.Proposal, error) {
	return a.store.ListProposalsByOwner(self.ID)
}

// DecideProposal accepts or rejects a pending proposal. The transition is
// one-way: a decided proposal never changes again. Acceptance books a
// pending earning of the campaign budget for the influencer.
func (a *App) DecideProposal(self domain.User, proposalID string, status domain.ProposalStatus) (domain.Proposal, error) {
	if status != domain.ProposalAccepted && status != domain.ProposalRejected {
		return domain.Proposal{}, ErrInvalidDecision
	}
	proposal, ok, err := a.store.GetProposal(strings.TrimSpace(proposalID))
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("fetch proposal: %w", err)
	}
	if !ok {
		return domain.Proposal{}, ErrProposalNotFound
	}
	if proposal.CampaignOwner != self.ID {
		return domain.Proposal{}, ErrNotCampaignOwner
	}
	if err := a.store.DecideProposal(proposal.ID, status); err != nil {
		switch {
		case errors.Is(err, store.ErrProposalNotFound):
			return domain.Proposal{}, ErrProposalNotFound
		case errors.Is(err, store.ErrProposalDecided):
			return domain.Proposal{}, ErrProposalAlreadyDecided
		}
		return domain.Proposal{}, fmt.Errorf("decide proposal: %w", err)
	}
	proposal.Status = status
	if status == domain.ProposalAccepted {
		if err := a.bookEarning(proposal); err != nil {
			return domain.Proposal{}, fmt.Errorf("book earning: %w", err)
		}
	}
	return proposal, nil
}

func (a *App) bookEarning(proposal domain.Proposal) error {
	influencer, ok, err := a.store.GetUserByEmail(proposal.InfluencerEmail)
	if err != nil {
		return fmt.Errorf("fetch influencer: %w", err)
	}
	if !ok {
		// Account deleted since the proposal was filed; nothing to book.
		return nil
	}
	campaign, ok, err := a.store.GetCampaign(proposal.CampaignID)
	if err != nil {
		return fmt.Errorf("fetch campaign: %w", err)
	}
	if !ok || campaign.Budget <= 0 {
		return nil
	}
	return a.store.CreateEarning(domain.Earning{
		ID:           util.NewID(),
		InfluencerID: influencer.ID,
		Amount:       campaign.Budget,
		Status:       domain.EarningPending,
		CreatedAt:    time.Now().UTC(),
	})
}

// UpsertInfluencerProfile writes self's public profile. A media kit upload
// happens before the profile write so a failed upload leaves the previous
// profile untouched.
func (a *App) UpsertInfluencerProfile(ctx context.Context, self domain.User, profile domain.InfluencerProfile, mediaKit *Upload) (domain.InfluencerProfile, error) {
	if self.Role != domain.RoleInfluencer {
		return domain.InfluencerProfile{}, ErrInfluencerRoleRequired
	}
	existing, ok, err := a.store.GetInfluencer(self.ID)
	if err != nil {
		return domain.InfluencerProfile{}, fmt.Errorf("fetch profile: %w", err)
	}
	profile.ID = self.ID
	if strings.TrimSpace(profile.FullName) == "" {
		profile.FullName = self.FullName
	}
	if ok {
		profile.MediaKitURL = existing.MediaKitURL
	}
	if mediaKit != nil {
		key := self.ID + path.Ext(mediaKit.Filename)
		if err := a.mediaKits.Put(ctx, key, mediaKit.Reader, mediaKit.Size, mediaKit.ContentType); err != nil {
			return domain.InfluencerProfile{}, fmt.Errorf("upload media kit: %w", err)
		}
		profile.MediaKitURL = a.mediaKits.PublicURL(key)
	}
	profile.UpdatedAt = time.Now().UTC()
	if err := a.store.UpsertInfluencer(profile); err != nil {
		return domain.InfluencerProfile{}, fmt.Errorf("save profile: %w", err)
	}
	return profile, nil
}

// GetInfluencerProfile returns a public influencer profile.
func (a *App) GetInfluencerProfile(id string) (domain.InfluencerProfile, bool, error) {
	return a.store.GetInfluencer(strings.TrimSpace(id))
}

// UpsertStartupProfile writes self's company profile, with the same upload
// ordering as influencer profiles.
func (a *App) UpsertStartupProfile(ctx context.Context, self domain.User, profile domain.StartupProfile, logo *Upload) (domain.StartupProfile, error) {
	if self.Role != domain.RoleStartup {
		return domain.StartupProfile{}, ErrStartupRoleRequired
	}
	existing, ok, err := a.store.GetStartup(self.ID)
	if err != nil {
		return domain.StartupProfile{}, fmt.Errorf("fetch profile: %w", err)
	}
	profile.ID = self.ID
	if strings.TrimSpace(profile.Name) == "" {
		profile.Name = self.FullName
	}
	if ok {
		profile.LogoURL = existing.LogoURL
	}
	if logo != nil {
		key := self.ID + path.Ext(logo.Filename)
		if err := a.logos.Put(ctx, key, logo.Reader, logo.Size, logo.ContentType); err != nil {
			return domain.StartupProfile{}, fmt.Errorf("upload logo: %w", err)
		}
		profile.LogoURL = a.logos.PublicURL(key)
	}
	profile.UpdatedAt = time.Now().UTC()
	if err := a.store.UpsertStartup(profile); err != nil {
		return domain.StartupProfile{}, fmt.Errorf("save profile: %w", err)
	}
	return profile, nil
}

// GetStartupProfile returns a public startup profile.
func (a *App) GetStartupProfile(id string) (domain.StartupProfile, bool, error) {
	return a.store.GetStartup(strings.TrimSpace(id))
}

// EarningsSummary returns the wallet view for self.
func (a *App) EarningsSummary(self domain.User) (domain.EarningsSummary, error) {
	if self.Role != domain.RoleInfluencer {
		return domain.EarningsSummary{}, ErrInfluencerRoleRequired
	}
	return a.store.SummarizeEarnings(self.ID)
}

// Withdraw flips every withdrawable earning for self to withdrawn and
// returns the amount moved. No funds leave the platform; payouts are
// simulated.
func (a *App) Withdraw(self domain.User) (int64, error) {
	if self.Role != domain.RoleInfluencer {
		return 0, ErrInfluencerRoleRequired
	}
	amount, err := a.store.WithdrawEarnings(self.ID)
	if err != nil {
		return 0, fmt.Errorf("withdraw earnings: %w", err)
	}
	return amount, nil
}

// AdminStats gathers the dashboard counters concurrently.
func (a *App) AdminStats(ctx context.Context) (domain.AdminStats, error) {
	var stats domain.AdminStats
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := a.store.CountUsers()
		stats.Users = n
		return err
	})
	g.Go(func() error {
		n, err := a.store.CountCampaigns()
		stats.Campaigns = n
		return err
	})
	g.Go(func() error {
		n, err := a.store.CountProposals()
		stats.Proposals = n
		return err
	})
	g.Go(func() error {
		total, err := a.store.SumWithdrawn()
		stats.TotalPayouts = total
		return err
	})
	g.Go(func() error {
		users, err := a.store.ListRecentUsers(5)
		stats.LatestUsers = users
		return err
	})
	g.Go(func() error {
		campaigns, err := a.store.ListRecentCampaigns(5)
		stats.LatestCampaigns = campaigns
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.AdminStats{}, fmt.Errorf("collect admin stats: %w", err)
	}
	return stats, nil
}
