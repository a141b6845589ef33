package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"kreatorboard/pkg/domain"
	"kreatorboard/pkg/storage"
	"kreatorboard/pkg/store"
)

// failingObjectStore rejects every write, for exercising upload failure paths.
type failingObjectStore struct{}

func (failingObjectStore) Put(context.Context, string, io.Reader, int64, string) error {
	return errors.New("bucket unavailable")
}

func (failingObjectStore) PresignGet(context.Context, string, time.Duration) (string, error) {
	return "", errors.New("bucket unavailable")
}

func (failingObjectStore) PublicURL(key string) string { return "memory://broken/" + key }

func (failingObjectStore) Delete(context.Context, string) error {
	return errors.New("bucket unavailable")
}

type testEnv struct {
	app       *App
	store     *store.MemoryStore
	briefs    *storage.MemoryObjectStore
	mediaKits *storage.MemoryObjectStore
	logos     *storage.MemoryObjectStore
}

func newTestApp(t *testing.T) testEnv {
	t.Helper()
	dataStore := store.NewMemoryStore()
	briefs := storage.NewMemoryObjectStore("campaign-briefs")
	mediaKits := storage.NewMemoryObjectStore("media-kits")
	logos := storage.NewMemoryObjectStore("startup-logos")
	a, err := New(Config{
		Store:     dataStore,
		Briefs:    briefs,
		MediaKits: mediaKits,
		Logos:     logos,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return testEnv{app: a, store: dataStore, briefs: briefs, mediaKits: mediaKits, logos: logos}
}

func seedUser(t *testing.T, s *store.MemoryStore, id, email string, role domain.UserRole) domain.User {
	t.Helper()
	u := domain.User{
		ID:        id,
		Email:     email,
		FullName:  "User " + id,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.SaveUser(u); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	return u
}

func validCampaignInput() CampaignInput {
	return CampaignInput{
		Name:        "Launch push",
		Description: "Promote the beta launch",
		Audience:    "indie developers",
		Budget:      5000,
	}
}

func TestCreateCampaignRequiresStartup(t *testing.T) {
	env := newTestApp(t)
	influencer := seedUser(t, env.store, "inf1", "inf1@example.com", domain.RoleInfluencer)

	_, err := env.app.CreateCampaign(context.Background(), influencer, validCampaignInput(), nil)
	if !errors.Is(err, ErrStartupRoleRequired) {
		t.Fatalf("expected ErrStartupRoleRequired, got %v", err)
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	env := newTestApp(t)
	startup := seedUser(t, env.store, "su1", "su1@example.com", domain.RoleStartup)

	input := validCampaignInput()
	input.Description = "   "
	if _, err := env.app.CreateCampaign(context.Background(), startup, input, nil); !errors.Is(err, ErrCampaignFieldsRequired) {
		t.Fatalf("expected ErrCampaignFieldsRequired, got %v", err)
	}

	input = validCampaignInput()
	input.Budget = -1
	if _, err := env.app.CreateCampaign(context.Background(), startup, input, nil); !errors.Is(err, ErrNegativeBudget) {
		t.Fatalf("expected ErrNegativeBudget, got %v", err)
	}
}

func TestCreateCampaignWithBrief(t *testing.T) {
	env := newTestApp(t)
	startup := seedUser(t, env.store, "su1", "su1@example.com", domain.RoleStartup)

	brief := &Upload{
		Reader:      strings.NewReader("brief body"),
		Size:        10,
		ContentType: "application/pdf",
		Filename:    "brief.pdf",
	}
	campaign, err := env.app.CreateCampaign(context.Background(), startup, validCampaignInput(), brief)
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}
	if campaign.Status != domain.CampaignOpen {
		t.Fatalf("status = %q, want %q", campaign.Status, domain.CampaignOpen)
	}
	if campaign.BriefURL == "" {
		t.Fatal("brief URL not recorded")
	}
	if _, ok := env.briefs.Object(campaign.ID + ".pdf"); !ok {
		t.Fatal("brief object not stored under campaign key")
	}
	stored, ok, err := env.store.GetCampaign(campaign.ID)
	if err != nil || !ok {
		t.Fatalf("GetCampaign: ok=%v err=%v", ok, err)
	}
	if stored.BriefURL != campaign.BriefURL {
		t.Fatalf("stored brief URL = %q, want %q", stored.BriefURL, campaign.BriefURL)
	}
}

func TestCreateCampaignBriefUploadFailureRollsBack(t *testing.T) {
	env := newTestApp(t)
	startup := seedUser(t, env.store, "su1", "su1@example.com", domain.RoleStartup)

	a, err := New(Config{
		Store:     env.store,
		Briefs:    failingObjectStore{},
		MediaKits: env.mediaKits,
		Logos:     env.logos,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	brief := &Upload{
		Reader:      strings.NewReader("brief body"),
		Size:        10,
		ContentType: "application/pdf",
		Filename:    "brief.pdf",
	}
	if _, err := a.CreateCampaign(context.Background(), startup, validCampaignInput(), brief); err == nil {
		t.Fatal("expected upload error")
	}
	campaigns, err := env.store.ListCampaignsByOwner(startup.ID)
	if err != nil {
		t.Fatalf("ListCampaignsByOwner: %v", err)
	}
	if len(campaigns) != 0 {
		t.Fatalf("campaign row survived a failed brief upload: %+v", campaigns)
	}
}

func TestSubmitProposal(t *testing.T) {
	env := newTestApp(t)
	startup := seedUser(t, env.store, "su1", "su1@example.com", domain.RoleStartup)
	influencer := seedUser(t, env.store, "inf1", "inf1@example.com", domain.RoleInfluencer)
	campaign, err := env.app.CreateCampaign(context.Background(), startup, validCampaignInput(), nil)
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}

	if _, err := env.app.SubmitProposal(startup, campaign.ID, "pick me"); !errors.Is(err, ErrInfluencerRoleRequired) {
		t.Fatalf("expected ErrInfluencerRoleRequired, got %v", err)
	}
	if _, err := env.app.SubmitProposal(influencer, campaign.ID, "   "); !errors.Is(err, ErrProposalMessageRequired) {
		t.Fatalf("expected ErrProposalMessageRequired, got %v", err)
	}
	if _, err := env.app.SubmitProposal(influencer, "missing", "pick me"); !errors.Is(err, ErrCampaignNotFound) {
		t.Fatalf("expected ErrCampaignNotFound, got %v", err)
	}

	proposal, err := env.app.SubmitProposal(influencer, campaign.ID, "pick me")
	if err != nil {
		t.Fatalf("SubmitProposal: %v", err)
	}
	if proposal.Status != domain.ProposalPending {
		t.Fatalf("status = %q, want %q", proposal.Status, domain.ProposalPending)
	}
	if proposal.CampaignOwner != startup.ID {
		t.Fatalf("campaign owner = %q, want %q", proposal.CampaignOwner, startup.ID)
	}
	if proposal.InfluencerEmail != influencer.Email {
		t.Fatalf("influencer email = %q, want %q", proposal.InfluencerEmail, influencer.Email)
	}

	inbox, err := env.app.ListProposals(startup)
	if err != nil {
		t.Fatalf("ListProposals: %v", err)
	}
	if len(inbox) != 1 || inbox[0].ID != proposal.ID {
		t.Fatalf("owner inbox = %+v", inbox)
	}
}

func TestDecideProposalOneWay(t *testing.T) {
	env := newTestApp(t)
	startup := seedUser(t, env.store, "su1", "su1@example.com", domain.RoleStartup)
	other := seedUser(t, env.store, "su2", "su2@example.com", domain.RoleStartup)
	influencer := seedUser(t, env.store, "inf1", "inf1@example.com", domain.RoleInfluencer)
	campaign, err := env.app.CreateCampaign(context.Background(), startup, validCampaignInput(), nil)
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}
	proposal, err := env.app.SubmitProposal(influencer, campaign.ID, "pick me")
	if err != nil {
		t.Fatalf("SubmitProposal: %v", err)
	}

	if _, err := env.app.DecideProposal(startup, proposal.ID, domain.ProposalPending); !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("expected ErrInvalidDecision, got %v", err)
	}
	if _, err := env.app.DecideProposal(other, proposal.ID, domain.ProposalAccepted); !errors.Is(err, ErrNotCampaignOwner) {
		t.Fatalf("expected ErrNotCampaignOwner, got %v", err)
	}
	if _, err := env.app.DecideProposal(startup, "missing", domain.ProposalAccepted); !errors.Is(err, ErrProposalNotFound) {
		t.Fatalf("expected ErrProposalNotFound, got %v", err)
	}

	decided, err := env.app.DecideProposal(startup, proposal.ID, domain.ProposalAccepted)
	if err != nil {
		t.Fatalf("DecideProposal: %v", err)
	}
	if decided.Status != domain.ProposalAccepted {
		t.Fatalf("status = %q, want %q", decided.Status, domain.ProposalAccepted)
	}

	if _, err := env.app.DecideProposal(startup, proposal.ID, domain.ProposalRejected); !errors.Is(err, ErrProposalAlreadyDecided) {
		t.Fatalf("expected ErrProposalAlreadyDecided, got %v", err)
	}
	stored, ok, err := env.store.GetProposal(proposal.ID)
	if err != nil || !ok {
		t.Fatalf("GetProposal: ok=%v err=%v", ok, err)
	}
	if stored.Status != domain.ProposalAccepted {
		t.Fatalf("decided proposal changed to %q", stored.Status)
	}
}

func TestAcceptingProposalBooksEarning(t *testing.T) {
	env := newTestApp(t)
	startup := seedUser(t, env.store, "su1", "su1@example.com", domain.RoleStartup)
	influencer := seedUser(t, env.store, "inf1", "inf1@example.com", domain.RoleInfluencer)
	campaign, err := env.app.CreateCampaign(context.Background(), startup, validCampaignInput(), nil)
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}
	proposal, err := env.app.SubmitProposal(influencer, campaign.ID, "pick me")
	if err != nil {
		t.Fatalf("SubmitProposal: %v", err)
	}
	if _, err := env.app.DecideProposal(startup, proposal.ID, domain.ProposalAccepted); err != nil {
		t.Fatalf("DecideProposal: %v", err)
	}

	summary, err := env.app.EarningsSummary(influencer)
	if err != nil {
		t.Fatalf("EarningsSummary: %v", err)
	}
	if summary.Pending != campaign.Budget {
		t.Fatalf("pending = %d, want %d", summary.Pending, campaign.Budget)
	}
}

func TestRejectingProposalBooksNothing(t *testing.T) {
	env := newTestApp(t)
	startup := seedUser(t, env.store, "su1", "su1@example.com", domain.RoleStartup)
	influencer := seedUser(t, env.store, "inf1", "inf1@example.com", domain.RoleInfluencer)
	campaign, err := env.app.CreateCampaign(context.Background(), startup, validCampaignInput(), nil)
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}
	proposal, err := env.app.SubmitProposal(influencer, campaign.ID, "pick me")
	if err != nil {
		t.Fatalf("SubmitProposal: %v", err)
	}
	if _, err := env.app.DecideProposal(startup, proposal.ID, domain.ProposalRejected); err != nil {
		t.Fatalf("DecideProposal: %v", err)
	}

	summary, err := env.app.EarningsSummary(influencer)
	if err != nil {
		t.Fatalf("EarningsSummary: %v", err)
	}
	if summary.TotalEarned != 0 {
		t.Fatalf("total earned = %d, want 0", summary.TotalEarned)
	}
}

func TestUpsertInfluencerProfilePreservesMediaKit(t *testing.T) {
	env := newTestApp(t)
	influencer := seedUser(t, env.store, "inf1", "inf1@example.com", domain.RoleInfluencer)

	kit := &Upload{
		Reader:      strings.NewReader("media kit"),
		Size:        9,
		ContentType: "application/pdf",
		Filename:    "kit.pdf",
	}
	first, err := env.app.UpsertInfluencerProfile(context.Background(), influencer, domain.InfluencerProfile{
		Bio:           "creator",
		TwitterHandle: "inf1",
	}, kit)
	if err != nil {
		t.Fatalf("UpsertInfluencerProfile: %v", err)
	}
	if first.MediaKitURL == "" {
		t.Fatal("media kit URL not recorded")
	}
	if first.FullName != influencer.FullName {
		t.Fatalf("full name = %q, want account name %q", first.FullName, influencer.FullName)
	}

	second, err := env.app.UpsertInfluencerProfile(context.Background(), influencer, domain.InfluencerProfile{
		Bio: "updated bio",
	}, nil)
	if err != nil {
		t.Fatalf("UpsertInfluencerProfile: %v", err)
	}
	if second.MediaKitURL != first.MediaKitURL {
		t.Fatalf("media kit URL lost on update: %q != %q", second.MediaKitURL, first.MediaKitURL)
	}
	if second.Bio != "updated bio" {
		t.Fatalf("bio = %q", second.Bio)
	}
}

func TestUpsertStartupProfileUploadFailureLeavesProfile(t *testing.T) {
	env := newTestApp(t)
	startup := seedUser(t, env.store, "su1", "su1@example.com", domain.RoleStartup)

	if _, err := env.app.UpsertStartupProfile(context.Background(), startup, domain.StartupProfile{
		Name: "Acme",
		Bio:  "we make things",
	}, nil); err != nil {
		t.Fatalf("UpsertStartupProfile: %v", err)
	}

	a, err := New(Config{
		Store:     env.store,
		Briefs:    env.briefs,
		MediaKits: env.mediaKits,
		Logos:     failingObjectStore{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logo := &Upload{
		Reader:      strings.NewReader("logo"),
		Size:        4,
		ContentType: "image/png",
		Filename:    "logo.png",
	}
	if _, err := a.UpsertStartupProfile(context.Background(), startup, domain.StartupProfile{Name: "Acme v2"}, logo); err == nil {
		t.Fatal("expected upload error")
	}
	stored, ok, err := env.store.GetStartup(startup.ID)
	if err != nil || !ok {
		t.Fatalf("GetStartup: ok=%v err=%v", ok, err)
	}
	if stored.Name != "Acme" || stored.Bio != "we make things" {
		t.Fatalf("previous profile overwritten: %+v", stored)
	}
}

func TestWithdrawRequiresInfluencer(t *testing.T) {
	env := newTestApp(t)
	startup := seedUser(t, env.store, "su1", "su1@example.com", domain.RoleStartup)
	if _, err := env.app.Withdraw(startup); !errors.Is(err, ErrInfluencerRoleRequired) {
		t.Fatalf("expected ErrInfluencerRoleRequired, got %v", err)
	}
}

func TestWithdrawMovesWithdrawable(t *testing.T) {
	env := newTestApp(t)
	influencer := seedUser(t, env.store, "inf1", "inf1@example.com", domain.RoleInfluencer)
	if err := env.store.CreateEarning(domain.Earning{
		ID:           "e1",
		InfluencerID: influencer.ID,
		Amount:       700,
		Status:       domain.EarningWithdrawable,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		t.Fatalf("CreateEarning: %v", err)
	}

	amount, err := env.app.Withdraw(influencer)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if amount != 700 {
		t.Fatalf("withdrew %d, want 700", amount)
	}
	amount, err = env.app.Withdraw(influencer)
	if err != nil {
		t.Fatalf("second Withdraw: %v", err)
	}
	if amount != 0 {
		t.Fatalf("second withdraw moved %d, want 0", amount)
	}
}

func TestAdminStats(t *testing.T) {
	env := newTestApp(t)
	startup := seedUser(t, env.store, "su1", "su1@example.com", domain.RoleStartup)
	influencer := seedUser(t, env.store, "inf1", "inf1@example.com", domain.RoleInfluencer)
	campaign, err := env.app.CreateCampaign(context.Background(), startup, validCampaignInput(), nil)
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}
	if _, err := env.app.SubmitProposal(influencer, campaign.ID, "pick me"); err != nil {
		t.Fatalf("SubmitProposal: %v", err)
	}

	stats, err := env.app.AdminStats(context.Background())
	if err != nil {
		t.Fatalf("AdminStats: %v", err)
	}
	if stats.Users != 2 || stats.Campaigns != 1 || stats.Proposals != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(stats.LatestCampaigns) != 1 || stats.LatestCampaigns[0].ID != campaign.ID {
		t.Fatalf("latest campaigns = %+v", stats.LatestCampaigns)
	}
}
