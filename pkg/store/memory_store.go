package store

import (
	"sort"
	"sync"
	"time"

	"kreatorboard/pkg/domain"
)

// MemoryStore keeps every relation in-process. It backs unit tests and local
// development without Postgres.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	email       map[string]string // email -> user ID
	messages    []domain.Message
	reads       map[string]time.Time // userID+"|"+partnerID -> last read
	campaigns   map[string]domain.Campaign
	proposals   map[string]domain.Proposal
	influencers map[string]domain.InfluencerProfile
	startups    map[string]domain.StartupProfile
	earnings    map[string]domain.Earning
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]domain.User),
		email:       make(map[string]string),
		reads:       make(map[string]time.Time),
		campaigns:   make(map[string]domain.Campaign),
		proposals:   make(map[string]domain.Proposal),
		influencers: make(map[string]domain.InfluencerProfile),
		startups:    make(map[string]domain.StartupProfile),
		earnings:    make(map[string]domain.Earning),
	}
}

// SaveUser registers a user or syncs identity fields on an existing row.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.users[u.ID]; ok {
		delete(m.email, existing.Email)
		existing.Email = u.Email
		existing.PasswordHash = u.PasswordHash
		existing.FullName = u.FullName
		existing.WalletAddress = u.WalletAddress
		existing.UpdatedAt = u.UpdatedAt
		m.users[u.ID] = existing
		m.email[existing.Email] = u.ID
		return nil
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	user, ok := m.users[id]
	return user, ok, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	return user, ok, nil
}

func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	return m.ListRecentUsers(0)
}

func (m *MemoryStore) ListRecentUsers(limit int) ([]domain.User, error) {
	m.mu.RLock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	m.mu.RUnlock()
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *MemoryStore) CountUsers() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

func (m *MemoryStore) SetUserBlocked(id string, blocked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		user.IsBlocked = blocked
		user.UpdatedAt = time.Now().UTC()
		m.users[id] = user
	}
	return nil
}

func (m *MemoryStore) SetUserAdmin(id string, admin bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		user.IsAdmin = admin
		user.UpdatedAt = time.Now().UTC()
		m.users[id] = user
	}
	return nil
}

func (m *MemoryStore) AppendMessage(msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *MemoryStore) ListThread(userA, userB string) ([]domain.Message, error) {
	m.mu.RLock()
	res := make([]domain.Message, 0)
	for _, msg := range m.messages {
		if (msg.SenderID == userA && msg.ReceiverID == userB) ||
			(msg.SenderID == userB && msg.ReceiverID == userA) {
			res = append(res, msg)
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (m *MemoryStore) ListConversations(userID string) ([]domain.Conversation, error) {
	m.mu.RLock()
	involved := make([]domain.Message, 0)
	for _, msg := range m.messages {
		if msg.SenderID == userID || msg.ReceiverID == userID {
			involved = append(involved, msg)
		}
	}
	reads := make(map[string]time.Time)
	for key, at := range m.reads {
		reads[key] = at
	}
	m.mu.RUnlock()
	sort.SliceStable(involved, func(i, j int) bool { return involved[i].CreatedAt.After(involved[j].CreatedAt) })

	order := make([]string, 0)
	latest := make(map[string]domain.Message)
	unread := make(map[string]int)
	for _, msg := range involved {
		partner := msg.SenderID
		if partner == userID {
			partner = msg.ReceiverID
		}
		if _, ok := latest[partner]; !ok {
			latest[partner] = msg
			order = append(order, partner)
		}
		if msg.SenderID == partner && msg.CreatedAt.After(reads[userID+"|"+partner]) {
			unread[partner]++
		}
	}

	out := make([]domain.Conversation, 0, len(order))
	for _, partner := range order {
		entry := domain.Conversation{
			PartnerID:       partner,
			LastMessage:     latest[partner].Message,
			LastMessageTime: latest[partner].CreatedAt,
			UnreadCount:     unread[partner],
		}
		if user, ok, _ := m.GetUserByID(partner); ok {
			entry.PartnerName = user.FullName
			entry.PartnerRole = user.Role
		}
		out = append(out, entry)
	}
	return out, nil
}

func (m *MemoryStore) MarkThreadRead(userID, partnerID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads[userID+"|"+partnerID] = at.UTC()
	return nil
}

func (m *MemoryStore) CreateCampaign(c domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[c.ID] = c
	return nil
}

func (m *MemoryStore) DeleteCampaign(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.campaigns, id)
	return nil
}

func (m *MemoryStore) GetCampaign(id string) (domain.Campaign, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaigns[id]
	return c, ok, nil
}

func (m *MemoryStore) ListOpenCampaigns() ([]domain.Campaign, error) {
	return m.listCampaigns(func(c domain.Campaign) bool { return c.Status == domain.CampaignOpen }, 0)
}

func (m *MemoryStore) ListCampaignsByOwner(owner string) ([]domain.Campaign, error) {
	return m.listCampaigns(func(c domain.Campaign) bool { return c.CreatedBy == owner }, 0)
}

func (m *MemoryStore) ListRecentCampaigns(limit int) ([]domain.Campaign, error) {
	if limit <= 0 {
		limit = 5
	}
	return m.listCampaigns(func(domain.Campaign) bool { return true }, limit)
}

func (m *MemoryStore) listCampaigns(keep func(domain.Campaign) bool, limit int) ([]domain.Campaign, error) {
	m.mu.RLock()
	res := make([]domain.Campaign, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		if keep(c) {
			res = append(res, c)
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *MemoryStore) CountCampaigns() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.campaigns), nil
}

func (m *MemoryStore) SetCampaignBrief(id, briefURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[id]; ok {
		c.BriefURL = briefURL
		m.campaigns[id] = c
	}
	return nil
}

func (m *MemoryStore) CreateProposal(p domain.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proposals[p.ID] = p
	return nil
}

func (m *MemoryStore) ListProposalsByOwner(owner string) ([]domain.Proposal, error) {
	m.mu.RLock()
	res := make([]domain.Proposal, 0)
	for _, p := range m.proposals {
		if p.CampaignOwner == owner {
			res = append(res, p)
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(res, func(i, j int) bool { return res[i].SubmittedAt.After(res[j].SubmittedAt) })
	return res, nil
}

func (m *MemoryStore) GetProposal(id string) (domain.Proposal, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.proposals[id]
	return p, ok, nil
}

func (m *MemoryStore) DecideProposal(id string, status domain.ProposalStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok {
		return ErrProposalNotFound
	}
	if p.Status != domain.ProposalPending {
		return ErrProposalDecided
	}
	p.Status = status
	m.proposals[id] = p
	return nil
}

func (m *MemoryStore) CountProposals() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.proposals), nil
}

func (m *MemoryStore) UpsertInfluencer(p domain.InfluencerProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.influencers[p.ID] = p
	return nil
}

func (m *MemoryStore) GetInfluencer(id string) (domain.InfluencerProfile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.influencers[id]
	return p, ok, nil
}

func (m *MemoryStore) UpsertStartup(p domain.StartupProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startups[p.ID] = p
	return nil
}

func (m *MemoryStore) GetStartup(id string) (domain.StartupProfile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.startups[id]
	return p, ok, nil
}

func (m *MemoryStore) CreateEarning(e domain.Earning) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.earnings[e.ID] = e
	return nil
}

func (m *MemoryStore) SummarizeEarnings(influencerID string) (domain.EarningsSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var summary domain.EarningsSummary
	for _, e := range m.earnings {
		if e.InfluencerID != influencerID {
			continue
		}
		summary.TotalEarned += e.Amount
		switch e.Status {
		case domain.EarningPending:
			summary.Pending += e.Amount
		case domain.EarningWithdrawable:
			summary.Withdrawable += e.Amount
		}
	}
	return summary, nil
}

func (m *MemoryStore) WithdrawEarnings(influencerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for id, e := range m.earnings {
		if e.InfluencerID == influencerID && e.Status == domain.EarningWithdrawable {
			total += e.Amount
			e.Status = domain.EarningWithdrawn
			m.earnings[id] = e
		}
	}
	return total, nil
}

func (m *MemoryStore) SumWithdrawn() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total int64
	for _, e := range m.earnings {
		if e.Status == domain.EarningWithdrawn {
			total += e.Amount
		}
	}
	return total, nil
}
