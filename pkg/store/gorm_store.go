package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"kreatorboard/pkg/domain"
)

const migrateLockID int64 = 52815281

var (
	// ErrProposalNotFound indicates the proposal does not exist.
	ErrProposalNotFound = errors.New("proposal not found")
	// ErrProposalDecided indicates the proposal already left the pending state.
	ErrProposalDecided = errors.New("proposal already decided")
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&MessageModel{},
			&ThreadReadModel{},
			&CampaignModel{},
			&ProposalModel{},
			&InfluencerModel{},
			&StartupModel{},
			&EarningModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers a user or syncs identity fields on an existing row.
// The id never changes once created.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "password_hash", "full_name", "wallet_address", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users, newest first.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	return s.listUsers(0)
}

// ListRecentUsers returns the most recently registered users.
func (s *GormStore) ListRecentUsers(limit int) ([]domain.User, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.listUsers(limit)
}

func (s *GormStore) listUsers(limit int) ([]domain.User, error) {
	var models []UserModel
	tx := s.db.Order("created_at DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// CountUsers returns number of users.
func (s *GormStore) CountUsers() (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// SetUserBlocked flips the moderation block flag.
func (s *GormStore) SetUserBlocked(id string, blocked bool) error {
	return s.db.Model(&UserModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_blocked": blocked, "updated_at": time.Now().UTC()}).Error
}

// SetUserAdmin grants or revokes admin.
func (s *GormStore) SetUserAdmin(id string, admin bool) error {
	return s.db.Model(&UserModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_admin": admin, "updated_at": time.Now().UTC()}).Error
}

// AppendMessage records a message. Messages are never updated or deleted.
func (s *GormStore) AppendMessage(msg domain.Message) error {
	model := messageToModel(msg)
	return s.db.Create(&model).Error
}

// ListThread returns all messages between the unordered pair {userA, userB}
// in chronological order.
func (s *GormStore) ListThread(userA, userB string) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.db.
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(models))
	for _, m := range models {
		msgs = append(msgs, messageFromModel(m))
	}
	return msgs, nil
}

// ListConversations returns one inbox entry per distinct chat partner of the
// user: partner summary, last message, and unread count derived from the
// user's read marks.
func (s *GormStore) ListConversations(userID string) ([]domain.Conversation, error) {
	var models []MessageModel
	if err := s.db.
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	var reads []ThreadReadModel
	if err := s.db.Where("user_id = ?", userID).Find(&reads).Error; err != nil {
		return nil, err
	}
	lastRead := make(map[string]time.Time, len(reads))
	for _, r := range reads {
		lastRead[r.PartnerID] = r.LastReadAt
	}

	order := make([]string, 0)
	latest := make(map[string]MessageModel)
	unread := make(map[string]int)
	for _, m := range models {
		partner := m.SenderID
		if partner == userID {
			partner = m.ReceiverID
		}
		if _, ok := latest[partner]; !ok {
			latest[partner] = m
			order = append(order, partner)
		}
		if m.SenderID == partner && m.CreatedAt.After(lastRead[partner]) {
			unread[partner]++
		}
	}

	out := make([]domain.Conversation, 0, len(order))
	for _, partner := range order {
		user, ok, err := s.GetUserByID(partner)
		if err != nil {
			return nil, err
		}
		entry := domain.Conversation{
			PartnerID:       partner,
			LastMessage:     latest[partner].Message,
			LastMessageTime: latest[partner].CreatedAt,
			UnreadCount:     unread[partner],
		}
		if ok {
			entry.PartnerName = user.FullName
			entry.PartnerRole = user.Role
		}
		out = append(out, entry)
	}
	return out, nil
}

// MarkThreadRead records the moment the user last opened a thread.
func (s *GormStore) MarkThreadRead(userID, partnerID string, at time.Time) error {
	model := ThreadReadModel{UserID: userID, PartnerID: partnerID, LastReadAt: at.UTC()}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "partner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_read_at"}),
	}).Create(&model).Error
}

// CreateCampaign stores a new campaign.
func (s *GormStore) CreateCampaign(c domain.Campaign) error {
	model := campaignToModel(c)
	return s.db.Create(&model).Error
}

// DeleteCampaign removes a campaign. Used as the compensating step when a
// brief upload fails after the row was inserted.
func (s *GormStore) DeleteCampaign(id string) error {
	return s.db.Delete(&CampaignModel{}, "id = ?", id).Error
}

// GetCampaign retrieves a campaign.
func (s *GormStore) GetCampaign(id string) (domain.Campaign, bool, error) {
	var model CampaignModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Campaign{}, false, nil
		}
		return domain.Campaign{}, false, err
	}
	return campaignFromModel(model), true, nil
}

// ListOpenCampaigns returns open campaigns, newest first.
func (s *GormStore) ListOpenCampaigns() ([]domain.Campaign, error) {
	return s.listCampaigns(0, "status = ?", string(domain.CampaignOpen))
}

// ListCampaignsByOwner returns campaigns created by owner.
func (s *GormStore) ListCampaignsByOwner(owner string) ([]domain.Campaign, error) {
	return s.listCampaigns(0, "created_by = ?", owner)
}

// ListRecentCampaigns returns the most recently created campaigns.
func (s *GormStore) ListRecentCampaigns(limit int) ([]domain.Campaign, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.listCampaigns(limit)
}

func (s *GormStore) listCampaigns(limit int, conds ...any) ([]domain.Campaign, error) {
	var models []CampaignModel
	tx := s.db.Order("created_at DESC")
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Campaign, 0, len(models))
	for _, m := range models {
		res = append(res, campaignFromModel(m))
	}
	return res, nil
}

// CountCampaigns returns number of campaigns.
func (s *GormStore) CountCampaigns() (int, error) {
	var count int64
	if err := s.db.Model(&CampaignModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// SetCampaignBrief attaches an uploaded brief URL.
func (s *GormStore) SetCampaignBrief(id, briefURL string) error {
	return s.db.Model(&CampaignModel{}).Where("id = ?", id).Update("brief_url", briefURL).Error
}

// CreateProposal stores a new proposal in pending state.
func (s *GormStore) CreateProposal(p domain.Proposal) error {
	model := proposalToModel(p)
	return s.db.Create(&model).Error
}

// ListProposalsByOwner returns proposals targeting the owner's campaigns,
// newest first.
func (s *GormStore) ListProposalsByOwner(owner string) ([]domain.Proposal, error) {
	var models []ProposalModel
	if err := s.db.Where("campaign_owner = ?", owner).
		Order("submitted_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Proposal, 0, len(models))
	for _, m := range models {
		res = append(res, proposalFromModel(m))
	}
	return res, nil
}

// GetProposal retrieves a proposal.
func (s *GormStore) GetProposal(id string) (domain.Proposal, bool, error) {
	var model ProposalModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Proposal{}, false, nil
		}
		return domain.Proposal{}, false, err
	}
	return proposalFromModel(model), true, nil
}

// DecideProposal moves a pending proposal to accepted or rejected. The guard
// on the current status makes the transition one-way: a second decision fails
// with ErrProposalDecided instead of silently overwriting.
func (s *GormStore) DecideProposal(id string, status domain.ProposalStatus) error {
	res := s.db.Model(&ProposalModel{}).
		Where("id = ? AND status = ?", id, string(domain.ProposalPending)).
		Update("status", string(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		_, ok, err := s.GetProposal(id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrProposalNotFound
		}
		return ErrProposalDecided
	}
	return nil
}

// CountProposals returns number of proposals.
func (s *GormStore) CountProposals() (int, error) {
	var count int64
	if err := s.db.Model(&ProposalModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// UpsertInfluencer creates or updates an influencer profile keyed by user id.
func (s *GormStore) UpsertInfluencer(p domain.InfluencerProfile) error {
	model := influencerToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name", "bio", "instagram", "youtube", "twitter_handle", "media_kit_url", "updated_at"}),
	}).Create(&model).Error
}

// GetInfluencer retrieves an influencer profile.
func (s *GormStore) GetInfluencer(id string) (domain.InfluencerProfile, bool, error) {
	var model InfluencerModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.InfluencerProfile{}, false, nil
		}
		return domain.InfluencerProfile{}, false, err
	}
	return influencerFromModel(model), true, nil
}

// UpsertStartup creates or updates a startup profile keyed by user id.
func (s *GormStore) UpsertStartup(p domain.StartupProfile) error {
	model := startupToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "bio", "website", "logo_url", "updated_at"}),
	}).Create(&model).Error
}

// GetStartup retrieves a startup profile.
func (s *GormStore) GetStartup(id string) (domain.StartupProfile, bool, error) {
	var model StartupModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.StartupProfile{}, false, nil
		}
		return domain.StartupProfile{}, false, err
	}
	return startupFromModel(model), true, nil
}

// CreateEarning records an earning entry.
func (s *GormStore) CreateEarning(e domain.Earning) error {
	model := earningToModel(e)
	return s.db.Create(&model).Error
}

// SummarizeEarnings sums earnings per status for one influencer.
func (s *GormStore) SummarizeEarnings(influencerID string) (domain.EarningsSummary, error) {
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	if err := s.db.Model(&EarningModel{}).
		Select("status, COALESCE(SUM(amount), 0) AS total").
		Where("influencer_id = ?", influencerID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return domain.EarningsSummary{}, err
	}
	var summary domain.EarningsSummary
	for _, r := range rows {
		summary.TotalEarned += r.Total
		switch domain.EarningStatus(r.Status) {
		case domain.EarningPending:
			summary.Pending += r.Total
		case domain.EarningWithdrawable:
			summary.Withdrawable += r.Total
		}
	}
	return summary, nil
}

// WithdrawEarnings flips every withdrawable entry for the influencer to
// withdrawn and returns the amount moved. Payout execution stays off-chain
// of this system; this only settles the ledger.
func (s *GormStore) WithdrawEarnings(influencerID string) (int64, error) {
	var total int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&EarningModel{}).
			Select("COALESCE(SUM(amount), 0)").
			Where("influencer_id = ? AND status = ?", influencerID, string(domain.EarningWithdrawable)).
			Scan(&total).Error; err != nil {
			return err
		}
		if total == 0 {
			return nil
		}
		return tx.Model(&EarningModel{}).
			Where("influencer_id = ? AND status = ?", influencerID, string(domain.EarningWithdrawable)).
			Update("status", string(domain.EarningWithdrawn)).Error
	})
	return total, err
}

// SumWithdrawn totals all withdrawn payouts platform-wide.
func (s *GormStore) SumWithdrawn() (int64, error) {
	var total int64
	if err := s.db.Model(&EarningModel{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("status = ?", string(domain.EarningWithdrawn)).
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:            u.ID,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		FullName:      u.FullName,
		Role:          string(u.Role),
		WalletAddress: u.WalletAddress,
		IsAdmin:       u.IsAdmin,
		IsBlocked:     u.IsBlocked,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:            m.ID,
		Email:         m.Email,
		PasswordHash:  m.PasswordHash,
		FullName:      m.FullName,
		Role:          domain.UserRole(m.Role),
		WalletAddress: m.WalletAddress,
		IsAdmin:       m.IsAdmin,
		IsBlocked:     m.IsBlocked,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	return MessageModel{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Message:    msg.Message,
		CreatedAt:  msg.CreatedAt,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Message:    m.Message,
		CreatedAt:  m.CreatedAt,
	}
}

func campaignToModel(c domain.Campaign) CampaignModel {
	return CampaignModel{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Audience:    c.Audience,
		Budget:      c.Budget,
		StartDate:   c.StartDate,
		EndDate:     c.EndDate,
		CreatedBy:   c.CreatedBy,
		BriefURL:    c.BriefURL,
		Status:      string(c.Status),
		CreatedAt:   c.CreatedAt,
	}
}

func campaignFromModel(m CampaignModel) domain.Campaign {
	return domain.Campaign{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Audience:    m.Audience,
		Budget:      m.Budget,
		StartDate:   m.StartDate,
		EndDate:     m.EndDate,
		CreatedBy:   m.CreatedBy,
		BriefURL:    m.BriefURL,
		Status:      domain.CampaignStatus(m.Status),
		CreatedAt:   m.CreatedAt,
	}
}

func proposalToModel(p domain.Proposal) ProposalModel {
	return ProposalModel{
		ID:              p.ID,
		CampaignID:      p.CampaignID,
		CampaignOwner:   p.CampaignOwner,
		InfluencerEmail: p.InfluencerEmail,
		Message:         p.Message,
		Status:          string(p.Status),
		SubmittedAt:     p.SubmittedAt,
	}
}

func proposalFromModel(m ProposalModel) domain.Proposal {
	return domain.Proposal{
		ID:              m.ID,
		CampaignID:      m.CampaignID,
		CampaignOwner:   m.CampaignOwner,
		InfluencerEmail: m.InfluencerEmail,
		Message:         m.Message,
		Status:          domain.ProposalStatus(m.Status),
		SubmittedAt:     m.SubmittedAt,
	}
}

func influencerToModel(p domain.InfluencerProfile) InfluencerModel {
	return InfluencerModel{
		ID:            p.ID,
		FullName:      p.FullName,
		Bio:           p.Bio,
		Instagram:     p.Instagram,
		Youtube:       p.Youtube,
		TwitterHandle: p.TwitterHandle,
		MediaKitURL:   p.MediaKitURL,
		UpdatedAt:     p.UpdatedAt,
	}
}

func influencerFromModel(m InfluencerModel) domain.InfluencerProfile {
	return domain.InfluencerProfile{
		ID:            m.ID,
		FullName:      m.FullName,
		Bio:           m.Bio,
		Instagram:     m.Instagram,
		Youtube:       m.Youtube,
		TwitterHandle: m.TwitterHandle,
		MediaKitURL:   m.MediaKitURL,
		UpdatedAt:     m.UpdatedAt,
	}
}

func startupToModel(p domain.StartupProfile) StartupModel {
	return StartupModel{
		ID:        p.ID,
		Name:      p.Name,
		Bio:       p.Bio,
		Website:   p.Website,
		LogoURL:   p.LogoURL,
		UpdatedAt: p.UpdatedAt,
	}
}

func startupFromModel(m StartupModel) domain.StartupProfile {
	return domain.StartupProfile{
		ID:        m.ID,
		Name:      m.Name,
		Bio:       m.Bio,
		Website:   m.Website,
		LogoURL:   m.LogoURL,
		UpdatedAt: m.UpdatedAt,
	}
}

func earningToModel(e domain.Earning) EarningModel {
	return EarningModel{
		ID:           e.ID,
		InfluencerID: e.InfluencerID,
		Amount:       e.Amount,
		Status:       string(e.Status),
		CreatedAt:    e.CreatedAt,
	}
}
