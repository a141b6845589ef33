package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"kreatorboard/internal/ratelimit"
	"kreatorboard/internal/usertoken"
	"kreatorboard/internal/util"
	"kreatorboard/pkg/domain"
	"kreatorboard/services/gateway/internal/authclient"
	"kreatorboard/services/gateway/internal/chatclient"
	"kreatorboard/services/gateway/internal/gate"
	"kreatorboard/services/gateway/internal/insights"
	"kreatorboard/services/gateway/internal/marketclient"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	Auth                      *authclient.Client
	Chat                      *chatclient.Client
	Market                    *marketclient.Client
	Insights                  *insights.Client
	TokenVerifier             *usertoken.Verifier
	ChatServiceURL            string
	RedisAddr                 string
	RedisPassword             string
	SignupRateLimitPerMinute  int
	LoginRateLimitPerMinute   int
	RefreshRateLimitPerMinute int
	InsightRateLimitPerMinute int
	MaxUploadBytes            int64
	TrustedProxies            *util.TrustedProxies
}

// Server exposes the public HTTP surface of the platform.
type Server struct {
	auth           *authclient.Client
	chat           *chatclient.Client
	market         *marketclient.Client
	insights       *insights.Client
	tokenVerifier  *usertoken.Verifier
	gate           *gate.Gate
	wsProxy        http.Handler
	mux            *http.ServeMux
	maxUploadBytes int64
	trustedProxies *util.TrustedProxies
	signupLimiter  *ratelimit.FixedWindowLimiter
	loginLimiter   *ratelimit.FixedWindowLimiter
	refreshLimiter *ratelimit.FixedWindowLimiter
	insightLimiter *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	signupLimit := cfg.SignupRateLimitPerMinute
	if signupLimit <= 0 {
		signupLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	refreshLimit := cfg.RefreshRateLimitPerMinute
	if refreshLimit <= 0 {
		refreshLimit = 20
	}
	insightLimit := cfg.InsightRateLimitPerMinute
	if insightLimit <= 0 {
		insightLimit = 15
	}
	rateWindow := time.Minute
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "kreatorboard:gateway:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	signupLimiter, err := newLimiter("signup", signupLimit)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	refreshLimiter, err := newLimiter("refresh", refreshLimit)
	if err != nil {
		return nil, err
	}
	insightLimiter, err := newLimiter("insight", insightLimit)
	if err != nil {
		return nil, err
	}

	var wsProxy http.Handler
	if cfg.ChatServiceURL != "" {
		target, err := url.Parse(cfg.ChatServiceURL)
		if err != nil {
			return nil, fmt.Errorf("parse chat service URL: %w", err)
		}
		wsProxy = httputil.NewSingleHostReverseProxy(target)
	}

	s := &Server{
		auth:           cfg.Auth,
		chat:           cfg.Chat,
		market:         cfg.Market,
		insights:       cfg.Insights,
		tokenVerifier:  cfg.TokenVerifier,
		gate:           gate.New(accessChecker{auth: cfg.Auth}),
		wsProxy:        wsProxy,
		mux:            http.NewServeMux(),
		maxUploadBytes: normalizeMaxBytes(cfg.MaxUploadBytes),
		trustedProxies: cfg.TrustedProxies,
		signupLimiter:  signupLimiter,
		loginLimiter:   loginLimiter,
		refreshLimiter: refreshLimiter,
		insightLimiter: insightLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("gateway", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/refresh", s.handleRefresh)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))

	// analytics
	s.mux.Handle("/api/twitter-insight", s.authenticated(s.handleTwitterInsight))

	// admin user management
	s.mux.Handle("/api/admin/users", s.adminOnly(s.handleAdminUsers))
	s.mux.Handle("/api/admin/users/", s.adminOnly(s.handleAdminUserByID))

	// protected area: the gate fronts both prefixes
	protected := http.NewServeMux()
	protected.HandleFunc("/dashboard/campaigns", s.handleCampaigns)
	protected.HandleFunc("/dashboard/campaigns/mine", s.handleMyCampaigns)
	protected.HandleFunc("/dashboard/proposals", s.handleProposals)
	protected.HandleFunc("/dashboard/proposals/", s.handleProposalByID)
	protected.HandleFunc("/dashboard/profile/influencer", s.handleInfluencerProfile)
	protected.HandleFunc("/dashboard/profile/startup", s.handleStartupProfile)
	protected.HandleFunc("/dashboard/influencers/", s.handleInfluencerByID)
	protected.HandleFunc("/dashboard/startups/", s.handleStartupByID)
	protected.HandleFunc("/dashboard/wallet", s.handleWallet)
	protected.HandleFunc("/dashboard/wallet/withdraw", s.handleWithdraw)
	protected.HandleFunc("/dashboard/admin/stats", s.handleAdminStats)
	protected.HandleFunc("/dashboard/admin/users", s.handleDashboardAdminUsers)
	protected.HandleFunc("/dashboard/admin/users/", s.handleDashboardAdminUserByID)
	protected.HandleFunc("/chat/conversations", s.handleConversations)
	protected.HandleFunc("/chat/messages", s.handleSendMessage)
	protected.HandleFunc("/chat/messages/", s.handleThread)
	protected.HandleFunc("/chat/ws", s.handleChatWS)
	gated := gate.Middleware(s.gate, protected)
	s.mux.Handle("/dashboard/", gated)
	s.mux.Handle("/chat/", gated)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// accessChecker adapts the auth service's /auth/access endpoint to the
// gate's three-way contract.
type accessChecker struct {
	auth *authclient.Client
}

func (c accessChecker) Access(token string) (gate.Access, error) {
	flags, err := c.auth.Access(token)
	if err != nil {
		var apiErr *authclient.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.Status {
			case http.StatusUnauthorized:
				return gate.Access{}, gate.ErrInvalidSession
			case http.StatusNotFound:
				return gate.Access{}, gate.ErrUnknownUser
			}
		}
		return gate.Access{}, fmt.Errorf("access lookup: %w", err)
	}
	return gate.Access{
		UserID:    flags.UserID,
		IsBlocked: flags.IsBlocked,
		IsAdmin:   flags.IsAdmin,
	}, nil
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			s.audit(r, "gateway.authorize", "fail")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "gateway.admin.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := s.auth.Me(token)
		if err != nil {
			s.audit(r, "gateway.admin.authorize", "fail", "reason", "auth_me_failed")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !user.IsAdmin {
			s.audit(r, "gateway.admin.authorize", "fail", "user_id", user.ID, "reason", "forbidden")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	if s.tokenVerifier != nil {
		if _, err := s.tokenVerifier.VerifySubject(token); err != nil {
			s.audit(r, "gateway.token.verify", "fail", "reason", "invalid_signature_or_claims")
			return domain.User{}, false
		}
	}
	user, err := s.auth.Me(token)
	if err != nil {
		return domain.User{}, false
	}
	return user, true
}

// auth handlers
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		s.audit(r, "gateway.signup", "rate_limited")
		return
	}
	var req signupRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, accessToken, refreshToken, err := s.auth.SignUp(req.Email, req.Password, req.FullName, req.Role)
	if err != nil {
		s.audit(r, "gateway.signup", "fail", "reason", err.Error())
		writeAuthError(w, err)
		return
	}
	s.audit(r, "gateway.signup", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{
		Token:        accessToken,
		RefreshToken: refreshToken,
		User:         user,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "gateway.login", "rate_limited")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, accessToken, refreshToken, err := s.auth.Login(req.Email, req.Password, req.WalletAddress)
	if err != nil {
		s.audit(r, "gateway.login", "fail", "reason", err.Error())
		writeAuthError(w, err)
		return
	}
	s.audit(r, "gateway.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{
		Token:        accessToken,
		RefreshToken: refreshToken,
		User:         user,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.refreshLimiter, "too many refresh attempts") {
		s.audit(r, "gateway.refresh", "rate_limited")
		return
	}
	var req refreshRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, http.StatusBadRequest, "refreshToken is required")
		return
	}
	user, accessToken, refreshToken, err := s.auth.Refresh(req.RefreshToken)
	if err != nil {
		s.audit(r, "gateway.refresh", "fail", "reason", err.Error())
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		Token:        accessToken,
		RefreshToken: refreshToken,
		User:         user,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req refreshRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.auth.Logout(token, req.RefreshToken); err != nil {
		writeAuthError(w, err)
		return
	}
	s.audit(r, "gateway.logout", "success")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// analytics
func (s *Server) handleTwitterInsight(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.insightLimiter, "too many insight requests") {
		return
	}
	var req twitterInsightRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	insight, err := s.insights.Aggregate(r.Context(), req.Handle)
	if err != nil {
		writeInsightError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insight)
}

func writeInsightError(w http.ResponseWriter, err error) {
	var upstream *insights.UpstreamError
	switch {
	case errors.Is(err, insights.ErrTokenNotConfigured):
		writeError(w, http.StatusInternalServerError, "twitter API token not configured")
	case errors.Is(err, insights.ErrHandleRequired):
		writeError(w, http.StatusBadRequest, "twitter handle is required")
	case errors.Is(err, insights.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "twitter user not found")
	case errors.As(err, &upstream):
		writeError(w, upstream.Status, upstream.Message)
	default:
		slog.Error("twitter insight", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch twitter insights")
	}
}

// campaigns
func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	switch r.Method {
	case http.MethodGet:
		campaigns, err := s.market.ListOpenCampaigns(token)
		if err != nil {
			writeMarketError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse{Items: campaigns, Count: len(campaigns)})
	case http.MethodPost:
		s.forwardCreateCampaign(w, r, token)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) forwardCreateCampaign(w http.ResponseWriter, r *http.Request, token string) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	form := marketclient.CampaignForm{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Audience:    r.FormValue("audience"),
		Budget:      r.FormValue("budget"),
		StartDate:   r.FormValue("startDate"),
		EndDate:     r.FormValue("endDate"),
	}
	var brief io.Reader
	var briefName string
	file, header, err := r.FormFile("brief")
	switch {
	case err == nil:
		defer file.Close()
		brief = file
		briefName = header.Filename
	case errors.Is(err, http.ErrMissingFile):
	default:
		writeError(w, http.StatusBadRequest, "invalid brief upload")
		return
	}
	campaign, err := s.market.CreateCampaign(token, form, briefName, brief)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (s *Server) handleMyCampaigns(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	campaigns, err := s.market.ListMyCampaigns(token)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: campaigns, Count: len(campaigns)})
}

// proposals
func (s *Server) handleProposals(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	switch r.Method {
	case http.MethodGet:
		proposals, err := s.market.ListProposals(token)
		if err != nil {
			writeMarketError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse{Items: proposals, Count: len(proposals)})
	case http.MethodPost:
		var req proposalRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		proposal, err := s.market.SubmitProposal(token, req.CampaignID, req.Message)
		if err != nil {
			writeMarketError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, proposal)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleProposalByID(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/dashboard/proposals/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	var req decisionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	proposal, err := s.market.DecideProposal(token, id, req.Status)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proposal)
}

// profiles
func (s *Server) handleInfluencerProfile(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	form, filename, file, cleanup, ok := s.parseProfileForm(w, r, "mediaKit",
		[]string{"fullName", "bio", "instagram", "youtube", "twitterHandle"})
	if !ok {
		return
	}
	defer cleanup()
	profile, err := s.market.UpsertInfluencerProfile(token, form, filename, file)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleStartupProfile(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	form, filename, file, cleanup, ok := s.parseProfileForm(w, r, "logo",
		[]string{"name", "bio", "website"})
	if !ok {
		return
	}
	defer cleanup()
	profile, err := s.market.UpsertStartupProfile(token, form, filename, file)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) parseProfileForm(w http.ResponseWriter, r *http.Request, fileField string, fields []string) (marketclient.ProfileForm, string, io.Reader, func(), bool) {
	noop := func() {}
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return nil, "", nil, noop, false
	}
	form := marketclient.ProfileForm{}
	for _, name := range fields {
		form[name] = r.FormValue(name)
	}
	file, header, err := r.FormFile(fileField)
	switch {
	case err == nil:
		return form, header.Filename, file, func() { file.Close() }, true
	case errors.Is(err, http.ErrMissingFile):
		return form, "", nil, noop, true
	default:
		writeError(w, http.StatusBadRequest, "invalid file upload")
		return nil, "", nil, noop, false
	}
}

func (s *Server) handleInfluencerByID(w http.ResponseWriter, r *http.Request) {
	s.forwardProfileByID(w, r, "/dashboard/influencers/", func(token, id string) (any, error) {
		return s.market.GetInfluencerProfile(token, id)
	})
}

func (s *Server) handleStartupByID(w http.ResponseWriter, r *http.Request) {
	s.forwardProfileByID(w, r, "/dashboard/startups/", func(token, id string) (any, error) {
		return s.market.GetStartupProfile(token, id)
	})
}

func (s *Server) forwardProfileByID(w http.ResponseWriter, r *http.Request, prefix string, fetch func(token, id string) (any, error)) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, prefix)
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	profile, err := fetch(token, id)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// wallet
func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	summary, err := s.market.Wallet(token)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	result, err := s.market.Withdraw(token)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// admin area behind the gate
func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.market.AdminStats(token)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDashboardAdminUsers(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	users, err := s.auth.AdminListUsers(token)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: users, Count: len(users)})
}

func (s *Server) handleDashboardAdminUserByID(w http.ResponseWriter, r *http.Request) {
	s.forwardAdminUserUpdate(w, r, "/dashboard/admin/users/")
}

// /api/admin handlers reuse the same forwarding
func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, _ domain.User) {
	s.handleDashboardAdminUsers(w, r)
}

func (s *Server) handleAdminUserByID(w http.ResponseWriter, r *http.Request, _ domain.User) {
	s.forwardAdminUserUpdate(w, r, "/api/admin/users/")
}

func (s *Server) forwardAdminUserUpdate(w http.ResponseWriter, r *http.Request, prefix string) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, prefix)
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	var req adminUserUpdateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.IsBlocked == nil && req.IsAdmin == nil {
		writeError(w, http.StatusBadRequest, "isBlocked or isAdmin is required")
		return
	}
	updated, err := s.auth.AdminUpdateUser(token, id, req.IsBlocked, req.IsAdmin)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	s.audit(r, "gateway.admin.user.update", "success", "target_user_id", id)
	writeJSON(w, http.StatusOK, updated)
}

// chat
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	conversations, err := s.chat.Conversations(token)
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: conversations, Count: len(conversations)})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	msg, err := s.chat.Send(token, req.ReceiverID, req.Message)
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	partnerID := strings.TrimPrefix(r.URL.Path, "/chat/messages/")
	if partnerID == "" || strings.Contains(partnerID, "/") {
		http.NotFound(w, r)
		return
	}
	thread, err := s.chat.Thread(token, partnerID)
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

// handleChatWS forwards websocket upgrades to the chat service; the gate
// has already vetted the token query parameter.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	if s.wsProxy == nil {
		writeError(w, http.StatusServiceUnavailable, "chat service unavailable")
		return
	}
	s.wsProxy.ServeHTTP(w, r)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	WalletAddress string `json:"walletAddress"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken,omitempty"`
	User         domain.User `json:"user"`
}

type twitterInsightRequest struct {
	Handle string `json:"handle"`
}

type proposalRequest struct {
	CampaignID string `json:"campaignId"`
	Message    string `json:"message"`
}

type decisionRequest struct {
	Status string `json:"status"`
}

type sendMessageRequest struct {
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
}

type adminUserUpdateRequest struct {
	IsBlocked *bool `json:"isBlocked"`
	IsAdmin   *bool `json:"isAdmin"`
}

type listResponse struct {
	Items any `json:"items"`
	Count int `json:"count"`
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token != "" {
			return token, true
		}
	}
	// websocket upgrades carry the token as a query parameter
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token, true
	}
	return "", false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 10 * 1024 * 1024
	}
	return value
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func writeAuthError(w http.ResponseWriter, err error) {
	var apiErr *authclient.APIError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.Status, apiErr.Message)
		return
	}
	writeError(w, http.StatusBadGateway, "auth service unavailable")
}

func writeMarketError(w http.ResponseWriter, err error) {
	var apiErr *marketclient.APIError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.Status, apiErr.Message)
		return
	}
	writeError(w, http.StatusBadGateway, "marketplace service unavailable")
}

func writeChatError(w http.ResponseWriter, err error) {
	var apiErr *chatclient.APIError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.Status, apiErr.Message)
		return
	}
	writeError(w, http.StatusBadGateway, "chat service unavailable")
}
