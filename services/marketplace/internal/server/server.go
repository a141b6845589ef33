package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"kreatorboard/internal/usertoken"
	"kreatorboard/internal/util"
	"kreatorboard/pkg/domain"
	"kreatorboard/services/marketplace/internal/app"
)

const maxUploadBytes = 10 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App           *app.App
	TokenVerifier *usertoken.Verifier
}

// Server exposes HTTP endpoints for the marketplace service.
type Server struct {
	app           *app.App
	tokenVerifier *usertoken.Verifier
	mux           *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:           cfg.App,
		tokenVerifier: cfg.TokenVerifier,
		mux:           http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("marketplace", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.Handle("/market/campaigns", s.withUser(s.handleCampaigns))
	s.mux.Handle("/market/campaigns/mine", s.withUser(s.handleMyCampaigns))
	s.mux.Handle("/market/proposals", s.withUser(s.handleProposals))
	s.mux.Handle("/market/proposals/", s.withUser(s.handleProposalByID))
	s.mux.Handle("/market/influencers/me", s.withUser(s.handleMyInfluencerProfile))
	s.mux.Handle("/market/influencers/", s.withUser(s.handleInfluencerByID))
	s.mux.Handle("/market/startups/me", s.withUser(s.handleMyStartupProfile))
	s.mux.Handle("/market/startups/", s.withUser(s.handleStartupByID))
	s.mux.Handle("/market/wallet", s.withUser(s.handleWallet))
	s.mux.Handle("/market/wallet/withdraw", s.withUser(s.handleWithdraw))
	s.mux.Handle("/market/admin/stats", s.adminOnly(s.handleAdminStats))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, ok := s.userFromToken(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if user.IsBlocked {
			writeError(w, http.StatusForbidden, "account blocked")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) adminOnly(next userHandler) http.Handler {
	return s.withUser(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if !user.IsAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) userFromToken(token string) (domain.User, bool) {
	if s.tokenVerifier == nil {
		return domain.User{}, false
	}
	userID, err := s.tokenVerifier.VerifySubject(token)
	if err != nil {
		return domain.User{}, false
	}
	user, ok, err := s.app.UserByID(userID)
	if err != nil || !ok {
		return domain.User{}, false
	}
	return user, true
}

// campaigns
func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.app.ListOpenCampaigns()
		if err != nil {
			slog.Error("list campaigns", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, listResponse{Items: items, Count: len(items)})
	case http.MethodPost:
		s.createCampaign(w, r, user)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) createCampaign(w http.ResponseWriter, r *http.Request, user domain.User) {
	input, brief, cleanup, err := parseCampaignRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()
	campaign, err := s.app.CreateCampaign(r.Context(), user, input, brief)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrStartupRoleRequired):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, app.ErrCampaignFieldsRequired), errors.Is(err, app.ErrNegativeBudget):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			slog.Error("create campaign", "err", err, "user", user.ID)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

// parseCampaignRequest accepts JSON for plain campaigns and multipart when a
// brief file rides along.
func parseCampaignRequest(r *http.Request) (app.CampaignInput, *app.Upload, func(), error) {
	noop := func() {}
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return app.CampaignInput{}, nil, noop, errors.New("invalid multipart body")
		}
		budget, err := parseBudget(r.FormValue("budget"))
		if err != nil {
			return app.CampaignInput{}, nil, noop, err
		}
		input := app.CampaignInput{
			Name:        r.FormValue("name"),
			Description: r.FormValue("description"),
			Audience:    r.FormValue("audience"),
			Budget:      budget,
			StartDate:   r.FormValue("startDate"),
			EndDate:     r.FormValue("endDate"),
		}
		upload, cleanup, err := formUpload(r, "brief")
		if err != nil {
			return app.CampaignInput{}, nil, noop, err
		}
		return input, upload, cleanup, nil
	}

	var req campaignRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		return app.CampaignInput{}, nil, noop, errors.New("invalid JSON body")
	}
	return app.CampaignInput{
		Name:        req.Name,
		Description: req.Description,
		Audience:    req.Audience,
		Budget:      req.Budget,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}, nil, noop, nil
}

func parseBudget(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	budget, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New("invalid budget")
	}
	return budget, nil
}

func formUpload(r *http.Request, field string) (*app.Upload, func(), error) {
	noop := func() {}
	file, header, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, errors.New("invalid " + field + " upload")
	}
	return &app.Upload{
		Reader:      file,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
	}, func() { _ = file.Close() }, nil
}

func (s *Server) handleMyCampaigns(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	items, err := s.app.ListMyCampaigns(user)
	if err != nil {
		slog.Error("list own campaigns", "err", err, "user", user.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: items, Count: len(items)})
}

// proposals
func (s *Server) handleProposals(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.app.ListProposals(user)
		if err != nil {
			slog.Error("list proposals", "err", err, "user", user.ID)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, listResponse{Items: items, Count: len(items)})
	case http.MethodPost:
		var req proposalRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		proposal, err := s.app.SubmitProposal(user, req.CampaignID, req.Message)
		if err != nil {
			switch {
			case errors.Is(err, app.ErrInfluencerRoleRequired):
				writeError(w, http.StatusForbidden, err.Error())
			case errors.Is(err, app.ErrCampaignNotFound):
				writeError(w, http.StatusNotFound, err.Error())
			case errors.Is(err, app.ErrProposalMessageRequired):
				writeError(w, http.StatusBadRequest, err.Error())
			default:
				slog.Error("submit proposal", "err", err, "user", user.ID)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
			return
		}
		writeJSON(w, http.StatusCreated, proposal)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleProposalByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/market/proposals/")
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
	proposal, err := s.app.DecideProposal(user, id, domain.ProposalStatus(strings.ToLower(strings.TrimSpace(req.Status))))
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidDecision):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrProposalNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, app.ErrNotCampaignOwner):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, app.ErrProposalAlreadyDecided):
			writeError(w, http.StatusConflict, err.Error())
		default:
			slog.Error("decide proposal", "err", err, "user", user.ID, "proposal", id)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, proposal)
}

// profiles
func (s *Server) handleMyInfluencerProfile(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	profile, upload, cleanup, err := parseInfluencerProfileRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()
	saved, err := s.app.UpsertInfluencerProfile(r.Context(), user, profile, upload)
	if err != nil {
		if errors.Is(err, app.ErrInfluencerRoleRequired) {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		slog.Error("save influencer profile", "err", err, "user", user.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func parseInfluencerProfileRequest(r *http.Request) (domain.InfluencerProfile, *app.Upload, func(), error) {
	noop := func() {}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return domain.InfluencerProfile{}, nil, noop, errors.New("invalid multipart body")
		}
		profile := domain.InfluencerProfile{
			FullName:      r.FormValue("fullName"),
			Bio:           r.FormValue("bio"),
			Instagram:     r.FormValue("instagram"),
			Youtube:       r.FormValue("youtube"),
			TwitterHandle: r.FormValue("twitterHandle"),
		}
		upload, cleanup, err := formUpload(r, "mediaKit")
		if err != nil {
			return domain.InfluencerProfile{}, nil, noop, err
		}
		return profile, upload, cleanup, nil
	}
	var profile domain.InfluencerProfile
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&profile); err != nil {
		return domain.InfluencerProfile{}, nil, noop, errors.New("invalid JSON body")
	}
	return profile, nil, noop, nil
}

func (s *Server) handleInfluencerByID(w http.ResponseWriter, r *http.Request, _ domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/market/influencers/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	profile, ok, err := s.app.GetInfluencerProfile(id)
	if err != nil {
		slog.Error("fetch influencer profile", "err", err, "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleMyStartupProfile(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	profile, upload, cleanup, err := parseStartupProfileRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()
	saved, err := s.app.UpsertStartupProfile(r.Context(), user, profile, upload)
	if err != nil {
		if errors.Is(err, app.ErrStartupRoleRequired) {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		slog.Error("save startup profile", "err", err, "user", user.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func parseStartupProfileRequest(r *http.Request) (domain.StartupProfile, *app.Upload, func(), error) {
	noop := func() {}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return domain.StartupProfile{}, nil, noop, errors.New("invalid multipart body")
		}
		profile := domain.StartupProfile{
			Name:    r.FormValue("name"),
			Bio:     r.FormValue("bio"),
			Website: r.FormValue("website"),
		}
		upload, cleanup, err := formUpload(r, "logo")
		if err != nil {
			return domain.StartupProfile{}, nil, noop, err
		}
		return profile, upload, cleanup, nil
	}
	var profile domain.StartupProfile
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&profile); err != nil {
		return domain.StartupProfile{}, nil, noop, errors.New("invalid JSON body")
	}
	return profile, nil, noop, nil
}

func (s *Server) handleStartupByID(w http.ResponseWriter, r *http.Request, _ domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/market/startups/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	profile, ok, err := s.app.GetStartupProfile(id)
	if err != nil {
		slog.Error("fetch startup profile", "err", err, "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// wallet
func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	summary, err := s.app.EarningsSummary(user)
	if err != nil {
		if errors.Is(err, app.ErrInfluencerRoleRequired) {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		slog.Error("wallet summary", "err", err, "user", user.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	amount, err := s.app.Withdraw(user)
	if err != nil {
		if errors.Is(err, app.ErrInfluencerRoleRequired) {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		slog.Error("withdraw", "err", err, "user", user.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"withdrawn": amount})
}

// admin
func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.AdminStats(r.Context())
	if err != nil {
		slog.Error("admin stats", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type campaignRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Audience    string `json:"audience"`
	Budget      int64  `json:"budget"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
}

type proposalRequest struct {
	CampaignID string `json:"campaignId"`
	Message    string `json:"message"`
}

type decisionRequest struct {
	Status string `json:"status"`
}

type listResponse struct {
	Items any `json:"items"`
	Count int `json:"count"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
