package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"kreatorboard/internal/util"
	"kreatorboard/pkg/auth"
	"kreatorboard/pkg/domain"
	"kreatorboard/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL         string
	RedisAddr           string
	RedisPassword       string
	SessionTTL          time.Duration
	RefreshTTL          time.Duration
	JWTPrivateKeyPath   string
	JWTPublicKeyPath    string
	JWTKeyID            string
	JWTVerifyPublicKeys map[string]string
	JWTIssuer           string
	JWTAudience         string
	JWTLeeway           time.Duration
	Store               store.Store
	Sessions            store.SessionStore
	RefreshTokens       store.RefreshTokenStore
}

// App is the core application service wiring together storage and auth logic.
type App struct {
	store         store.Store
	sessions      store.SessionStore
	refreshTokens store.RefreshTokenStore
	refreshTTL    time.Duration
}

// AccessFlags is what the gateway needs to decide whether a session may pass.
type AccessFlags struct {
	UserID    string `json:"userId"`
	IsBlocked bool   `json:"isBlocked"`
	IsAdmin   bool   `json:"isAdmin"`
}

// New constructs the application with database storage and session management.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}

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

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		if strings.TrimSpace(cfg.JWTPrivateKeyPath) == "" {
			return nil, fmt.Errorf("jwtPrivateKeyPath is required")
		}
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, fmt.Errorf("redisAddr is required for jwt+redis session strategy")
		}
		revoker := store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
		rsStore, err := store.NewRS256SessionStore(store.RS256SessionConfig{
			PrivateKeyPath: cfg.JWTPrivateKeyPath,
			PublicKeyPath:  cfg.JWTPublicKeyPath,
			KeyID:          cfg.JWTKeyID,
			VerifyKeyFiles: cfg.JWTVerifyPublicKeys,
			TTL:            cfg.SessionTTL,
			Revoker:        revoker,
			Issuer:         cfg.JWTIssuer,
			Audience:       cfg.JWTAudience,
			Leeway:         cfg.JWTLeeway,
		})
		if err != nil {
			return nil, fmt.Errorf("init rs256 jwt session store: %w", err)
		}
		sessionStore = rsStore
	}

	refreshStore := cfg.RefreshTokens
	if refreshStore == nil {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, fmt.Errorf("redisAddr is required for jwt+redis refresh token strategy")
		}
		refreshStore = store.NewRedisRefreshTokenStore(cfg.RedisAddr, cfg.RedisPassword)
	}

	return &App{
		store:         dataStore,
		sessions:      sessionStore,
		refreshTokens: refreshStore,
		refreshTTL:    cfg.RefreshTTL,
	}, nil
}

// SignUp registers a startup or influencer account. The very first account
// on the platform gets the admin flag so moderation can be bootstrapped.
func (a *App) SignUp(email, password, fullName string, role domain.UserRole) (domain.User, string, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	fullName = strings.TrimSpace(fullName)
	if email == "" || password == "" || fullName == "" || role == "" {
		return domain.User{}, "", "", ErrSignupFieldsRequired
	}
	if role != domain.RoleStartup && role != domain.RoleInfluencer {
		return domain.User{}, "", "", ErrInvalidRole
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", "", err
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", "", ErrEmailAlreadyExists
	}
	count, err := a.store.CountUsers()
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("count users: %w", err)
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     fullName,
		Role:         role,
		IsAdmin:      count == 0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", "", fmt.Errorf("save user: %w", err)
	}
	return a.issueUserTokens(user)
}

// Login validates credentials, refreshes identity fields on the stored row,
// and issues a token pair. Blocked accounts still log in; the gateway keeps
// them out of protected pages.
func (a *App) Login(email, password, walletAddress string) (domain.User, string, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, "", "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", "", ErrInvalidCredentials
	}
	walletAddress = strings.TrimSpace(walletAddress)
	if walletAddress != "" && walletAddress != user.WalletAddress {
		user.WalletAddress = walletAddress
		user.UpdatedAt = time.Now().UTC()
		if err := a.store.SaveUser(user); err != nil {
			return domain.User{}, "", "", fmt.Errorf("sync identity: %w", err)
		}
	}
	return a.issueUserTokens(user)
}

func (a *App) issueUserTokens(user domain.User) (domain.User, string, string, error) {
	accessToken, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err := a.refreshTokens.NewToken(user.ID, a.refreshTTL)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("issue refresh token: %w", err)
	}
	return user, accessToken, refreshToken, nil
}

// UserFromToken resolves a user from a session token. The caller decides how
// to treat blocked accounts.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// AccessFromToken resolves the moderation flags the gateway gate needs.
// A valid session whose user row is gone reports ErrUserNotFound so the
// caller can tell "no row" apart from "lookup failed".
func (a *App) AccessFromToken(token string) (AccessFlags, error) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil {
		// A bad token means "log in again"; only infrastructure failures
		// (revocation store, database) may look like an outage.
		if errors.Is(err, store.ErrSessionTokenInvalid) {
			return AccessFlags{}, ErrInvalidCredentials
		}
		return AccessFlags{}, fmt.Errorf("validate session: %w", err)
	}
	if !ok {
		return AccessFlags{}, ErrInvalidCredentials
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil {
		return AccessFlags{}, fmt.Errorf("fetch user: %w", err)
	}
	if !found {
		return AccessFlags{UserID: uid}, ErrUserNotFound
	}
	return AccessFlags{UserID: user.ID, IsBlocked: user.IsBlocked, IsAdmin: user.IsAdmin}, nil
}

// Logout invalidates the access token and optional refresh token.
func (a *App) Logout(accessToken, refreshToken string) error {
	if err := a.sessions.DeleteSession(accessToken); err != nil {
		return err
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}
	return a.refreshTokens.DeleteToken(refreshToken)
}

// Refresh rotates the refresh token and issues a new token pair.
func (a *App) Refresh(refreshToken string) (domain.User, string, string, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return domain.User{}, "", "", ErrRefreshTokenRequired
	}
	userID, newRefreshToken, err := a.refreshTokens.RotateToken(refreshToken, a.refreshTTL)
	if err != nil {
		if errors.Is(err, store.ErrInvalidRefreshToken) || errors.Is(err, store.ErrRefreshTokenReplay) {
			return domain.User{}, "", "", ErrInvalidRefreshToken
		}
		return domain.User{}, "", "", fmt.Errorf("resolve refresh token: %w", err)
	}
	user, found, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("fetch user: %w", err)
	}
	if !found {
		_ = a.refreshTokens.DeleteToken(newRefreshToken)
		return domain.User{}, "", "", ErrInvalidRefreshToken
	}
	accessToken, err := a.sessions.NewSession(user.ID)
	if err != nil {
		_ = a.refreshTokens.DeleteToken(newRefreshToken)
		return domain.User{}, "", "", fmt.Errorf("issue access token: %w", err)
	}
	return user, accessToken, newRefreshToken, nil
}

// ListUsers returns all users (admin use only).
func (a *App) ListUsers() ([]domain.User, error) {
	return a.store.ListUsers()
}

// AdminUpdateUser flips moderation flags on an account. Blocking revokes
// every outstanding session and refresh token for the target.
func (a *App) AdminUpdateUser(admin domain.User, userID string, isBlocked, isAdmin *bool) (domain.User, error) {
	target, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	if target.ID == admin.ID {
		if isBlocked != nil && *isBlocked {
			return domain.User{}, fmt.Errorf("cannot block self")
		}
		if isAdmin != nil && !*isAdmin {
			return domain.User{}, fmt.Errorf("cannot drop own admin flag")
		}
	}
	now := time.Now().UTC()
	if isBlocked != nil && *isBlocked != target.IsBlocked {
		if err := a.store.SetUserBlocked(target.ID, *isBlocked); err != nil {
			return domain.User{}, fmt.Errorf("set blocked: %w", err)
		}
		target.IsBlocked = *isBlocked
		if *isBlocked {
			if err := a.revokeAllUserTokens(target.ID, now); err != nil {
				return domain.User{}, fmt.Errorf("revoke blocked user tokens: %w", err)
			}
		}
	}
	if isAdmin != nil && *isAdmin != target.IsAdmin {
		if err := a.store.SetUserAdmin(target.ID, *isAdmin); err != nil {
			return domain.User{}, fmt.Errorf("set admin: %w", err)
		}
		target.IsAdmin = *isAdmin
	}
	target.UpdatedAt = now
	return target, nil
}

// JWKS returns public signing keys when the session store supports it.
func (a *App) JWKS() []store.JWK {
	provider, ok := a.sessions.(store.JWKSProvider)
	if !ok {
		return nil
	}
	return provider.JWKS()
}

func (a *App) revokeAllUserTokens(userID string, since time.Time) error {
	if userID == "" {
		return nil
	}
	sessionRevoker, ok := a.sessions.(store.UserSessionRevoker)
	if !ok {
		return fmt.Errorf("session store does not support user token revocation")
	}
	if err := sessionRevoker.RevokeUserSessions(userID, since); err != nil {
		return err
	}
	refreshRevoker, ok := a.refreshTokens.(store.UserRefreshTokenRevoker)
	if !ok {
		return fmt.Errorf("refresh token store does not support user token revocation")
	}
	return refreshRevoker.RevokeUserRefreshTokens(userID)
}
