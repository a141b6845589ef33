package authclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kreatorboard/pkg/domain"
)

// Client calls the auth service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError represents an auth service error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// AccessFlags is the auth service's block/admin lookup result.
type AccessFlags struct {
	UserID    string `json:"userId"`
	IsBlocked bool   `json:"isBlocked"`
	IsAdmin   bool   `json:"isAdmin"`
}

// NewClient constructs an auth service client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) SignUp(email, password, fullName, role string) (domain.User, string, string, error) {
	payload := map[string]string{
		"email":    email,
		"password": password,
		"fullName": fullName,
		"role":     role,
	}
	var resp authResponse
	if err := c.doJSON(http.MethodPost, "/auth/signup", "", payload, &resp); err != nil {
		return domain.User{}, "", "", err
	}
	return resp.User, resp.Token, resp.RefreshToken, nil
}

func (c *Client) Login(email, password, walletAddress string) (domain.User, string, string, error) {
	payload := map[string]string{
		"email":         email,
		"password":      password,
		"walletAddress": walletAddress,
	}
	var resp authResponse
	if err := c.doJSON(http.MethodPost, "/auth/login", "", payload, &resp); err != nil {
		return domain.User{}, "", "", err
	}
	return resp.User, resp.Token, resp.RefreshToken, nil
}

func (c *Client) Refresh(refreshToken string) (domain.User, string, string, error) {
	payload := map[string]string{"refreshToken": refreshToken}
	var resp authResponse
	if err := c.doJSON(http.MethodPost, "/auth/refresh", "", payload, &resp); err != nil {
		return domain.User{}, "", "", err
	}
	return resp.User, resp.Token, resp.RefreshToken, nil
}

func (c *Client) Logout(token, refreshToken string) error {
	var payload any
	if strings.TrimSpace(refreshToken) != "" {
		payload = map[string]string{"refreshToken": refreshToken}
	}
	return c.doJSON(http.MethodPost, "/auth/logout", token, payload, nil)
}

func (c *Client) Me(token string) (domain.User, error) {
	var user domain.User
	if err := c.doJSON(http.MethodGet, "/auth/me", token, nil, &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Access performs the block/admin lookup for the gate. The auth service
// answers 401 for an invalid session, 404 when the user row is gone and
// 200 with flags otherwise; both error statuses surface as *APIError.
func (c *Client) Access(token string) (AccessFlags, error) {
	var flags AccessFlags
	if err := c.doJSON(http.MethodGet, "/auth/access", token, nil, &flags); err != nil {
		return AccessFlags{}, err
	}
	return flags, nil
}

func (c *Client) AdminListUsers(token string) ([]domain.User, error) {
	var resp listUsersResponse
	if err := c.doJSON(http.MethodGet, "/auth/admin/users", token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) AdminUpdateUser(token, userID string, isBlocked, isAdmin *bool) (domain.User, error) {
	payload := map[string]any{}
	if isBlocked != nil {
		payload["isBlocked"] = *isBlocked
	}
	if isAdmin != nil {
		payload["isAdmin"] = *isAdmin
	}
	var user domain.User
	path := fmt.Sprintf("/auth/admin/users/%s", userID)
	if err := c.doJSON(http.MethodPatch, path, token, payload, &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (c *Client) doJSON(method, path, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	url := c.baseURL + path
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}
	return nil
}

type authResponse struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
	User         domain.User `json:"user"`
}

type listUsersResponse struct {
	Items []domain.User `json:"items"`
	Count int           `json:"count"`
}
