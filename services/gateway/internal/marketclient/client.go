package marketclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"kreatorboard/pkg/domain"
)

// Client calls the marketplace service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError represents a marketplace service error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs a marketplace service client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CampaignForm is the multipart payload for campaign creation.
type CampaignForm struct {
	Name        string
	Description string
	Audience    string
	Budget      string
	StartDate   string
	EndDate     string
}

func (c *Client) CreateCampaign(token string, form CampaignForm, briefFilename string, brief io.Reader) (domain.Campaign, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fields := map[string]string{
		"name":        form.Name,
		"description": form.Description,
		"audience":    form.Audience,
		"budget":      form.Budget,
		"startDate":   form.StartDate,
		"endDate":     form.EndDate,
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return domain.Campaign{}, err
		}
	}
	if brief != nil {
		part, err := writer.CreateFormFile("brief", briefFilename)
		if err != nil {
			return domain.Campaign{}, err
		}
		if _, err := io.Copy(part, brief); err != nil {
			return domain.Campaign{}, err
		}
	}
	if err := writer.Close(); err != nil {
		return domain.Campaign{}, err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/market/campaigns", body)
	if err != nil {
		return domain.Campaign{}, err
	}
	addAuthHeader(req, token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var campaign domain.Campaign
	if err := c.do(req, &campaign); err != nil {
		return domain.Campaign{}, err
	}
	return campaign, nil
}

func (c *Client) ListOpenCampaigns(token string) ([]domain.Campaign, error) {
	var resp struct {
		Items []domain.Campaign `json:"items"`
	}
	if err := c.getJSON(token, "/market/campaigns", &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) ListMyCampaigns(token string) ([]domain.Campaign, error) {
	var resp struct {
		Items []domain.Campaign `json:"items"`
	}
	if err := c.getJSON(token, "/market/campaigns/mine", &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) SubmitProposal(token, campaignID, message string) (domain.Proposal, error) {
	payload := map[string]string{"campaignId": campaignID, "message": message}
	var proposal domain.Proposal
	if err := c.postJSON(token, "/market/proposals", payload, &proposal); err != nil {
		return domain.Proposal{}, err
	}
	return proposal, nil
}

func (c *Client) ListProposals(token string) ([]domain.Proposal, error) {
	var resp struct {
		Items []domain.Proposal `json:"items"`
	}
	if err := c.getJSON(token, "/market/proposals", &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) DecideProposal(token, proposalID, status string) (domain.Proposal, error) {
	payload := map[string]string{"status": status}
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.Proposal{}, err
	}
	path := fmt.Sprintf("%s/market/proposals/%s", c.baseURL, proposalID)
	req, err := http.NewRequest(http.MethodPatch, path, bytes.NewReader(data))
	if err != nil {
		return domain.Proposal{}, err
	}
	addAuthHeader(req, token)
	req.Header.Set("Content-Type", "application/json")

	var proposal domain.Proposal
	if err := c.do(req, &proposal); err != nil {
		return domain.Proposal{}, err
	}
	return proposal, nil
}

// ProfileForm carries the text fields of a profile update; the keys match
// the marketplace form field names.
type ProfileForm map[string]string

func (c *Client) UpsertInfluencerProfile(token string, form ProfileForm, kitFilename string, mediaKit io.Reader) (domain.InfluencerProfile, error) {
	var profile domain.InfluencerProfile
	if err := c.putMultipart(token, "/market/influencers/me", form, "mediaKit", kitFilename, mediaKit, &profile); err != nil {
		return domain.InfluencerProfile{}, err
	}
	return profile, nil
}

func (c *Client) GetInfluencerProfile(token, id string) (domain.InfluencerProfile, error) {
	var profile domain.InfluencerProfile
	if err := c.getJSON(token, "/market/influencers/"+id, &profile); err != nil {
		return domain.InfluencerProfile{}, err
	}
	return profile, nil
}

func (c *Client) UpsertStartupProfile(token string, form ProfileForm, logoFilename string, logo io.Reader) (domain.StartupProfile, error) {
	var profile domain.StartupProfile
	if err := c.putMultipart(token, "/market/startups/me", form, "logo", logoFilename, logo, &profile); err != nil {
		return domain.StartupProfile{}, err
	}
	return profile, nil
}

func (c *Client) GetStartupProfile(token, id string) (domain.StartupProfile, error) {
	var profile domain.StartupProfile
	if err := c.getJSON(token, "/market/startups/"+id, &profile); err != nil {
		return domain.StartupProfile{}, err
	}
	return profile, nil
}

func (c *Client) Wallet(token string) (domain.EarningsSummary, error) {
	var summary domain.EarningsSummary
	if err := c.getJSON(token, "/market/wallet", &summary); err != nil {
		return domain.EarningsSummary{}, err
	}
	return summary, nil
}

// WithdrawResult reports how much a simulated withdrawal moved.
type WithdrawResult struct {
	Withdrawn int64 `json:"withdrawn"`
}

func (c *Client) Withdraw(token string) (WithdrawResult, error) {
	var result WithdrawResult
	if err := c.postJSON(token, "/market/wallet/withdraw", nil, &result); err != nil {
		return WithdrawResult{}, err
	}
	return result, nil
}

func (c *Client) AdminStats(token string) (domain.AdminStats, error) {
	var stats domain.AdminStats
	if err := c.getJSON(token, "/market/admin/stats", &stats); err != nil {
		return domain.AdminStats{}, err
	}
	return stats, nil
}

func (c *Client) getJSON(token, path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	addAuthHeader(req, token)
	return c.do(req, out)
}

func (c *Client) postJSON(token, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	addAuthHeader(req, token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) putMultipart(token, path string, form ProfileForm, fileField, filename string, file io.Reader, out any) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range form {
		if err := writer.WriteField(name, value); err != nil {
			return err
		}
	}
	if file != nil {
		part, err := writer.CreateFormFile(fileField, filename)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, file); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPut, c.baseURL+path, body)
	if err != nil {
		return err
	}
	addAuthHeader(req, token)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
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

func addAuthHeader(req *http.Request, token string) {
	if strings.TrimSpace(token) == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}
