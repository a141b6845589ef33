package chatclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"kreatorboard/pkg/domain"
)

// Client calls the chat service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError represents a chat service error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs a chat service client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Conversations(token string) ([]domain.Conversation, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/chat/conversations", nil)
	if err != nil {
		return nil, err
	}
	addAuthHeader(req, token)

	var resp conversationsResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Thread is one conversation's partner plus its messages in send order.
type Thread struct {
	Partner  domain.User      `json:"partner"`
	Messages []domain.Message `json:"messages"`
}

func (c *Client) Thread(token, partnerID string) (Thread, error) {
	path := fmt.Sprintf("%s/chat/messages/%s", c.baseURL, partnerID)
	req, err := http.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return Thread{}, err
	}
	addAuthHeader(req, token)

	var thread Thread
	if err := c.do(req, &thread); err != nil {
		return Thread{}, err
	}
	return thread, nil
}

func (c *Client) Send(token, receiverID, message string) (domain.Message, error) {
	payload := sendRequest{ReceiverID: receiverID, Message: message}
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.Message{}, err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/chat/messages", bytes.NewReader(data))
	if err != nil {
		return domain.Message{}, err
	}
	addAuthHeader(req, token)
	req.Header.Set("Content-Type", "application/json")

	var msg domain.Message
	if err := c.do(req, &msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
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

type sendRequest struct {
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
}

type conversationsResponse struct {
	Items []domain.Conversation `json:"items"`
	Count int                   `json:"count"`
}
