package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voice-relay/internal/apperr"
	"voice-relay/internal/calls"
)

const defaultTwilioBaseURL = "https://api.twilio.com/2010-04-01"

var ErrNotConfigured = apperr.New(apperr.KindConfiguration, "Twilio credentials not configured")

// Client is a small Twilio REST client covering outbound calls and the
// account lookup used for credential checks.
type Client struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

type ClientConfig struct {
	AccountSID string
	AuthToken  string
	// BaseURL overrides the API root; tests point it at httptest.
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient never fails; calls made without credentials return ErrNotConfigured.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultTwilioBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (c *Client) Configured() bool {
	return c.accountSID != "" && c.authToken != ""
}

// Call is the subset of the Twilio call resource we read.
type Call struct {
	SID    string `json:"sid"`
	To     string `json:"to"`
	From   string `json:"from"`
	Status string `json:"status"`
}

// PlaceCall creates an outbound call that fetches its script from d.URL and
// reports progress to d.StatusCallback.
func (c *Client) PlaceCall(ctx context.Context, d calls.Dial) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.baseURL, c.accountSID)

	data := url.Values{}
	data.Set("To", d.To)
	data.Set("From", d.From)
	data.Set("Url", d.URL)
	if d.StatusCallback != "" {
		data.Set("StatusCallback", d.StatusCallback)
		data.Set("StatusCallbackMethod", http.MethodPost)
	}

	var call Call
	if err := c.post(ctx, endpoint, data, &call); err != nil {
		return "", err
	}
	return call.SID, nil
}

// Account is the subset of the Twilio account resource we report.
type Account struct {
	SID          string `json:"sid"`
	FriendlyName string `json:"friendly_name"`
	Status       string `json:"status"`
	Type         string `json:"type"`
}

// FetchAccount loads the configured account; a success proves the credentials work.
func (c *Client) FetchAccount(ctx context.Context) (Account, error) {
	if !c.Configured() {
		return Account{}, ErrNotConfigured
	}
	endpoint := fmt.Sprintf("%s/Accounts/%s.json", c.baseURL, c.accountSID)

	var acct Account
	if err := c.get(ctx, endpoint, &acct); err != nil {
		return Account{}, err
	}
	return acct, nil
}

// Error is a Twilio API error body.
type Error struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("twilio error %d: %s", e.Code, e.Message)
}

func (c *Client) get(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, endpoint string, data url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr Error
		if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
			return fmt.Errorf("twilio error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return &apiErr
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to parse twilio response: %w", err)
		}
	}
	return nil
}
