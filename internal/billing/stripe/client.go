package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	billingdomain "github.com/lunaglowlabs/lunaglow/internal/billing/domain"
)

const defaultBaseURL = "https://api.stripe.com"

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 12 * time.Second},
	}
}

type stripeError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type customerList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type subscriptionList struct {
	Data []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

type coupon struct {
	ID string `json:"id"`
}

func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", billingdomain.ErrCustomerNotFound
	}

	query := url.Values{}
	query.Set("email", email)
	query.Set("limit", "1")

	var out customerList
	if err := c.do(ctx, http.MethodGet, "/v1/customers?"+query.Encode(), nil, "", &out); err != nil {
		return "", err
	}
	if len(out.Data) == 0 || strings.TrimSpace(out.Data[0].ID) == "" {
		return "", billingdomain.ErrCustomerNotFound
	}
	return out.Data[0].ID, nil
}

func (c *Client) HasActiveSubscription(ctx context.Context, customerID string) (bool, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return false, billingdomain.ErrCustomerNotFound
	}

	query := url.Values{}
	query.Set("customer", customerID)
	query.Set("status", "active")
	query.Set("limit", "1")

	var out subscriptionList
	if err := c.do(ctx, http.MethodGet, "/v1/subscriptions?"+query.Encode(), nil, "", &out); err != nil {
		return false, err
	}
	return len(out.Data) > 0, nil
}

func (c *Client) ApplyDiscount(ctx context.Context, customerID string, percent float64, durationMonths int) (string, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return "", billingdomain.ErrCustomerNotFound
	}
	if durationMonths <= 0 {
		durationMonths = 1
	}

	values := url.Values{}
	values.Set("percent_off", strconv.FormatFloat(percent, 'f', -1, 64))
	if durationMonths == 1 {
		values.Set("duration", "once")
	} else {
		values.Set("duration", "repeating")
		values.Set("duration_in_months", strconv.Itoa(durationMonths))
	}
	values.Set("metadata[source]", "referral_reward")

	var created coupon
	if err := c.do(ctx, http.MethodPost, "/v1/coupons", values, "referral_reward:"+customerID, &created); err != nil {
		return "", err
	}
	if strings.TrimSpace(created.ID) == "" {
		return "", fmt.Errorf("%w: empty coupon id", billingdomain.ErrProviderFailure)
	}

	attach := url.Values{}
	attach.Set("coupon", created.ID)
	if err := c.do(ctx, http.MethodPost, "/v1/customers/"+customerID, attach, "", nil); err != nil {
		return "", err
	}

	return created.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, values url.Values, idempotencyKey string, out any) error {
	if c.apiKey == "" {
		return fmt.Errorf("%w: missing api key", billingdomain.ErrProviderFailure)
	}

	var body *strings.Reader
	if values != nil {
		body = strings.NewReader(values.Encode())
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr stripeError
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err != nil {
			return billingdomain.ErrProviderFailure
		}
		message := strings.TrimSpace(stripeErr.Error.Message)
		if message == "" {
			return billingdomain.ErrProviderFailure
		}
		return errors.Join(billingdomain.ErrProviderFailure, errors.New(message))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
