package balance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/baely/balance/pkg/model"

	"github.com/baely/tab/internal/common/errors"
)

// DefaultUpBaseURI is the Up Banking API root
const DefaultUpBaseURI = "https://api.up.com.au/api/v1/"

// UpClient is a minimal read-only client for the Up API
type UpClient struct {
	baseURI     string
	accessToken string
	client      *http.Client
}

// NewUpClient creates a client for baseURI. An empty baseURI means the public API.
func NewUpClient(baseURI, accessToken string) *UpClient {
	if baseURI == "" {
		baseURI = DefaultUpBaseURI
	}
	if !strings.HasSuffix(baseURI, "/") {
		baseURI += "/"
	}
	return &UpClient{
		baseURI:     baseURI,
		accessToken: accessToken,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *UpClient) request(ctx context.Context, endpoint string, ret interface{}) error {
	uri := fmt.Sprintf("%s%s", c.baseURI, endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.accessToken))

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to execute request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(ret); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}

	return nil
}

// GetAccount fetches one account
func (c *UpClient) GetAccount(ctx context.Context, accountId string) (model.AccountResource, error) {
	var resp model.GetAccountResponse

	endpoint := fmt.Sprintf("accounts/%s", accountId)

	err := c.request(ctx, endpoint, &resp)
	if err != nil {
		return model.AccountResource{}, err
	}

	return resp.Data, nil
}

// GetTransaction fetches one transaction
func (c *UpClient) GetTransaction(ctx context.Context, transactionId string) (model.TransactionResource, error) {
	var resp model.GetTransactionResponse

	endpoint := fmt.Sprintf("transactions/%s", transactionId)

	err := c.request(ctx, endpoint, &resp)
	if err != nil {
		return model.TransactionResource{}, err
	}

	return resp.Data, nil
}

// Sign returns the hex HMAC-SHA256 of payload, as Up sends it in
// X-Up-Authenticity-Signature
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidateWebhookEvent checks signature against payload. An empty secret
// never validates.
func ValidateWebhookEvent(payload []byte, signature, secret string) bool {
	if secret == "" {
		return false
	}
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	expected, _ := hex.DecodeString(Sign(payload, secret))
	return hmac.Equal(sig, expected)
}
