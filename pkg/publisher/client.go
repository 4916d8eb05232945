package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tc.com/oracle-relayer/pkg/logging"
)

const (
	exchangePath = "/exchange"
	multisigPath = "/exchange/multisig"
)

// client posts signed actions to the venue with endpoint failover.
type client struct {
	urls   []string
	path   string
	http   *http.Client
	logger *logging.Logger
}

func newClient(urls []string, path string, timeout time.Duration, logger *logging.Logger) *client {
	return &client{
		urls:   urls,
		path:   path,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// post tries each endpoint in order and returns the first decoded response.
// Transport failures and non-200 statuses move on to the next endpoint; an
// exhausted list is ErrPushFailed.
func (c *client) post(ctx context.Context, body interface{}) (pushResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return pushResponse{}, err
	}

	for _, url := range c.urls {
		resp, err := c.postOne(ctx, url, payload)
		if err != nil {
			c.logger.Error("push endpoint failed", "url", url, "error", err)
			continue
		}
		return resp, nil
	}
	return pushResponse{}, ErrPushFailed
}

func (c *client) postOne(ctx context.Context, url string, payload []byte) (pushResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+c.path, bytes.NewReader(payload))
	if err != nil {
		return pushResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return pushResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pushResponse{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var decoded pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return pushResponse{}, err
	}
	return decoded, nil
}
