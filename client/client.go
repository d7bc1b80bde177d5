package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const validatorSetResource = "0x1::stake::ValidatorSet"

// requestTimeout bounds every fullnode call so a hung request can never
// stall the poll cycle.
const requestTimeout = 10 * time.Second

var networkHosts = map[string]string{
	"mainnet": "https://fullnode.mainnet.aptoslabs.com",
	"testnet": "https://fullnode.testnet.aptoslabs.com",
	"devnet":  "https://fullnode.devnet.aptoslabs.com",
}

// Client issues the three fullnode REST calls the streamer needs. It does no
// retrying of its own; retry policy belongs to the poll engine.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logrus.Entry
}

// New builds a client for a named network. nodeApi, when non-empty,
// overrides the well-known fullnode host.
func New(network, nodeApi string, logger *logrus.Entry) (*Client, error) {
	base := nodeApi
	if base == "" {
		host, ok := networkHosts[network]
		if !ok {
			return nil, fmt.Errorf("unknown network %q and no node_api override", network)
		}
		base = host
	}
	return &Client{
		baseURL: base + "/v1",
		http:    &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// LedgerInfo fetches the chain head summary (GET /v1).
func (c *Client) LedgerInfo(ctx context.Context) (*LedgerInfo, error) {
	info := new(LedgerInfo)
	if err := c.get(ctx, c.baseURL, info); err != nil {
		return nil, err
	}
	return info, nil
}

// BlockByHeight fetches one block, with its embedded transactions when
// withTransactions is set.
func (c *Client) BlockByHeight(ctx context.Context, height uint64, withTransactions bool) (*Block, error) {
	url := fmt.Sprintf("%s/blocks/by_height/%d", c.baseURL, height)
	if withTransactions {
		url += "?with_transactions=true"
	}
	b := new(Block)
	if err := c.get(ctx, url, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ValidatorSet fetches the active validator set account resource.
func (c *Client) ValidatorSet(ctx context.Context) (*ValidatorSetData, error) {
	url := fmt.Sprintf("%s/accounts/0x1/resource/%s", c.baseURL, validatorSetResource)
	res := new(ValidatorSetResource)
	if err := c.get(ctx, url, res); err != nil {
		return nil, err
	}
	return &res.Data, nil
}

func (c *Client) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &FetchError{Err: err}
	}
	// Intermediate caches must not serve a stale head.
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{RetryAfter: retryAfterOf(resp)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{Err: err}
	}
	return nil
}

func retryAfterOf(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return DefaultRetryAfter
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return DefaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}
