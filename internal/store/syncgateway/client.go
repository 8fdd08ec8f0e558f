// Package syncgateway replicates user records into a Sync Gateway admin API
// so mobile and web clients can sync against the same backend.
package syncgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	URL      string
	Database string
	Username string
	Password string
	Timeout  time.Duration
}

type Client struct {
	baseURL  string
	database string
	username string
	password string
	httpc    *http.Client
}

// UserRecord is the public shape mirrored for each user. Password is the
// plaintext credential and is only set when it changes; Sync Gateway needs
// it to authenticate its own clients.
type UserRecord struct {
	Name          string   `json:"name"`
	Password      string   `json:"password,omitempty"`
	Email         string   `json:"email,omitempty"`
	AdminRoles    []string `json:"admin_roles"`
	AdminChannels []string `json:"admin_channels"`
	Disabled      bool     `json:"disabled"`
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		database: cfg.Database,
		username: cfg.Username,
		password: cfg.Password,
		httpc:    &http.Client{Timeout: timeout},
	}
}

// UpsertUser PUTs the record to the admin endpoint and requires a 200 or
// 201 response. There is no retry: a failure here aborts the calling
// request even though the primary store write already happened.
func (c *Client) UpsertUser(ctx context.Context, rec UserRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode sync gateway user: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/_user/%s", c.baseURL, c.database, url.PathEscape(rec.Name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sync gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("sync gateway put user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("sync gateway put user %s: unexpected status %d", rec.Name, resp.StatusCode)
	}
	return nil
}
