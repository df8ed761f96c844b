// Package platform implements the HTTP client for outbound submission
// platforms. Every platform exposes the same two operations: listing
// the fields it accepts and storing sample payloads.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/seqrelay/seqrelay/internal/config"
	"github.com/seqrelay/seqrelay/internal/errors"
	"github.com/seqrelay/seqrelay/internal/logger"
	"github.com/seqrelay/seqrelay/internal/models"
)

const defaultTimeout = 30 * time.Second

// Client talks to one submission platform.
type Client struct {
	name     string
	baseURL  string
	username string
	password string
	client   *http.Client
}

// StoreResult reports one successful store call.
type StoreResult struct {
	Platform string `json:"platform"`
	Stored   int    `json:"stored"`
}

// NewClient creates a client for one configured platform.
func NewClient(name string, cfg config.PlatformConfig) *Client {
	return &Client{
		name:     name,
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		client: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// ExpectedFields fetches the field names the platform accepts.
func (c *Client) ExpectedFields(ctx context.Context) ([]string, error) {
	const op = errors.Op("platform.ExpectedFields")

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/list-expected-fields", nil)
	if err != nil {
		return nil, errors.E(op, errors.KindNetwork, err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.E(op, errors.KindNetwork, err,
			fmt.Sprintf("fetching expected fields from %s", c.name))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.E(op, errors.KindNetwork,
			fmt.Sprintf("%s returned %s", c.name, resp.Status))
	}

	var payload struct {
		Fields []string `json:"fields"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.E(op, errors.KindNetwork, err, "malformed field list")
	}
	if len(payload.Fields) == 0 {
		return nil, errors.E(op, errors.KindNetwork,
			fmt.Sprintf("%s returned an empty field list", c.name))
	}
	return payload.Fields, nil
}

// StoreSamples uploads payloads as one JSON array. The platform's
// expected field list is fetched first and every payload key must be
// in it; nothing is sent otherwise.
func (c *Client) StoreSamples(ctx context.Context, payloads []*models.TargetPayload) (*StoreResult, error) {
	const op = errors.Op("platform.StoreSamples")
	log := logger.FromContext(ctx)

	if len(payloads) == 0 {
		return &StoreResult{Platform: c.name}, nil
	}

	expected, err := c.ExpectedFields(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug("expected fields fetched", "platform", c.name, "fields", len(expected))
	if err := checkFields(op, c.name, expected, payloads); err != nil {
		return nil, err
	}

	body := make([]map[string]string, len(payloads))
	for i, p := range payloads {
		body[i] = p.Fields
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, errors.E(op, errors.KindNetwork, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		c.baseURL+"/store-sample-data", bytes.NewReader(encoded))
	if err != nil {
		return nil, errors.E(op, errors.KindNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.E(op, errors.KindNetwork, err,
			fmt.Sprintf("storing samples on %s", c.name))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errors.E(op, errors.KindNetwork,
			fmt.Sprintf("%s returned %s", c.name, resp.Status))
	}

	result := &StoreResult{Platform: c.name}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return nil, errors.E(op, errors.KindNetwork, err, "malformed store response")
	}
	result.Platform = c.name
	log.Debug("samples stored", "platform", c.name, "stored", result.Stored)
	return result, nil
}

// checkFields rejects any payload carrying a key the platform does not
// list. Unknown keys are gathered across all payloads so the error
// names every offender at once.
func checkFields(op errors.Op, name string, expected []string, payloads []*models.TargetPayload) error {
	allowed := make(map[string]struct{}, len(expected))
	for _, f := range expected {
		allowed[f] = struct{}{}
	}

	unknown := make(map[string]struct{})
	for _, p := range payloads {
		for key := range p.Fields {
			if _, ok := allowed[key]; !ok {
				unknown[key] = struct{}{}
			}
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	names := make([]string, 0, len(unknown))
	for key := range unknown {
		names = append(names, key)
	}
	sort.Strings(names)
	return errors.E(op, errors.KindValidation,
		fmt.Sprintf("%s does not accept fields: %s", name, strings.Join(names, ", ")))
}

func (c *Client) authorize(req *http.Request) {
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}
