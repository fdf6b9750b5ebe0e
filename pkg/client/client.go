package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	apierr "github.com/0xDevNinja/neuro-mesh/pkg/api/types/errors"
	apisubnets "github.com/0xDevNinja/neuro-mesh/pkg/api/types/subnets"
)

// Client talks to a registryd server.
type Client interface {
	// RegisterSubnet registers a new subnet owned by the authenticated
	// account.
	RegisterSubnet(ctx context.Context, spec apisubnets.SubnetSpec) (apisubnets.Detail, error)

	// FindSubnets lists all registered subnets, retired ones included.
	FindSubnets(ctx context.Context) ([]apisubnets.Summary, error)

	// GetSubnet fetches one subnet by id.
	GetSubnet(ctx context.Context, subnetId uint32) (apisubnets.Detail, error)

	// GetSubnetStatus fetches the lifecycle status of one subnet.
	GetSubnetStatus(ctx context.Context, subnetId uint32) (apisubnets.Status, error)

	// UpdateSubnet changes config fields of a subnet the authenticated
	// account owns. Absent fields are left as they are.
	UpdateSubnet(ctx context.Context, subnetId uint32, change apisubnets.SubnetChange) (apisubnets.Detail, error)

	// RetireSubnet retires a subnet the authenticated account owns.
	RetireSubnet(ctx context.Context, subnetId uint32) (apisubnets.Status, error)

	// GetRegistry reports registry-wide counters.
	GetRegistry(ctx context.Context) (apisubnets.RegistrySummary, error)

	// OwnedSubnets lists subnets owned by an account, oldest first.
	OwnedSubnets(ctx context.Context, owner string) ([]apisubnets.Summary, error)

	// GetBalance reports the escrow balance of an account.
	GetBalance(ctx context.Context, owner string) (apisubnets.Balance, error)

	// Deposit credits an escrow account. Operators only.
	Deposit(ctx context.Context, owner string, amount uint64) (apisubnets.Balance, error)
}

type client struct {
	httpclient *http.Client
	api        string
	token      string
}

type Option func(*client) *client

// WithToken sets the Bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *client) *client {
		c.token = token
		return c
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) *client {
		c.httpclient = hc
		return c
	}
}

func NewClient(apiRoot string, options ...Option) Client {
	c := &client{
		httpclient: new(http.Client),
		api:        strings.TrimSuffix(apiRoot, "/"),
	}
	for _, opt := range options {
		c = opt(c)
	}
	return c
}

// build URL with path
func (c *client) apipath(path ...string) string {
	parts := make([]string, 0, len(path)+1)
	parts = append(parts, c.api)
	for _, p := range path {
		parts = append(parts, strings.TrimPrefix(strings.TrimSuffix(p, "/"), "/"))
	}
	return strings.Join(parts, "/") + "/"
}

func (c *client) send(ctx context.Context, method string, url string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpclient.Do(req)
}

// unmarshal http response which has json content.
//
// Non-2xx responses are returned as the server's ErrorMessage when it
// sent one.
func unmarshalJsonResponse[T any](resp *http.Response, v *T) error {
	defer resp.Body.Close()

	if 200 <= resp.StatusCode && resp.StatusCode < 300 {
		return json.NewDecoder(resp.Body).Decode(v)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("server error (status code = %d): %w", resp.StatusCode, err)
	}

	var er apierr.ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Message.Reason != "" {
		er.Message.Cause = fmt.Errorf("status code = %d", resp.StatusCode)
		return er.Message
	}

	return fmt.Errorf("server error (status code = %d): %s", resp.StatusCode, string(body))
}

func (c *client) RegisterSubnet(ctx context.Context, spec apisubnets.SubnetSpec) (apisubnets.Detail, error) {
	resp, err := c.send(ctx, http.MethodPost, c.apipath("subnets"), spec)
	if err != nil {
		return apisubnets.Detail{}, err
	}

	var detail apisubnets.Detail
	if err := unmarshalJsonResponse(resp, &detail); err != nil {
		return apisubnets.Detail{}, err
	}
	return detail, nil
}

func (c *client) FindSubnets(ctx context.Context) ([]apisubnets.Summary, error) {
	resp, err := c.send(ctx, http.MethodGet, c.apipath("subnets"), nil)
	if err != nil {
		return nil, err
	}

	var summaries []apisubnets.Summary
	if err := unmarshalJsonResponse(resp, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (c *client) GetSubnet(ctx context.Context, subnetId uint32) (apisubnets.Detail, error) {
	resp, err := c.send(
		ctx, http.MethodGet,
		c.apipath("subnets", strconv.FormatUint(uint64(subnetId), 10)), nil,
	)
	if err != nil {
		return apisubnets.Detail{}, err
	}

	var detail apisubnets.Detail
	if err := unmarshalJsonResponse(resp, &detail); err != nil {
		return apisubnets.Detail{}, err
	}
	return detail, nil
}

func (c *client) GetSubnetStatus(ctx context.Context, subnetId uint32) (apisubnets.Status, error) {
	resp, err := c.send(
		ctx, http.MethodGet,
		c.apipath("subnets", strconv.FormatUint(uint64(subnetId), 10), "status"), nil,
	)
	if err != nil {
		return apisubnets.Status{}, err
	}

	var status apisubnets.Status
	if err := unmarshalJsonResponse(resp, &status); err != nil {
		return apisubnets.Status{}, err
	}
	return status, nil
}

func (c *client) UpdateSubnet(ctx context.Context, subnetId uint32, change apisubnets.SubnetChange) (apisubnets.Detail, error) {
	resp, err := c.send(
		ctx, http.MethodPut,
		c.apipath("subnets", strconv.FormatUint(uint64(subnetId), 10)), change,
	)
	if err != nil {
		return apisubnets.Detail{}, err
	}

	var detail apisubnets.Detail
	if err := unmarshalJsonResponse(resp, &detail); err != nil {
		return apisubnets.Detail{}, err
	}
	return detail, nil
}

func (c *client) RetireSubnet(ctx context.Context, subnetId uint32) (apisubnets.Status, error) {
	resp, err := c.send(
		ctx, http.MethodPut,
		c.apipath("subnets", strconv.FormatUint(uint64(subnetId), 10), "retire"), nil,
	)
	if err != nil {
		return apisubnets.Status{}, err
	}

	var status apisubnets.Status
	if err := unmarshalJsonResponse(resp, &status); err != nil {
		return apisubnets.Status{}, err
	}
	return status, nil
}

func (c *client) GetRegistry(ctx context.Context) (apisubnets.RegistrySummary, error) {
	resp, err := c.send(ctx, http.MethodGet, c.apipath("registry"), nil)
	if err != nil {
		return apisubnets.RegistrySummary{}, err
	}

	var summary apisubnets.RegistrySummary
	if err := unmarshalJsonResponse(resp, &summary); err != nil {
		return apisubnets.RegistrySummary{}, err
	}
	return summary, nil
}

func (c *client) OwnedSubnets(ctx context.Context, owner string) ([]apisubnets.Summary, error) {
	resp, err := c.send(ctx, http.MethodGet, c.apipath("owners", owner, "subnets"), nil)
	if err != nil {
		return nil, err
	}

	var summaries []apisubnets.Summary
	if err := unmarshalJsonResponse(resp, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (c *client) GetBalance(ctx context.Context, owner string) (apisubnets.Balance, error) {
	resp, err := c.send(ctx, http.MethodGet, c.apipath("owners", owner, "balance"), nil)
	if err != nil {
		return apisubnets.Balance{}, err
	}

	var balance apisubnets.Balance
	if err := unmarshalJsonResponse(resp, &balance); err != nil {
		return apisubnets.Balance{}, err
	}
	return balance, nil
}

func (c *client) Deposit(ctx context.Context, owner string, amount uint64) (apisubnets.Balance, error) {
	resp, err := c.send(
		ctx, http.MethodPost,
		c.apipath("owners", owner, "deposit"),
		apisubnets.DepositRequest{Amount: amount},
	)
	if err != nil {
		return apisubnets.Balance{}, err
	}

	var balance apisubnets.Balance
	if err := unmarshalJsonResponse(resp, &balance); err != nil {
		return apisubnets.Balance{}, err
	}
	return balance, nil
}
