// Package hyperstack is a thin, typed path layer over the resilient client for
// the Hyperstack infrastructure API. It knows the endpoint layout — virtual
// machines, volumes, clusters, metadata, billing — and nothing about the
// resource schemas: payloads and results travel as opaque JSON, so the package
// tracks API additions without code changes.
package hyperstack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	hyperbridge "github.com/nexgencloud/hyper-bridge"
)

// DefaultBaseURL is the public Hyperstack API endpoint.
const DefaultBaseURL = "https://infrahub-api.nexgencloud.com/v1"

// Client wraps a HyperBridge configured for the Hyperstack API.
type Client struct {
	bridge *hyperbridge.HyperBridge
}

// NewClient builds a Hyperstack client authenticating with apiKey. A nil cfg
// uses production defaults against DefaultBaseURL.
func NewClient(apiKey string, cfg *hyperbridge.Config, opts ...hyperbridge.Option) (*Client, error) {
	if cfg == nil {
		cfg = hyperbridge.DefaultConfig()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	opts = append(opts, hyperbridge.WithCredential(&hyperbridge.APIKeyCredential{Key: apiKey}))

	bridge, err := hyperbridge.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{bridge: bridge}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error { return c.bridge.Close() }

// ListOptions carries the common pagination and filter parameters.
type ListOptions struct {
	Page        int
	PageSize    int
	Search      string
	Environment string
}

func (o *ListOptions) query() url.Values {
	q := url.Values{}
	if o == nil {
		return q
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(o.PageSize))
	}
	if o.Search != "" {
		q.Set("search", o.Search)
	}
	if o.Environment != "" {
		q.Set("environment", o.Environment)
	}
	return q
}

// call issues one request and returns the raw JSON result.
func (c *Client) call(ctx context.Context, method, path string, body interface{}, idempotent bool) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("hyperstack: encode request body: %w", err)
		}
	}

	req := &hyperbridge.NormalizedRequest{
		Method:     method,
		Path:       path,
		Body:       payload,
		Idempotent: idempotent,
	}
	var out json.RawMessage
	if err := c.bridge.RequestJSON(ctx, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (json.RawMessage, error) {
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.call(ctx, http.MethodGet, path, nil, true)
}

// Virtual machines.

func (c *Client) CreateVirtualMachine(ctx context.Context, payload interface{}) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, "/core/virtual-machines", payload, false)
}

func (c *Client) ListVirtualMachines(ctx context.Context, opts *ListOptions) (json.RawMessage, error) {
	return c.get(ctx, "/core/virtual-machines", opts.query())
}

func (c *Client) GetVirtualMachine(ctx context.Context, vmID int) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("/core/virtual-machines/%d", vmID), nil)
}

func (c *Client) DeleteVirtualMachine(ctx context.Context, vmID int) (json.RawMessage, error) {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("/core/virtual-machines/%d", vmID), nil, true)
}

func (c *Client) StartVirtualMachine(ctx context.Context, vmID int) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("/core/virtual-machines/%d/start", vmID), nil)
}

func (c *Client) StopVirtualMachine(ctx context.Context, vmID int) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("/core/virtual-machines/%d/stop", vmID), nil)
}

func (c *Client) HardRebootVirtualMachine(ctx context.Context, vmID int) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("/core/virtual-machines/%d/hard-reboot", vmID), nil)
}

func (c *Client) HibernateVirtualMachine(ctx context.Context, vmID int, retainIP bool) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("retain_ip", strconv.FormatBool(retainIP))
	return c.get(ctx, fmt.Sprintf("/core/virtual-machines/%d/hibernate", vmID), q)
}

func (c *Client) RestoreVirtualMachine(ctx context.Context, vmID int) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("/core/virtual-machines/%d/hibernate-restore", vmID), nil)
}

func (c *Client) AttachVolumes(ctx context.Context, vmID int, volumeIDs []int) (json.RawMessage, error) {
	body := map[string]interface{}{"volume_ids": volumeIDs}
	return c.call(ctx, http.MethodPost, fmt.Sprintf("/core/virtual-machines/%d/attach-volumes", vmID), body, false)
}

func (c *Client) DetachVolumes(ctx context.Context, vmID int, volumeIDs []int) (json.RawMessage, error) {
	body := map[string]interface{}{"volume_ids": volumeIDs}
	return c.call(ctx, http.MethodPost, fmt.Sprintf("/core/virtual-machines/%d/detach-volumes", vmID), body, false)
}

func (c *Client) AttachFloatingIP(ctx context.Context, vmID int) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, fmt.Sprintf("/core/virtual-machines/%d/attach-floatingip", vmID), nil, false)
}

func (c *Client) DetachFloatingIP(ctx context.Context, vmID int) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, fmt.Sprintf("/core/virtual-machines/%d/detach-floatingip", vmID), nil, false)
}

func (c *Client) AddFirewallRules(ctx context.Context, vmID int, rules interface{}) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, fmt.Sprintf("/core/virtual-machines/%d/sg-rules", vmID), rules, false)
}

func (c *Client) RemoveFirewallRule(ctx context.Context, vmID, ruleID int) (json.RawMessage, error) {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("/core/virtual-machines/%d/sg-rules/%d", vmID, ruleID), nil, true)
}

func (c *Client) GetVirtualMachineEvents(ctx context.Context, vmID int) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("/core/virtual-machines/%d/events", vmID), nil)
}

// Volumes.

func (c *Client) CreateVolume(ctx context.Context, payload interface{}) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, "/core/volumes", payload, false)
}

func (c *Client) ListVolumes(ctx context.Context, opts *ListOptions) (json.RawMessage, error) {
	return c.get(ctx, "/core/volumes", opts.query())
}

func (c *Client) GetVolume(ctx context.Context, volumeID int) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("/core/volumes/%d", volumeID), nil)
}

func (c *Client) UpdateVolume(ctx context.Context, volumeID int, payload interface{}) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPut, fmt.Sprintf("/core/volumes/%d", volumeID), payload, true)
}

func (c *Client) DeleteVolume(ctx context.Context, volumeID int) (json.RawMessage, error) {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("/core/volumes/%d", volumeID), nil, true)
}

func (c *Client) ListVolumeTypes(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/core/volume-types", nil)
}

func (c *Client) UpdateVolumeAttachment(ctx context.Context, attachmentID int, payload interface{}) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPatch, fmt.Sprintf("/core/volume-attachment/%d", attachmentID), payload, false)
}

// Metadata.

func (c *Client) ListFlavors(ctx context.Context, region string) (json.RawMessage, error) {
	q := url.Values{}
	if region != "" {
		q.Set("region", region)
	}
	return c.get(ctx, "/core/flavors", q)
}

func (c *Client) ListEnvironments(ctx context.Context, opts *ListOptions) (json.RawMessage, error) {
	return c.get(ctx, "/core/environments", opts.query())
}

func (c *Client) GetEnvironment(ctx context.Context, environmentID int) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("/core/environments/%d", environmentID), nil)
}

func (c *Client) CheckStocks(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/core/stocks", nil)
}

// Clusters.

func (c *Client) CreateCluster(ctx context.Context, payload interface{}) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, "/core/clusters", payload, false)
}

func (c *Client) ListClusters(ctx context.Context, opts *ListOptions) (json.RawMessage, error) {
	return c.get(ctx, "/core/clusters", opts.query())
}

func (c *Client) GetCluster(ctx context.Context, clusterID int) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("/core/clusters/%d", clusterID), nil)
}

func (c *Client) DeleteCluster(ctx context.Context, clusterID int) (json.RawMessage, error) {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("/core/clusters/%d", clusterID), nil, true)
}

func (c *Client) GetClusterEvents(ctx context.Context, clusterID int) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("/core/clusters/%d/events", clusterID), nil)
}

// Billing.

func (c *Client) GetBillingStatus(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/billing/alive", nil)
}

func (c *Client) GetBillingUsage(ctx context.Context, startDate, endDate string) (json.RawMessage, error) {
	q := url.Values{}
	if startDate != "" {
		q.Set("start_date", startDate)
	}
	if endDate != "" {
		q.Set("end_date", endDate)
	}
	return c.get(ctx, "/billing/billing/usage", q)
}

func (c *Client) GetPreviousDayCost(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/billing/billing/last-day-cost", nil)
}

func (c *Client) GetCreditBalance(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/billing/user-credit/credit", nil)
}

func (c *Client) GetPaymentHistory(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/billing/payment/payment-details", nil)
}
