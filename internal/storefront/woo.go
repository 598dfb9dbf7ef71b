// Package storefront fetches orders from WooCommerce stores and reports
// completion back to them.
//
// Orders are read through the WooCommerce REST API (wc/v3) with the store's
// consumer key pair as HTTP basic auth. Completion goes through the AutoDesign
// storefront plugin when the store has a plugin key, otherwise through a plain
// REST status update.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Credentials identify one storefront. ConsumerSecret is plain text here;
// callers open it before building Credentials.
type Credentials struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	PluginKey      string
}

// MetaEntry is one line-item option as the storefront reports it.
type MetaEntry struct {
	Key   string
	Value string
}

// RawLineItem is an unprocessed storefront line item.
type RawLineItem struct {
	ID       string
	Name     string
	Quantity int
	Meta     []MetaEntry
}

// RawOrder is an unprocessed storefront order.
type RawOrder struct {
	Number       string
	CustomerName string
	Note         string
	PlacedAt     time.Time
	LineItems    []RawLineItem
}

// ErrStatus is wrapped by errors for non-2xx storefront responses.
var ErrStatus = errors.New("storefront returned an error status")

// Client talks to WooCommerce stores. The zero value is not usable; use New.
type Client struct {
	HTTP     *http.Client
	PageSize int
	MaxPages int
	// Status is the order status filter used by FetchOrders.
	Status string
}

// New returns a Client with the given request timeout and page size.
func New(timeout time.Duration, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Client{
		HTTP:     &http.Client{Timeout: timeout},
		PageSize: pageSize,
		MaxPages: 20,
		Status:   "processing",
	}
}

type wooMeta struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type wooLine struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Quantity int       `json:"quantity"`
	MetaData []wooMeta `json:"meta_data"`
}

type wooOrder struct {
	ID           int64  `json:"id"`
	DateCreated  string `json:"date_created_gmt"`
	CustomerNote string `json:"customer_note"`
	Billing      struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"billing"`
	LineItems []wooLine `json:"line_items"`
}

// FetchOrders pages through the store's open orders.
func (c *Client) FetchOrders(ctx context.Context, creds Credentials) ([]RawOrder, error) {
	var out []RawOrder
	for page := 1; page <= c.MaxPages; page++ {
		q := url.Values{}
		q.Set("per_page", strconv.Itoa(c.PageSize))
		q.Set("page", strconv.Itoa(page))
		if c.Status != "" {
			q.Set("status", c.Status)
		}
		u := restURL(creds.BaseURL, "orders") + "?" + q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(creds.ConsumerKey, creds.ConsumerSecret)
		req.Header.Set("Accept", "application/json")

		var batch []wooOrder
		if err := c.do(req, &batch); err != nil {
			return nil, err
		}
		for _, o := range batch {
			out = append(out, o.raw())
		}
		if len(batch) < c.PageSize {
			break
		}
	}
	return out, nil
}

// CompleteOrder marks an order completed on the storefront.
func (c *Client) CompleteOrder(ctx context.Context, creds Credentials, number string) error {
	var req *http.Request
	var err error
	if creds.PluginKey != "" {
		body, _ := json.Marshal(map[string]string{"order_id": number, "status": "completed"})
		u := strings.TrimRight(creds.BaseURL, "/") + "/wp-json/autodesign/v1/update-status"
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("X-AutoDesign-Key", creds.PluginKey)
	} else {
		body, _ := json.Marshal(map[string]string{"status": "completed"})
		req, err = http.NewRequestWithContext(ctx, http.MethodPut, restURL(creds.BaseURL, "orders/"+url.PathEscape(number)), bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.SetBasicAuth(creds.ConsumerKey, creds.ConsumerSecret)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, into any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s: %d %s", ErrStatus, req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if into == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(into)
}

func restURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/wp-json/wc/v3/" + path
}

func (o wooOrder) raw() RawOrder {
	r := RawOrder{
		Number:       strconv.FormatInt(o.ID, 10),
		CustomerName: strings.TrimSpace(o.Billing.FirstName + " " + o.Billing.LastName),
		Note:         o.CustomerNote,
	}
	if t, err := time.Parse("2006-01-02T15:04:05", o.DateCreated); err == nil {
		r.PlacedAt = t.UTC()
	}
	for _, li := range o.LineItems {
		line := RawLineItem{
			ID:       strconv.FormatInt(li.ID, 10),
			Name:     li.Name,
			Quantity: li.Quantity,
		}
		for _, m := range li.MetaData {
			line.Meta = append(line.Meta, MetaEntry{Key: m.Key, Value: metaString(m.Value)})
		}
		r.LineItems = append(r.LineItems, line)
	}
	return r
}

// metaString renders a meta value: strings unquoted, everything else as
// compact JSON.
func metaString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return string(v)
	}
	if buf.String() == "null" {
		return ""
	}
	return buf.String()
}
