package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"

	"sales_billing/internal/billing"
	"sales_billing/internal/sales"
)

// StatusError is a non-2xx response from the shop backend.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Options configures the backend client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client reads the catalog from, and writes sales to, the shop backend.
// It implements sales.Catalog and sales.Persister.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

var (
	_ sales.Catalog   = (*Client)(nil)
	_ sales.Persister = (*Client)(nil)
)

// New creates a Client.
func New(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		hc.SetTimeout(opts.Timeout)
	}
	if opts.Token != "" {
		hc.SetAuthToken(opts.Token)
	}
	return &Client{http: hc, logger: logger}
}

// Close releases the underlying HTTP resources.
func (c *Client) Close() error {
	return c.http.Close()
}

func (c *Client) execute(req *resty.Request, method, path string) error {
	start := time.Now()
	res, err := req.Execute(method, path)
	if err != nil {
		c.logger.Warn("backend request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", res.StatusCode()),
		zap.Duration("latency", time.Since(start)),
	)
	if !res.IsSuccess() {
		return &StatusError{Method: method, Path: path, Code: res.StatusCode(), Body: strings.TrimSpace(res.String())}
	}
	return nil
}

// ListProducts fetches the whole product catalog.
func (c *Client) ListProducts(ctx context.Context) ([]billing.Product, error) {
	var docs []productDoc
	req := c.http.R().SetContext(ctx).SetResult(&docs)
	if err := c.execute(req, http.MethodGet, "/api/products"); err != nil {
		return nil, err
	}
	out := make([]billing.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.product())
	}
	return out, nil
}

// ListBuyers fetches every buyer.
func (c *Client) ListBuyers(ctx context.Context) ([]sales.Buyer, error) {
	var docs []buyerDoc
	req := c.http.R().SetContext(ctx).SetResult(&docs)
	if err := c.execute(req, http.MethodGet, "/api/buyers"); err != nil {
		return nil, err
	}
	out := make([]sales.Buyer, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.buyer())
	}
	return out, nil
}

// ListTowns fetches every town.
func (c *Client) ListTowns(ctx context.Context) ([]sales.Town, error) {
	var docs []townDoc
	req := c.http.R().SetContext(ctx).SetResult(&docs)
	if err := c.execute(req, http.MethodGet, "/api/towns"); err != nil {
		return nil, err
	}
	out := make([]sales.Town, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.town())
	}
	return out, nil
}

// ListSales fetches the sales history. Totals are recomputed from the stored lines.
func (c *Client) ListSales(ctx context.Context) ([]*sales.SaleRecord, error) {
	var docs []saleDoc
	req := c.http.R().SetContext(ctx).SetResult(&docs)
	if err := c.execute(req, http.MethodGet, "/api/sales"); err != nil {
		return nil, err
	}
	out := make([]*sales.SaleRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.record())
	}
	return out, nil
}

// GetSale fetches a stored sale. A 404 from the backend is reported as
// sales.ErrSaleNotFound, still wrapping the *StatusError.
func (c *Client) GetSale(ctx context.Context, id string) (*sales.SaleRecord, error) {
	var doc saleDoc
	req := c.http.R().SetContext(ctx).SetPathParam("id", id).SetResult(&doc)
	if err := c.execute(req, http.MethodGet, "/api/sales/{id}"); err != nil {
		var serr *StatusError
		if errors.As(err, &serr) && serr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w", sales.ErrSaleNotFound, err)
		}
		return nil, err
	}
	return doc.record(), nil
}

// CreateSale stores a new sale. The backend assigns its id and invoice number.
func (c *Client) CreateSale(ctx context.Context, rec *sales.SaleRecord) (*sales.SaleRecord, error) {
	body := newSaleDoc(rec)
	body.ID, body.InvoiceNumber = "", ""

	var doc saleDoc
	req := c.http.R().SetContext(ctx).SetBody(body).SetResult(&doc)
	if err := c.execute(req, http.MethodPost, "/api/sales"); err != nil {
		return nil, err
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("POST /api/sales: response carries no sale id")
	}
	return stored(rec, doc), nil
}

// UpdateSale replaces a stored sale in place.
func (c *Client) UpdateSale(ctx context.Context, rec *sales.SaleRecord) (*sales.SaleRecord, error) {
	var doc saleDoc
	req := c.http.R().SetContext(ctx).SetPathParam("id", rec.ID).SetBody(newSaleDoc(rec)).SetResult(&doc)
	if err := c.execute(req, http.MethodPatch, "/api/sales/{id}"); err != nil {
		return nil, err
	}
	doc.ID = rec.ID
	return stored(rec, doc), nil
}

// stored merges the identity the backend assigned into the submitted record.
func stored(rec *sales.SaleRecord, doc saleDoc) *sales.SaleRecord {
	out := *rec
	out.ID = doc.ID
	if doc.InvoiceNumber != "" {
		out.InvoiceNumber = doc.InvoiceNumber
	}
	out.CreatedAt = doc.CreatedAt
	return &out
}
