package datastore

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"sakura_marketplace/internal/app/port"

	"github.com/valyala/fasthttp"
)

const defaultProbeTimeout = 5 * time.Second

// Prober implements port.URLProber with fasthttp HEAD requests.
type Prober struct {
	client  *fasthttp.Client
	timeout time.Duration
}

// NewProber creates a prober bounded by timeout when the caller sets no deadline.
func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &Prober{
		client: &fasthttp.Client{
			Name:                "sakura-marketplace",
			MaxIdleConnDuration: 30 * time.Second,
		},
		timeout: timeout,
	}
}

// Probe succeeds when url answers a HEAD (or GET, for servers that refuse HEAD) with a 2xx status.
func (p *Prober) Probe(ctx context.Context, url string) error {
	status, err := p.do(ctx, fasthttp.MethodHead, url)
	if err == nil && status == http.StatusMethodNotAllowed {
		status, err = p.do(ctx, fasthttp.MethodGet, url)
	}
	if err != nil {
		return fmt.Errorf("probe %s: %w", url, err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("probe %s: unexpected status %d", url, status)
	}
	return nil
}

func (p *Prober) do(ctx context.Context, method, url string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(method)

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = p.client.DoDeadline(req, resp, deadline)
	} else {
		err = p.client.DoTimeout(req, resp, p.timeout)
	}
	if err != nil {
		return 0, err
	}
	return resp.StatusCode(), nil
}

var _ port.URLProber = (*Prober)(nil)
