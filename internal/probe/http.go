package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ben458-1/URL-Server-Monitor/internal/domain/health"
	"github.com/ben458-1/URL-Server-Monitor/internal/domain/target"
)

type HTTPConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
	FollowRedirects bool          `mapstructure:"follow_redirects"`
	VerifyTLS       bool          `mapstructure:"verify_tls"`
}

type HTTPProber struct {
	client *http.Client
	cfg    HTTPConfig
}

var _ Prober = (*HTTPProber)(nil)

func NewHTTP(cfg HTTPConfig) *HTTPProber {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.VerifyTLS,
			MinVersion:         tls.VersionTLS12,
		},
	}
	client := &http.Client{Timeout: cfg.Timeout, Transport: transport}
	if !cfg.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return &HTTPProber{client: client, cfg: cfg}
}

// Probe classifies liveness, not correctness: any response inside the timeout
// is online regardless of status code. The code is recorded for consumers
// with stricter business rules.
func (p *HTTPProber) Probe(ctx context.Context, t *target.Target) *health.Check {
	res := &health.Check{
		TargetID: t.ID,
		Status:   health.StatusOffline,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, normalizeURL(t.URL), nil)
	if err != nil {
		res.ErrorMessage = err.Error()
		res.CheckedAt = time.Now().UTC()
		return res
	}
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	elapsed := time.Since(start)
	res.CheckedAt = time.Now().UTC()
	if err != nil {
		res.ErrorMessage = errorDetail(err)
		return res
	}
	defer resp.Body.Close()

	ms := elapsed.Milliseconds()
	code := resp.StatusCode
	res.Status = health.StatusOnline
	res.ResponseTime = &ms
	res.StatusCode = &code
	return res
}

func errorDetail(err error) string {
	if isTimeout(err) {
		return "timeout"
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err.Error()
	}
	return err.Error()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func normalizeURL(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return t
	}
	if strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://") {
		return t
	}
	return "http://" + t
}
