// Package prober runs a single HTTP check on demand.
package prober

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/NordCoder/checksync/internal/domain/check"
)

type Config struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
	MaxRedirects    int           `mapstructure:"max_redirects"`
	FollowRedirects bool          `mapstructure:"follow_redirects"`
	VerifyTLS       bool          `mapstructure:"verify_tls"`
}

func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		UserAgent:       "checksync-probe/1.0",
		MaxRedirects:    5,
		FollowRedirects: true,
		VerifyTLS:       true,
	}
}

var (
	mProbes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checksync_probes_total", Help: "Manual probes by result",
	}, []string{"status"})
	mProbeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checksync_probe_latency_seconds",
		Help:    "HTTP probe latency",
		Buckets: prometheus.DefBuckets,
	})
)

var _ check.Runner = (*Prober)(nil)

type Prober struct {
	c   *http.Client
	cfg Config
	log *zap.Logger
	now func() time.Time
}

func New(cfg Config, log *zap.Logger) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if log == nil {
		log = zap.NewNop()
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
	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(transport),
	}
	switch {
	case !cfg.FollowRedirects:
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	case cfg.MaxRedirects > 0:
		limit := cfg.MaxRedirects
		client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) >= limit {
				return http.ErrUseLastResponse
			}
			return nil
		}
	}
	return &Prober{c: client, cfg: cfg, log: log, now: time.Now}
}

// Run probes c.URL once. A 2xx or 3xx response is up. Transport failures
// report down with code 0; only a malformed URL or a cancelled ctx is an error.
func (p *Prober) Run(ctx context.Context, c check.Check) (check.Result, error) {
	url := normalizeURL(c.URL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return check.Result{}, fmt.Errorf("build request: %w", err)
	}
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	start := p.now()
	resp, err := p.c.Do(req)
	res := check.Result{Status: check.StatusDown, CheckedAt: p.now().UTC()}
	res.Latency = res.CheckedAt.Sub(start.UTC())
	mProbeLatency.Observe(res.Latency.Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return check.Result{}, ctx.Err()
		}
		p.log.Debug("probe failed", zap.String("check_id", c.ID), zap.String("url", url), zap.Error(err))
		mProbes.WithLabelValues(string(check.StatusDown)).Inc()
		return res, nil
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	res.Code = resp.StatusCode
	if res.Code >= 200 && res.Code <= 399 {
		res.Status = check.StatusUp
	}
	mProbes.WithLabelValues(string(res.Status)).Inc()
	return res, nil
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
