package shopify

import (
	"net/http"
	"strings"
	"time"
)

// Platform names the adapter in errors and metrics.
const Platform = "shopify"

// DefaultAPIVersion is the Admin API version used when none is configured.
const DefaultAPIVersion = "2025-07"

const (
	pageSize             = 100
	metafieldsPerProduct = 20
	defaultNamespace     = "custom"

	defaultHTTPTimeout        = 30 * time.Second
	defaultRequestsPerSecond  = 2.0
	defaultBurst              = 4
	defaultThrottleMaxRetries = 5
	defaultRetryInitial       = 500 * time.Millisecond
	defaultRetryMax           = 10 * time.Second
	defaultRetryAfterMax      = time.Minute

	accessTokenHeader = "X-Shopify-Access-Token"
)

// Config captures user-overridable Shopify settings.
type Config struct {
	// StoreDomain is the shop host, e.g. example.myshopify.com. A scheme prefix is tolerated.
	StoreDomain string
	AccessToken string
	APIVersion  string
	// BaseURL replaces https://{StoreDomain} when set.
	BaseURL string
	// Namespace scopes the metafields requested with each product.
	Namespace            string
	HTTPTimeout          time.Duration
	RequestsPerSecond    float64
	Burst                int
	ThrottleMaxRetries   uint
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	// RetryAfterMax caps the wait a 429 Retry-After header can impose.
	RetryAfterMax time.Duration
}

// Options configure the Shopify adapter.
type Options struct {
	Config     Config
	HTTPClient *http.Client
}

func withDefaults(in Options) Options {
	in.Config.StoreDomain = normalizeDomain(in.Config.StoreDomain)
	in.Config.AccessToken = strings.TrimSpace(in.Config.AccessToken)
	if strings.TrimSpace(in.Config.APIVersion) == "" {
		in.Config.APIVersion = DefaultAPIVersion
	}
	if strings.TrimSpace(in.Config.Namespace) == "" {
		in.Config.Namespace = defaultNamespace
	}
	if in.Config.HTTPTimeout <= 0 {
		in.Config.HTTPTimeout = defaultHTTPTimeout
	}
	if in.Config.RequestsPerSecond <= 0 {
		in.Config.RequestsPerSecond = defaultRequestsPerSecond
	}
	if in.Config.Burst <= 0 {
		in.Config.Burst = defaultBurst
	}
	if in.Config.ThrottleMaxRetries == 0 {
		in.Config.ThrottleMaxRetries = defaultThrottleMaxRetries
	}
	if in.Config.RetryInitialInterval <= 0 {
		in.Config.RetryInitialInterval = defaultRetryInitial
	}
	if in.Config.RetryMaxInterval <= 0 {
		in.Config.RetryMaxInterval = defaultRetryMax
	}
	if in.Config.RetryAfterMax <= 0 {
		in.Config.RetryAfterMax = defaultRetryAfterMax
	}
	return in
}

func normalizeDomain(raw string) string {
	domain := strings.TrimSpace(raw)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	return strings.TrimSuffix(domain, "/")
}

func (o Options) baseURL() string {
	if base := strings.TrimSpace(o.Config.BaseURL); base != "" {
		return strings.TrimSuffix(base, "/")
	}
	if o.Config.StoreDomain == "" {
		return ""
	}
	return "https://" + o.Config.StoreDomain
}

func (o Options) adminEndpoint(path string) string {
	base := o.baseURL()
	if base == "" {
		return ""
	}
	return base + "/admin/api/" + o.Config.APIVersion + "/" + strings.TrimPrefix(path, "/")
}

func (o Options) graphqlEndpoint() string {
	return o.adminEndpoint("graphql.json")
}
