package synapse

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/rudderlabs/rudder-go-kit/cachettl"
	"github.com/rudderlabs/rudder-go-kit/config"
	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"

	synapseapi "github.com/rudderlabs/bridge-exporter/synapse/internal/api"
	"github.com/rudderlabs/bridge-exporter/utils/misc"
)

// WithRequestDoer replaces the HTTP client used to reach the store.
func WithRequestDoer(doer requestDoer) Opt {
	return func(c *Client) {
		c.requestDoer = doer
	}
}

func New(conf *config.Config, log logger.Logger, statsFactory stats.Stats, opts ...Opt) *Client {
	c := &Client{
		logger:           log.Child("synapse"),
		statsFactory:     statsFactory,
		storageLocations: cachettl.New[string, int64](),
	}

	c.config.client.url = conf.GetString("Synapse.Client.URL", "https://repo-prod.prod.sagebase.org")
	c.config.client.authToken = conf.GetString("Synapse.Client.authToken", "")
	c.config.client.maxHTTPConnections = conf.GetInt("Synapse.Client.maxHTTPConnections", 10)
	c.config.client.maxHTTPIdleConnections = conf.GetInt("Synapse.Client.maxHTTPIdleConnections", 5)
	c.config.client.maxIdleConnDuration = conf.GetDuration("Synapse.Client.maxIdleConnDuration", 30, time.Second)
	c.config.client.timeoutDuration = conf.GetDuration("Synapse.Client.timeout", 300, time.Second)
	c.config.client.retryWaitMin = conf.GetDuration("Synapse.Client.retryWaitMin", 100, time.Millisecond)
	c.config.client.retryWaitMax = conf.GetDuration("Synapse.Client.retryWaitMax", 10, time.Second)
	c.config.client.retryMax = conf.GetInt("Synapse.Client.retryMax", 0)
	c.config.async.interval = conf.GetDuration("Synapse.async.intervalMillis", 1000, time.Millisecond)
	c.config.async.timeoutLoops = conf.GetInt("Synapse.async.timeoutLoops", 300)
	c.config.query.interval = conf.GetDuration("Synapse.query.intervalMillis", 1000, time.Millisecond)
	c.config.query.timeoutLoops = conf.GetInt("Synapse.query.timeoutLoops", 30)
	c.config.storageLocationCacheTTL = conf.GetDuration("Synapse.storageLocationCacheTTL", 5, time.Minute)

	perSecond := conf.GetFloat64("Synapse.rateLimitPerSecond", 10)
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
	perMinute := conf.GetFloat64("Synapse.getColumnModelsRateLimitPerMinute", 24)
	c.columnLimiter = rate.NewLimiter(rate.Limit(perMinute/60), 1)

	c.policies.def = misc.RetryPolicy{
		Attempts:  conf.GetInt("Synapse.retry.attempts", 2),
		Delay:     conf.GetDuration("Synapse.retry.delay", 100, time.Millisecond),
		Retryable: IsRetryable,
	}
	c.policies.fileUpload = misc.RetryPolicy{
		Attempts:  conf.GetInt("Synapse.retry.fileUpload.attempts", 2),
		Delay:     conf.GetDuration("Synapse.retry.fileUpload.delay", 1, time.Second),
		Retryable: IsRetryable,
	}
	c.policies.writable = misc.RetryPolicy{
		Attempts:  conf.GetInt("Synapse.retry.writable.attempts", 5),
		Delay:     conf.GetDuration("Synapse.retry.writable.delay", 100, time.Millisecond),
		Retryable: IsRetryable,
	}

	c.stats.rateLimitWait = statsFactory.NewStat("bridge_ex_rate_limit_wait", stats.TimerType)

	for _, opt := range opts {
		opt(c)
	}
	if c.requestDoer == nil {
		c.requestDoer = c.retryableClient().StandardClient()
	}
	c.api = newApiAdapter(statsFactory, synapseapi.New(c.config.client.url, c.config.client.authToken, c.requestDoer))
	return c
}

func (c *Client) retryableClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     c.config.client.maxHTTPConnections,
			MaxIdleConnsPerHost: c.config.client.maxHTTPIdleConnections,
			IdleConnTimeout:     c.config.client.maxIdleConnDuration,
		},
		Timeout: c.config.client.timeoutDuration,
	}
	client.Logger = nil
	client.RetryWaitMin = c.config.client.retryWaitMin
	client.RetryWaitMax = c.config.client.retryWaitMax
	client.RetryMax = c.config.client.retryMax
	return client
}

// call runs op through policy, waiting for a permit from limiter before every attempt.
func call[T any](ctx context.Context, c *Client, limiter *rate.Limiter, policy misc.RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	return misc.WithRetry(ctx, policy, func(ctx context.Context) (T, error) {
		if err := c.acquire(ctx, limiter); err != nil {
			var zero T
			return zero, err
		}
		return op(ctx)
	})
}

func (c *Client) acquire(ctx context.Context, limiter *rate.Limiter) error {
	start := time.Now()
	defer c.stats.rateLimitWait.Since(start)
	return limiter.Wait(ctx)
}
