package utils

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// NewRestyClient returns a client with the shared timeout and browser user agent.
// Retries are left to callers.
func NewRestyClient(timeout time.Duration, userAgent string) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetLogger(disableLogger{}).
		SetHeader("Accept-Charset", "utf-8").
		SetHeader("User-Agent", userAgent)
}

// RetryOnRateLimit makes c retry 429 responses, honouring Retry-After.
func RetryOnRateLimit(c *resty.Client, count int, wait time.Duration) *resty.Client {
	return c.SetRetryCount(count).
		SetRetryWaitTime(wait).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			if resp.StatusCode() == http.StatusTooManyRequests {
				if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
					if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
						return seconds, nil
					}
					if t, err := http.ParseTime(retryAfter); err == nil {
						return time.Until(t), nil
					}
				}
			}
			return wait, nil
		}).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r.StatusCode() == http.StatusTooManyRequests
		})
}

type disableLogger struct{}

func (d disableLogger) Errorf(string, ...interface{}) {}
func (d disableLogger) Warnf(string, ...interface{})  {}
func (d disableLogger) Debugf(string, ...interface{}) {}
