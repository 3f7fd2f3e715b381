package http

import (
	stdhttp "net/http"
	"regexp"

	"github.com/datametry/edr/pkg/logger"
)

// webhookSecretRe matches the secret path segments of Slack style webhook URLs
// (https://hooks.slack.com/services/T000/B000/XXXX or .../workflows/T000/A000/123/XXXX).
var webhookSecretRe = regexp.MustCompile(`/(services|workflows|triggers)/[^?#\s]+`)

// loggingRoundTripper wraps another RoundTripper and logs only errors.
type loggingRoundTripper struct {
	next stdhttp.RoundTripper
}

func (l loggingRoundTripper) RoundTrip(req *stdhttp.Request) (*stdhttp.Response, error) {
	resp, err := l.next.RoundTrip(req)
	if err != nil {
		logger.Errorf("HTTP transport error method=%s url=%s: %v", req.Method, RedactURL(req.URL.String()), err)
		return resp, err
	}

	if resp != nil && resp.StatusCode >= 400 {
		if rid := resp.Header.Get("x-slack-req-id"); rid != "" {
			logger.Errorf("HTTP status=%d method=%s url=%s rid=%s", resp.StatusCode, req.Method, RedactURL(req.URL.String()), rid)
		} else {
			logger.Errorf("HTTP status=%d method=%s url=%s", resp.StatusCode, req.Method, RedactURL(req.URL.String()))
		}
	}
	return resp, nil
}

// RedactURL hides webhook secrets so URLs can be logged.
func RedactURL(u string) string {
	return webhookSecretRe.ReplaceAllString(u, "/$1/REDACTED")
}

// WithLogging wraps the client's Transport to log only errors (transport failures and HTTP >= 400).
func WithLogging(c *stdhttp.Client) *stdhttp.Client {
	if c == nil {
		c = &stdhttp.Client{}
	}
	next := c.Transport
	if next == nil {
		next = stdhttp.DefaultTransport
	}
	c.Transport = loggingRoundTripper{next: next}
	return c
}
