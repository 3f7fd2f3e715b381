package notification

import (
	"context"

	"github.com/datametry/edr/alert"
)

// Channel delivers a single alert to a notification endpoint.  A nil error means the endpoint accepted
// the alert.
type Channel interface {
	Send(ctx context.Context, endpoint string, a *alert.Alert, workflow bool) error
}
