package ports

import (
	"context"

	"github.com/sediba/edubot/internal/domain"
)

// Deliverer pushes content to a subscriber over an out-of-band channel
// (SMS in production). Delivery is best-effort: the dialog that scheduled
// the request has already received its response and never observes the
// outcome.
type Deliverer interface {
	Deliver(ctx context.Context, req domain.DeliveryRequest) error
}
