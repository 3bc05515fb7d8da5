package port

import (
	"context"

	"merchdash/internal/service/offer/domain"
)

// OfferEventPublisher 是优惠领域事件的出站端口。
type OfferEventPublisher interface {
	PublishOfferCommitted(ctx context.Context, event *domain.OfferCommitted) error
}
