package application

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"merchdash/internal/pkg/logger"
	"merchdash/internal/service/offer/domain"
)

// OfferService 提供已提交优惠的查询与删除，列表页和编辑入口使用。
type OfferService struct {
	offers domain.OfferRepository
	tracer trace.Tracer
}

func NewOfferService(offers domain.OfferRepository, tracer trace.Tracer) *OfferService {
	return &OfferService{offers: offers, tracer: tracer}
}

func (s *OfferService) List(ctx context.Context) ([]*domain.Offer, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListOffers")
	defer span.End()

	offers, err := s.offers.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("offer.count", len(offers)))
	return offers, nil
}

func (s *OfferService) Get(ctx context.Context, id int64) (*domain.Offer, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetOffer")
	defer span.End()
	span.SetAttributes(attribute.Int64("offer.id", id))

	offer, err := s.offers.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return offer, nil
}

// Delete 删除优惠及其拥有的条件和优惠内容，引用的 Range 保留。
func (s *OfferService) Delete(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "service.DeleteOffer")
	defer span.End()
	span.SetAttributes(attribute.Int64("offer.id", id))

	if err := s.offers.Delete(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}
	logger.Ctx(ctx).Info().Int64("offer_id", id).Msg("Offer deleted")
	return nil
}
