package application

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"merchdash/internal/pkg/logger"
	"merchdash/internal/service/offer/domain"
)

// RangeService 管理本地维护的商品范围。只在目录来源为 local 时注册。
type RangeService struct {
	ranges domain.RangeRepository
	tracer trace.Tracer
}

func NewRangeService(ranges domain.RangeRepository, tracer trace.Tracer) *RangeService {
	return &RangeService{ranges: ranges, tracer: tracer}
}

func (s *RangeService) List(ctx context.Context) ([]*domain.Range, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListRanges")
	defer span.End()

	ranges, err := s.ranges.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return ranges, nil
}

func (s *RangeService) Get(ctx context.Context, id int64) (*domain.Range, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetRange")
	defer span.End()
	span.SetAttributes(attribute.Int64("range.id", id))

	rng, err := s.ranges.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return rng, nil
}

// Create 校验并新建一个范围。返回的 ValidationErrors 非空时不会写库。
func (s *RangeService) Create(ctx context.Context, req *CreateRangeRequest) (*domain.Range, domain.ValidationErrors, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreateRange")
	defer span.End()

	var errs domain.ValidationErrors
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		errs.Invalid("name", "This field is required.")
	case utf8.RuneCountInString(name) > 128:
		errs.Invalid("name", "Ensure this value has at most 128 characters.")
	}
	for _, id := range req.IncludedProductIDs {
		if id <= 0 {
			errs.Invalid("included_product_ids", "Product ids must be positive.")
			break
		}
	}
	if errs.HasErrors() {
		return nil, errs, nil
	}

	rng := &domain.Range{
		Name:                name,
		IncludesAllProducts: req.IncludesAllProducts,
		IncludedProductIDs:  req.IncludedProductIDs,
	}
	if err := s.ranges.Create(ctx, rng); err != nil {
		if errors.Is(err, domain.ErrRangeNameTaken) {
			errs.Invalid("name", "A range with this name already exists.")
			return nil, errs, nil
		}
		span.RecordError(err)
		return nil, nil, err
	}
	span.SetAttributes(attribute.Int64("range.id", rng.ID))
	logger.Ctx(ctx).Info().Int64("range_id", rng.ID).Str("name", rng.Name).Msg("Range created")
	return rng, nil, nil
}

// Delete 删除范围；仍被条件或优惠引用时返回 domain.ErrRangeInUse。
func (s *RangeService) Delete(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "service.DeleteRange")
	defer span.End()
	span.SetAttributes(attribute.Int64("range.id", id))

	if err := s.ranges.Delete(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}
	logger.Ctx(ctx).Info().Int64("range_id", id).Msg("Range deleted")
	return nil
}
