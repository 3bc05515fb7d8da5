package application

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"merchdash/internal/pkg/logger"
	"merchdash/internal/pkg/metrics"
	"merchdash/internal/service/offer/domain"
	"merchdash/internal/service/offer/domain/port"
)

const (
	outcomeAdvanced   = "advanced"
	outcomeInvalid    = "invalid"
	outcomeRedirected = "redirected"
	outcomeError      = "error"
	outcomeOK         = "ok"

	msgNameTaken    = "An offer with this name already exists."
	msgRangeMissing = "Select a valid range. That choice is not one of the available choices."
)

// WizardService 编排优惠创建/编辑向导：元数据 → 条件 → 优惠 → 预览确认。
// 各步骤只修改草稿，只有 ConfirmPreview 会把完整的优惠原子地写入仓储。
type WizardService struct {
	offers    domain.OfferRepository
	ranges    domain.RangeFinder
	drafts    domain.DraftStore
	publisher port.OfferEventPublisher
	metrics   *metrics.WizardMetrics
	tracer    trace.Tracer
}

func NewWizardService(offers domain.OfferRepository, ranges domain.RangeFinder, drafts domain.DraftStore, publisher port.OfferEventPublisher, m *metrics.WizardMetrics, tracer trace.Tracer) *WizardService {
	return &WizardService{
		offers:    offers,
		ranges:    ranges,
		drafts:    drafts,
		publisher: publisher,
		metrics:   m,
		tracer:    tracer,
	}
}

// loadDraft 读取草稿；编辑流程下若还没有草稿，则用已提交的优惠预填。
// 编辑的优惠已被删除时，残留的草稿一并清掉并返回 ErrOfferNotFound。
func (s *WizardService) loadDraft(ctx context.Context, key domain.DraftKey) (*domain.Draft, error) {
	draft, err := s.drafts.Load(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrDraftNotFound) {
		return nil, err
	}
	if !key.IsEdit() {
		if draft == nil {
			draft = domain.NewDraft(0)
		}
		return draft, nil
	}

	offer, err := s.offers.FindByID(ctx, key.OfferID)
	if err != nil {
		if draft != nil && errors.Is(err, domain.ErrOfferNotFound) {
			if delErr := s.drafts.Delete(ctx, key); delErr != nil {
				logger.Ctx(ctx).Warn().Err(delErr).Str("scope", key.Scope()).Msg("Failed to discard draft of deleted offer")
			}
		}
		return nil, err
	}
	if draft == nil {
		draft = domain.DraftFromOffer(offer)
	}
	return draft, nil
}

func (s *WizardService) startSpan(ctx context.Context, name string, key domain.DraftKey) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, name)
	span.SetAttributes(
		attribute.String("wizard.scope", key.Scope()),
		attribute.Int64("offer.id", key.OfferID),
	)
	return ctx, span
}

// View 返回渲染某个步骤所需的数据。前置步骤未完成时只返回跳转目标。
func (s *WizardService) View(ctx context.Context, key domain.DraftKey, step domain.Step) (*StepView, error) {
	ctx, span := s.startSpan(ctx, "wizard.View", key)
	defer span.End()
	span.SetAttributes(attribute.String("wizard.step", string(step)))

	draft, err := s.loadDraft(ctx, key)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if target, ok := draft.Guard(step); !ok {
		return &StepView{Step: step, Redirect: target, Draft: draft}, nil
	}

	view := &StepView{Step: step, Draft: draft}
	switch step {
	case domain.StepCondition, domain.StepBenefit:
		if view.Ranges, err = s.ranges.List(ctx); err != nil {
			span.RecordError(err)
			return nil, err
		}
	case domain.StepPreview:
		if view.Preview, err = s.preview(ctx, draft); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}
	return view, nil
}

// preview 组装草稿并解析出条件与优惠引用的 Range，仅用于展示。
func (s *WizardService) preview(ctx context.Context, draft *domain.Draft) (*domain.Offer, error) {
	offer, errs := draft.Assemble(nil)
	if errs.HasErrors() {
		return nil, nil
	}
	offer.ID = draft.OfferID

	for _, ref := range []struct {
		id  int64
		dst **domain.Range
	}{
		{offer.Condition.RangeID, &offer.Condition.Range},
		{offer.Benefit.RangeID, &offer.Benefit.Range},
	} {
		rng, err := s.ranges.FindByID(ctx, ref.id)
		switch {
		case err == nil:
			*ref.dst = rng
		case errors.Is(err, domain.ErrRangeNotFound):
			// 范围已被删除，预览照常展示，确认时会给出引用错误
		default:
			return nil, err
		}
	}
	return offer, nil
}

// SubmitMetadata 处理第一步：名称、描述与有效期。
func (s *WizardService) SubmitMetadata(ctx context.Context, key domain.DraftKey, form domain.MetadataForm) (*StepResult, error) {
	ctx, span := s.startSpan(ctx, "wizard.SubmitMetadata", key)
	defer span.End()

	draft, err := s.loadDraft(ctx, key)
	if err != nil {
		return nil, s.fail(ctx, span, domain.StepMetadata, err)
	}

	md, errs := form.Validate()
	if !errs.HasErrors() {
		taken, err := s.offers.NameTaken(ctx, md.Name, key.OfferID)
		if err != nil {
			return nil, s.fail(ctx, span, domain.StepMetadata, err)
		}
		if taken {
			errs.Invalid("name", msgNameTaken)
		}
	}
	if errs.HasErrors() {
		return s.invalid(span, domain.StepMetadata, draft, errs), nil
	}

	next := draft.SetMetadata(md)
	return s.advance(ctx, span, key, domain.StepMetadata, draft, next)
}

// SubmitCondition 处理第二步：触发条件。
func (s *WizardService) SubmitCondition(ctx context.Context, key domain.DraftKey, form domain.RuleForm) (*StepResult, error) {
	ctx, span := s.startSpan(ctx, "wizard.SubmitCondition", key)
	defer span.End()

	draft, err := s.loadDraft(ctx, key)
	if err != nil {
		return nil, s.fail(ctx, span, domain.StepCondition, err)
	}
	if target, ok := draft.Guard(domain.StepCondition); !ok {
		return s.redirect(span, domain.StepCondition, draft, target), nil
	}

	cond, errs := form.ValidateCondition()
	if cond.RangeID > 0 {
		if err := s.checkRange(ctx, cond.RangeID, &errs); err != nil {
			return nil, s.fail(ctx, span, domain.StepCondition, err)
		}
	}
	if errs.HasErrors() {
		return s.invalid(span, domain.StepCondition, draft, errs), nil
	}

	next := draft.SetCondition(cond)
	return s.advance(ctx, span, key, domain.StepCondition, draft, next)
}

// SubmitBenefit 处理第三步：优惠内容。
func (s *WizardService) SubmitBenefit(ctx context.Context, key domain.DraftKey, form domain.RuleForm) (*StepResult, error) {
	ctx, span := s.startSpan(ctx, "wizard.SubmitBenefit", key)
	defer span.End()

	draft, err := s.loadDraft(ctx, key)
	if err != nil {
		return nil, s.fail(ctx, span, domain.StepBenefit, err)
	}
	if target, ok := draft.Guard(domain.StepBenefit); !ok {
		return s.redirect(span, domain.StepBenefit, draft, target), nil
	}

	benefit, errs := form.ValidateBenefit()
	if benefit.RangeID > 0 {
		if err := s.checkRange(ctx, benefit.RangeID, &errs); err != nil {
			return nil, s.fail(ctx, span, domain.StepBenefit, err)
		}
	}
	if errs.HasErrors() {
		return s.invalid(span, domain.StepBenefit, draft, errs), nil
	}

	next := draft.SetBenefit(benefit)
	return s.advance(ctx, span, key, domain.StepBenefit, draft, next)
}

// ConfirmPreview 是 Preview → Committed 的转换：把条件、优惠和 Offer 在一个事务中写入。
// 草稿不完整或引用失效时返回校验错误，不会写入任何数据；仓储失败时返回 error。
func (s *WizardService) ConfirmPreview(ctx context.Context, key domain.DraftKey) (*StepResult, error) {
	ctx, span := s.startSpan(ctx, "wizard.ConfirmPreview", key)
	defer span.End()

	draft, err := s.loadDraft(ctx, key)
	if err != nil {
		return nil, s.fail(ctx, span, domain.StepPreview, err)
	}

	var existing *domain.Offer
	mode := domain.CommitCreated
	if key.IsEdit() {
		mode = domain.CommitUpdated
		if existing, err = s.offers.FindByID(ctx, key.OfferID); err != nil {
			return nil, s.fail(ctx, span, domain.StepPreview, err)
		}
	}

	offer, errs := draft.Assemble(existing)
	if !errs.HasErrors() {
		// 草稿保存之后范围可能已被删除，提交前再确认一次引用
		for _, id := range []int64{offer.Condition.RangeID, offer.Benefit.RangeID} {
			if err := s.checkRange(ctx, id, &errs); err != nil {
				return nil, s.fail(ctx, span, domain.StepPreview, err)
			}
		}
	}
	if errs.HasErrors() {
		return s.invalid(span, domain.StepPreview, draft, errs), nil
	}

	start := time.Now()
	if existing == nil {
		err = s.offers.Create(ctx, offer)
	} else {
		err = s.offers.Update(ctx, offer)
	}
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateName) {
			s.metrics.Committed(string(mode), outcomeInvalid, time.Since(start))
			errs.Invalid(domain.NonFieldError, fmt.Sprintf("An offer named %q already exists.", offer.Name))
			return s.invalid(span, domain.StepPreview, draft, errs), nil
		}
		s.metrics.Committed(string(mode), outcomeError, time.Since(start))
		return nil, s.fail(ctx, span, domain.StepPreview, errors.Wrap(err, "commit offer"))
	}
	s.metrics.Committed(string(mode), outcomeOK, time.Since(start))
	s.metrics.StepSubmitted(string(domain.StepPreview), outcomeAdvanced)

	span.SetAttributes(attribute.Int64("offer.id", offer.ID), attribute.String("wizard.commit_mode", string(mode)))
	span.AddEvent("Offer committed")
	logger.Ctx(ctx).Info().Int64("offer_id", offer.ID).Str("name", offer.Name).Str("mode", string(mode)).Msg("Offer committed")

	// 以下失败都不影响已经提交的优惠
	if err := s.drafts.Delete(ctx, key); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("scope", key.Scope()).Msg("Failed to discard wizard draft after commit")
	}
	event := domain.NewOfferCommitted(offer, mode, span.SpanContext().TraceID().String())
	if err := s.publisher.PublishOfferCommitted(ctx, event); err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).Int64("offer_id", offer.ID).Msg("Failed to publish offer committed event")
	}

	return &StepResult{Step: domain.StepCommitted, OfferID: offer.ID}, nil
}

// Cancel 丢弃当前作用域的草稿，已提交的优惠不受影响。
func (s *WizardService) Cancel(ctx context.Context, key domain.DraftKey) error {
	ctx, span := s.startSpan(ctx, "wizard.Cancel", key)
	defer span.End()

	if err := s.drafts.Delete(ctx, key); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *WizardService) checkRange(ctx context.Context, id int64, errs *domain.ValidationErrors) error {
	_, err := s.ranges.FindByID(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrRangeNotFound):
		errs.Referential("range", msgRangeMissing)
		return nil
	default:
		return err
	}
}

func (s *WizardService) advance(ctx context.Context, span trace.Span, key domain.DraftKey, step domain.Step, draft *domain.Draft, next domain.Step) (*StepResult, error) {
	if err := s.drafts.Save(ctx, key, draft); err != nil {
		return nil, s.fail(ctx, span, step, errors.Wrap(err, "save draft"))
	}
	s.metrics.StepSubmitted(string(step), outcomeAdvanced)
	span.AddEvent("Wizard step stored", trace.WithAttributes(attribute.String("wizard.next", string(next))))
	return &StepResult{Step: next, Draft: draft, OfferID: key.OfferID}, nil
}

func (s *WizardService) invalid(span trace.Span, step domain.Step, draft *domain.Draft, errs domain.ValidationErrors) *StepResult {
	s.metrics.StepSubmitted(string(step), outcomeInvalid)
	span.SetAttributes(
		attribute.Int("wizard.errors", len(errs)),
		attribute.Bool("wizard.referential_error", errs.HasReferential()),
	)
	return &StepResult{Step: step, Draft: draft, Errors: errs, OfferID: draft.OfferID}
}

func (s *WizardService) redirect(span trace.Span, step domain.Step, draft *domain.Draft, target domain.Step) *StepResult {
	s.metrics.StepSubmitted(string(step), outcomeRedirected)
	span.AddEvent("Prerequisite step missing", trace.WithAttributes(attribute.String("wizard.redirect", string(target))))
	return &StepResult{Step: target, Draft: draft, OfferID: draft.OfferID}
}

func (s *WizardService) fail(ctx context.Context, span trace.Span, step domain.Step, err error) error {
	s.metrics.StepSubmitted(string(step), outcomeError)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if !errors.Is(err, domain.ErrOfferNotFound) {
		logger.Ctx(ctx).Error().Err(err).Str("step", string(step)).Msg("Wizard step failed")
	}
	return err
}
