// internal/service/offer/domain/wizard.go
package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Step 是优惠创建向导的状态。顺序固定：元数据 → 条件 → 优惠 → 预览 → 已提交。
type Step string

const (
	StepMetadata  Step = "metadata"
	StepCondition Step = "condition"
	StepBenefit   Step = "benefit"
	StepPreview   Step = "preview"
	StepCommitted Step = "committed" // 终态
)

// WizardSteps 是可以被访问的步骤（不含终态）。
var WizardSteps = []Step{StepMetadata, StepCondition, StepBenefit, StepPreview}

func (s Step) index() int {
	for i, step := range WizardSteps {
		if step == s {
			return i
		}
	}
	return len(WizardSteps)
}

// Next 返回成功提交当前步骤后应该进入的状态。
func (s Step) Next() Step {
	switch s {
	case StepMetadata:
		return StepCondition
	case StepCondition:
		return StepBenefit
	case StepBenefit:
		return StepPreview
	default:
		return StepCommitted
	}
}

type Metadata struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
}

type ConditionDraft struct {
	RangeID int64           `json:"range_id"`
	Type    ConditionType   `json:"type"`
	Value   decimal.Decimal `json:"value"`
}

type BenefitDraft struct {
	RangeID int64           `json:"range_id"`
	Type    BenefitType     `json:"type"`
	Value   decimal.Decimal `json:"value"`
}

// DraftKey 标识一份向导草稿：会话令牌 + 作用域（新建，或者正在编辑的优惠 ID）。
// 同一个会话可以同时编辑多个优惠而互不干扰。
type DraftKey struct {
	Session string
	OfferID int64
}

func (k DraftKey) IsEdit() bool {
	return k.OfferID > 0
}

func (k DraftKey) Scope() string {
	if k.IsEdit() {
		return strconv.FormatInt(k.OfferID, 10)
	}
	return "new"
}

// Draft 是向导在各步骤之间累积的数据。提交前它从不写入优惠表。
type Draft struct {
	OfferID   int64           `json:"offer_id,omitempty"`
	Metadata  *Metadata       `json:"metadata,omitempty"`
	Condition *ConditionDraft `json:"condition,omitempty"`
	Benefit   *BenefitDraft   `json:"benefit,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func NewDraft(offerID int64) *Draft {
	return &Draft{OfferID: offerID, UpdatedAt: time.Now()}
}

// DraftFromOffer 用已提交的优惠预填草稿，使编辑流程中原样重提交成为空操作。
func DraftFromOffer(o *Offer) *Draft {
	d := NewDraft(o.ID)
	d.Metadata = &Metadata{
		Name:        o.Name,
		Description: o.Description,
		StartDate:   o.StartDate,
		EndDate:     o.EndDate,
	}
	if o.Condition != nil {
		d.Condition = &ConditionDraft{RangeID: o.Condition.RangeID, Type: o.Condition.Type, Value: o.Condition.Value}
	}
	if o.Benefit != nil {
		d.Benefit = &BenefitDraft{RangeID: o.Benefit.RangeID, Type: o.Benefit.Type, Value: o.Benefit.Value}
	}
	return d
}

// FirstIncomplete 返回第一个还缺数据的步骤；全部齐备时返回 StepPreview。
func (d *Draft) FirstIncomplete() Step {
	switch {
	case d.Metadata == nil:
		return StepMetadata
	case d.Condition == nil:
		return StepCondition
	case d.Benefit == nil:
		return StepBenefit
	default:
		return StepPreview
	}
}

// Guard 检查 step 的前置步骤是否都已完成。未完成时返回应该跳转到的步骤。
func (d *Draft) Guard(step Step) (Step, bool) {
	first := d.FirstIncomplete()
	if step.index() <= first.index() {
		return step, true
	}
	return first, false
}

func (d *Draft) SetMetadata(md Metadata) Step {
	d.Metadata = &md
	d.UpdatedAt = time.Now()
	return StepMetadata.Next()
}

func (d *Draft) SetCondition(c ConditionDraft) Step {
	d.Condition = &c
	d.UpdatedAt = time.Now()
	return StepCondition.Next()
}

func (d *Draft) SetBenefit(b BenefitDraft) Step {
	d.Benefit = &b
	d.UpdatedAt = time.Now()
	return StepBenefit.Next()
}

// Assemble 把草稿组装为完整的 Offer。existing 为编辑流程中已提交的优惠，
// 组装结果会沿用它的 ID 以及所属条件/优惠的 ID，从而原地更新而不是新建。
func (d *Draft) Assemble(existing *Offer) (*Offer, ValidationErrors) {
	var errs ValidationErrors
	if d.Metadata == nil {
		errs.Invalid(NonFieldError, "The offer name and dates have not been provided yet.")
	}
	if d.Condition == nil {
		errs.Invalid(NonFieldError, "The offer condition has not been provided yet.")
	}
	if d.Benefit == nil {
		errs.Invalid(NonFieldError, "The offer benefit has not been provided yet.")
	}
	if errs.HasErrors() {
		return nil, errs
	}

	o := &Offer{
		Name:        d.Metadata.Name,
		Description: d.Metadata.Description,
		StartDate:   d.Metadata.StartDate,
		EndDate:     d.Metadata.EndDate,
		Condition: &Condition{
			RangeID: d.Condition.RangeID,
			Type:    d.Condition.Type,
			Value:   d.Condition.Value,
		},
		Benefit: &Benefit{
			RangeID: d.Benefit.RangeID,
			Type:    d.Benefit.Type,
			Value:   d.Benefit.Value,
		},
	}
	if existing != nil {
		o.ID = existing.ID
		o.CreatedAt = existing.CreatedAt
		if existing.Condition != nil {
			o.Condition.ID = existing.Condition.ID
		}
		if existing.Benefit != nil {
			o.Benefit.ID = existing.Benefit.ID
		}
	}
	return o, nil
}
