package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func completeDraft() *Draft {
	d := NewDraft(0)
	d.SetMetadata(Metadata{Name: "my offer", StartDate: date("2012-01-01"), EndDate: date("2013-01-01")})
	d.SetCondition(ConditionDraft{RangeID: 1, Type: ConditionCount, Value: decimal.NewFromInt(3)})
	d.SetBenefit(BenefitDraft{RangeID: 1, Type: BenefitMultibuy, Value: decimal.NewFromInt(1)})
	return d
}

func TestStepNext(t *testing.T) {
	assert.Equal(t, StepCondition, StepMetadata.Next())
	assert.Equal(t, StepBenefit, StepCondition.Next())
	assert.Equal(t, StepPreview, StepBenefit.Next())
	assert.Equal(t, StepCommitted, StepPreview.Next())
}

func TestDraftGuard(t *testing.T) {
	d := NewDraft(0)

	step, ok := d.Guard(StepMetadata)
	assert.True(t, ok)
	assert.Equal(t, StepMetadata, step)

	step, ok = d.Guard(StepBenefit)
	assert.False(t, ok)
	assert.Equal(t, StepMetadata, step)

	d.SetMetadata(Metadata{Name: "x"})
	step, ok = d.Guard(StepPreview)
	assert.False(t, ok)
	assert.Equal(t, StepCondition, step)

	// 已完成的步骤可以随时回访
	step, ok = d.Guard(StepMetadata)
	assert.True(t, ok)
	assert.Equal(t, StepMetadata, step)
}

func TestDraftSettersReturnNextStep(t *testing.T) {
	d := NewDraft(0)
	assert.Equal(t, StepCondition, d.SetMetadata(Metadata{Name: "a"}))
	assert.Equal(t, StepBenefit, d.SetCondition(ConditionDraft{RangeID: 1}))
	assert.Equal(t, StepPreview, d.SetBenefit(BenefitDraft{RangeID: 1}))
	assert.Equal(t, StepPreview, d.FirstIncomplete())
}

func TestAssembleIncompleteDraft(t *testing.T) {
	d := NewDraft(0)
	d.SetMetadata(Metadata{Name: "only metadata"})

	offer, errs := d.Assemble(nil)
	assert.Nil(t, offer)
	require.Len(t, errs, 2)
	assert.Len(t, errs.For(NonFieldError), 2)
}

func TestAssembleNewOffer(t *testing.T) {
	offer, errs := completeDraft().Assemble(nil)
	require.False(t, errs.HasErrors())

	assert.Zero(t, offer.ID)
	assert.Equal(t, "my offer", offer.Name)
	assert.Equal(t, ConditionCount, offer.Condition.Type)
	assert.True(t, decimal.NewFromInt(3).Equal(offer.Condition.Value))
	assert.Equal(t, BenefitMultibuy, offer.Benefit.Type)
	assert.Zero(t, offer.Condition.ID)
}

func TestAssembleKeepsExistingIdentifiers(t *testing.T) {
	existing := &Offer{
		ID:        42,
		Name:      "my offer",
		CreatedAt: date("2011-06-01"),
		Condition: &Condition{ID: 7},
		Benefit:   &Benefit{ID: 9},
	}
	d := completeDraft()
	d.SetMetadata(Metadata{Name: "my new offer", StartDate: date("2012-01-01"), EndDate: date("2013-01-01")})

	offer, errs := d.Assemble(existing)
	require.False(t, errs.HasErrors())
	assert.Equal(t, int64(42), offer.ID)
	assert.Equal(t, int64(7), offer.Condition.ID)
	assert.Equal(t, int64(9), offer.Benefit.ID)
	assert.Equal(t, "my new offer", offer.Name)
	assert.Equal(t, existing.CreatedAt, offer.CreatedAt)
}

func TestDraftFromOfferRoundTrip(t *testing.T) {
	existing := &Offer{
		ID:          5,
		Name:        "my offer",
		Description: "something",
		StartDate:   date("2012-01-01"),
		EndDate:     date("2013-01-01"),
		Condition:   &Condition{ID: 1, RangeID: 3, Type: ConditionCount, Value: decimal.NewFromInt(3)},
		Benefit:     &Benefit{ID: 2, RangeID: 3, Type: BenefitMultibuy, Value: decimal.NewFromInt(1)},
	}

	d := DraftFromOffer(existing)
	assert.Equal(t, int64(5), d.OfferID)
	assert.Equal(t, StepPreview, d.FirstIncomplete())

	offer, errs := d.Assemble(existing)
	require.False(t, errs.HasErrors())
	assert.Equal(t, existing.Name, offer.Name)
	assert.Equal(t, existing.Description, offer.Description)
	assert.Equal(t, existing.Condition.RangeID, offer.Condition.RangeID)
	assert.True(t, existing.Benefit.Value.Equal(offer.Benefit.Value))
}

func TestDraftKeyScope(t *testing.T) {
	assert.Equal(t, "new", DraftKey{Session: "s"}.Scope())
	assert.False(t, DraftKey{Session: "s"}.IsEdit())
	assert.Equal(t, "12", DraftKey{Session: "s", OfferID: 12}.Scope())
	assert.True(t, DraftKey{Session: "s", OfferID: 12}.IsEdit())
}

func TestOfferIsActive(t *testing.T) {
	o := &Offer{StartDate: date("2012-01-01"), EndDate: date("2013-01-01")}
	assert.True(t, o.IsActive(date("2012-01-01")))
	assert.True(t, o.IsActive(date("2013-01-01").Add(23*time.Hour)))
	assert.False(t, o.IsActive(date("2011-12-31")))
	assert.False(t, o.IsActive(date("2013-01-02")))
}

func TestDescribe(t *testing.T) {
	r := &Range{ID: 1, Name: "All products"}
	c := &Condition{Range: r, Type: ConditionCount, Value: decimal.NewFromInt(3)}
	assert.Equal(t, "Basket includes 3 item(s) from All products", c.Describe())

	b := &Benefit{RangeID: 4, Type: BenefitMultibuy}
	assert.Equal(t, "Cheapest product from range #4 is free", b.Describe())
}
