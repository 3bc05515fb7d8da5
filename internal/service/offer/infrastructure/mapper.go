package infrastructure

import (
	"strconv"
	"strings"

	"merchdash/internal/service/offer/domain"
)

// ToDomainRange 将数据库模型转换为领域模型
func ToDomainRange(model *RangeModel) *domain.Range {
	if model == nil || model.ID == 0 {
		return nil
	}
	return &domain.Range{
		ID:                  model.ID,
		Name:                model.Name,
		IncludesAllProducts: model.IncludesAllProducts,
		IncludedProductIDs:  splitIDs(model.IncludedProductIDs),
	}
}

func FromDomainRange(r *domain.Range) *RangeModel {
	return &RangeModel{
		ID:                  r.ID,
		Name:                r.Name,
		IncludesAllProducts: r.IncludesAllProducts,
		IncludedProductIDs:  joinIDs(r.IncludedProductIDs),
	}
}

// ToDomainOffer 将预加载了条件、优惠及其范围的模型转换为聚合。
func ToDomainOffer(model *OfferModel) *domain.Offer {
	if model == nil {
		return nil
	}
	return &domain.Offer{
		ID:          model.ID,
		Name:        model.Name,
		Description: model.Description,
		StartDate:   model.StartDate.UTC(),
		EndDate:     model.EndDate.UTC(),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		Condition: &domain.Condition{
			ID:      model.Condition.ID,
			RangeID: model.Condition.RangeID,
			Range:   ToDomainRange(&model.Condition.Range),
			Type:    domain.ConditionType(model.Condition.Type),
			Value:   model.Condition.Value,
		},
		Benefit: &domain.Benefit{
			ID:      model.Benefit.ID,
			RangeID: model.Benefit.RangeID,
			Range:   ToDomainRange(&model.Benefit.Range),
			Type:    domain.BenefitType(model.Benefit.Type),
			Value:   model.Benefit.Value,
		},
	}
}

// 注意：这里只转换自身字段，关联通过显式的 ID 写入，避免 GORM 级联保存 Range
func fromDomainCondition(c *domain.Condition) *ConditionModel {
	return &ConditionModel{ID: c.ID, RangeID: c.RangeID, Type: string(c.Type), Value: c.Value}
}

func fromDomainBenefit(b *domain.Benefit) *BenefitModel {
	return &BenefitModel{ID: b.ID, RangeID: b.RangeID, Type: string(b.Type), Value: b.Value}
}

func splitIDs(raw string) []int64 {
	if raw == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
