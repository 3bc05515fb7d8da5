// internal/service/offer/domain/offer.go
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout 是表单与接口中日期字段的统一格式。
const DateLayout = "2006-01-02"

// ConditionType 决定条件如何判断是否满足。
type ConditionType string

const (
	ConditionCount    ConditionType = "Count"    // 篮子中属于范围的商品数量达到阈值
	ConditionValue    ConditionType = "Value"    // 篮子中属于范围的商品金额达到阈值
	ConditionCoverage ConditionType = "Coverage" // 篮子中覆盖范围内不同商品的个数达到阈值
)

// ConditionTypes 按展示顺序列出所有条件类型。
var ConditionTypes = []ConditionType{ConditionCount, ConditionValue, ConditionCoverage}

func (t ConditionType) Valid() bool {
	for _, ct := range ConditionTypes {
		if ct == t {
			return true
		}
	}
	return false
}

// BenefitType 决定优惠如何计算。
type BenefitType string

const (
	BenefitPercentage BenefitType = "Percentage"  // 按比例折扣
	BenefitAbsolute   BenefitType = "Absolute"    // 固定金额立减
	BenefitMultibuy   BenefitType = "Multibuy"    // 多买，最便宜的一件免费
	BenefitFixedPrice BenefitType = "Fixed price" // 一口价
)

var BenefitTypes = []BenefitType{BenefitPercentage, BenefitAbsolute, BenefitMultibuy, BenefitFixedPrice}

func (t BenefitType) Valid() bool {
	for _, bt := range BenefitTypes {
		if bt == t {
			return true
		}
	}
	return false
}

// Range 是一组商品的命名谓词。它由目录维护，Condition/Benefit 只引用它。
type Range struct {
	ID                  int64   `json:"id"`
	Name                string  `json:"name"`
	IncludesAllProducts bool    `json:"includes_all_products"`
	IncludedProductIDs  []int64 `json:"included_product_ids,omitempty"`
}

// Condition 是触发优惠的条件，提交后归属于唯一的 Offer。
type Condition struct {
	ID      int64
	RangeID int64
	Range   *Range // 仓储加载时填充，可能为 nil
	Type    ConditionType
	Value   decimal.Decimal
}

func (c *Condition) Describe() string {
	rangeName := rangeLabel(c.Range, c.RangeID)
	switch c.Type {
	case ConditionCount:
		return fmt.Sprintf("Basket includes %s item(s) from %s", c.Value.String(), rangeName)
	case ConditionValue:
		return fmt.Sprintf("Basket includes %s (value) from %s", c.Value.StringFixed(2), rangeName)
	case ConditionCoverage:
		return fmt.Sprintf("Basket includes %s distinct item(s) from %s", c.Value.String(), rangeName)
	}
	return fmt.Sprintf("%s %s on %s", c.Type, c.Value.String(), rangeName)
}

// Benefit 是条件满足后给予的优惠，提交后归属于唯一的 Offer。
type Benefit struct {
	ID      int64
	RangeID int64
	Range   *Range
	Type    BenefitType
	Value   decimal.Decimal
}

func (b *Benefit) Describe() string {
	rangeName := rangeLabel(b.Range, b.RangeID)
	switch b.Type {
	case BenefitPercentage:
		return fmt.Sprintf("%s%% discount on %s", b.Value.String(), rangeName)
	case BenefitAbsolute:
		return fmt.Sprintf("%s discount on %s", b.Value.StringFixed(2), rangeName)
	case BenefitMultibuy:
		return fmt.Sprintf("Cheapest product from %s is free", rangeName)
	case BenefitFixedPrice:
		return fmt.Sprintf("Products from %s for %s", rangeName, b.Value.StringFixed(2))
	}
	return fmt.Sprintf("%s %s on %s", b.Type, b.Value.String(), rangeName)
}

func rangeLabel(r *Range, id int64) string {
	if r != nil && r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("range #%d", id)
}

// Offer 是条件优惠的聚合根 (ConditionalOffer)。
// 只有在向导的预览步骤确认后，它才会以完整的形态（元数据 + 条件 + 优惠）出现。
type Offer struct {
	ID          int64
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	Condition   *Condition
	Benefit     *Benefit
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsActive 判断给定日期是否处于优惠有效期内（首尾日期都包含）。
func (o *Offer) IsActive(at time.Time) bool {
	day := truncateDay(at)
	return !day.Before(truncateDay(o.StartDate)) && !day.After(truncateDay(o.EndDate))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
