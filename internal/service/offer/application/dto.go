package application

import "merchdash/internal/service/offer/domain"

// StepResult 是一次步骤提交的结果。
// Errors 非空时停留在 Step 并重新展示表单；否则调用方应重定向到 Step。
// Step 为 StepCommitted 时表示优惠已提交，OfferID 为提交后的优惠 ID。
type StepResult struct {
	Step    domain.Step
	Draft   *domain.Draft
	Errors  domain.ValidationErrors
	OfferID int64
}

func (r *StepResult) Advanced() bool {
	return !r.Errors.HasErrors()
}

// StepView 是渲染某个步骤所需的全部数据。
// Redirect 非空表示前置步骤未完成，调用方应跳转过去而不是渲染。
type StepView struct {
	Step     domain.Step
	Redirect domain.Step
	Draft    *domain.Draft
	Ranges   []*domain.Range
	Preview  *domain.Offer // 仅预览步骤填充，条件/优惠已解析出 Range
}

// CreateRangeRequest 是新建商品范围的请求体
type CreateRangeRequest struct {
	Name                string  `json:"name"`
	IncludesAllProducts bool    `json:"includes_all_products"`
	IncludedProductIDs  []int64 `json:"included_product_ids"`
}
