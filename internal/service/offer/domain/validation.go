// internal/service/offer/domain/validation.go
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// NonFieldError 是不属于某个具体字段的校验错误所使用的键。
const NonFieldError = "__all__"

const maxNameLength = 128

// 规则取值的精度上限
const (
	valueDecimalPlaces = 2
	valueIntegerDigits = 10
)

var maxValue = decimal.New(1, valueIntegerDigits)

// ErrorKind 区分普通格式错误与引用错误（例如引用了不存在的 Range）。
type ErrorKind int

const (
	KindInvalid ErrorKind = iota
	KindReferential
)

type FieldError struct {
	Field   string
	Kind    ErrorKind
	Message string
}

// ValidationErrors 是单个步骤内的校验结果，它不会作为 error 穿过向导边界。
type ValidationErrors []FieldError

func (v *ValidationErrors) Invalid(field, msg string) {
	*v = append(*v, FieldError{Field: field, Kind: KindInvalid, Message: msg})
}

func (v *ValidationErrors) Referential(field, msg string) {
	*v = append(*v, FieldError{Field: field, Kind: KindReferential, Message: msg})
}

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// For 返回某个字段的所有错误信息，模板渲染时使用。
func (v ValidationErrors) For(field string) []string {
	var msgs []string
	for _, fe := range v {
		if fe.Field == field {
			msgs = append(msgs, fe.Message)
		}
	}
	return msgs
}

func (v ValidationErrors) HasReferential() bool {
	for _, fe := range v {
		if fe.Kind == KindReferential {
			return true
		}
	}
	return false
}

const (
	msgRequired    = "This field is required."
	msgInvalidDate = "Enter a valid date."
)

// MetadataForm 是元数据步骤提交的原始字段。
type MetadataForm struct {
	Name        string
	Description string
	StartDate   string
	EndDate     string
}

func (f MetadataForm) Validate() (Metadata, ValidationErrors) {
	var errs ValidationErrors
	md := Metadata{
		Name:        strings.TrimSpace(f.Name),
		Description: strings.TrimSpace(f.Description),
	}

	switch {
	case md.Name == "":
		errs.Invalid("name", msgRequired)
	case utf8.RuneCountInString(md.Name) > maxNameLength:
		errs.Invalid("name", "Ensure this value has at most 128 characters.")
	}

	md.StartDate = parseDate(f.StartDate, "start_date", &errs)
	md.EndDate = parseDate(f.EndDate, "end_date", &errs)
	if !md.StartDate.IsZero() && !md.EndDate.IsZero() && md.EndDate.Before(md.StartDate) {
		errs.Invalid(NonFieldError, "The end date must be after the start date.")
	}
	return md, errs
}

func parseDate(raw, field string, errs *ValidationErrors) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		errs.Invalid(field, msgRequired)
		return time.Time{}
	}
	t, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		errs.Invalid(field, msgInvalidDate)
		return time.Time{}
	}
	return t
}

// RuleForm 是条件与优惠步骤共用的原始字段：range、type、value。
type RuleForm struct {
	Range string
	Type  string
	Value string
}

// ValidateCondition 只做格式校验，Range 是否存在由应用层查询仓储后补充。
func (f RuleForm) ValidateCondition() (ConditionDraft, ValidationErrors) {
	var errs ValidationErrors
	draft := ConditionDraft{
		RangeID: parseRangeID(f.Range, &errs),
		Type:    ConditionType(strings.TrimSpace(f.Type)),
	}

	if draft.Type == "" {
		errs.Invalid("type", msgRequired)
	} else if !draft.Type.Valid() {
		errs.Invalid("type", "Select a valid choice. "+string(draft.Type)+" is not one of the available choices.")
	}

	value, ok := parseValue(f.Value, &errs)
	if ok {
		switch {
		case !value.IsPositive():
			errs.Invalid("value", "Ensure this value is greater than 0.")
		case (draft.Type == ConditionCount || draft.Type == ConditionCoverage) && !value.IsInteger():
			errs.Invalid("value", "Enter a whole number.")
		}
		draft.Value = value
	}
	return draft, errs
}

func (f RuleForm) ValidateBenefit() (BenefitDraft, ValidationErrors) {
	var errs ValidationErrors
	draft := BenefitDraft{
		RangeID: parseRangeID(f.Range, &errs),
		Type:    BenefitType(strings.TrimSpace(f.Type)),
	}

	if draft.Type == "" {
		errs.Invalid("type", msgRequired)
	} else if !draft.Type.Valid() {
		errs.Invalid("type", "Select a valid choice. "+string(draft.Type)+" is not one of the available choices.")
	}

	// Multibuy 不依赖 value，允许留空
	if draft.Type == BenefitMultibuy && strings.TrimSpace(f.Value) == "" {
		draft.Value = decimal.Zero
		return draft, errs
	}

	value, ok := parseValue(f.Value, &errs)
	if ok {
		switch {
		case value.IsNegative():
			errs.Invalid("value", "Ensure this value is greater than or equal to 0.")
		case draft.Type == BenefitPercentage && (!value.IsPositive() || value.GreaterThan(decimal.NewFromInt(100))):
			errs.Invalid("value", "Percentage benefit value must be between 0 and 100.")
		}
		draft.Value = value
	}
	return draft, errs
}

func parseRangeID(raw string, errs *ValidationErrors) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		errs.Invalid("range", msgRequired)
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		errs.Invalid("range", "Select a valid range.")
		return 0
	}
	return id
}

func parseValue(raw string, errs *ValidationErrors) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		errs.Invalid("value", msgRequired)
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		errs.Invalid("value", "Enter a number.")
		return decimal.Zero, false
	}
	// 与存储列 decimal(12,2) 保持一致
	if !value.Equal(value.Truncate(valueDecimalPlaces)) {
		errs.Invalid("value", fmt.Sprintf("Ensure that there are no more than %d decimal places.", valueDecimalPlaces))
		return decimal.Zero, false
	}
	if value.Abs().GreaterThanOrEqual(maxValue) {
		errs.Invalid("value", fmt.Sprintf("Ensure that there are no more than %d digits before the decimal point.", valueIntegerDigits))
		return decimal.Zero, false
	}
	return value, true
}
