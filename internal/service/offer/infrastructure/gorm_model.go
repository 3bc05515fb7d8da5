package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
)

// RangeModel 对应数据库中的 offer_range 表
type RangeModel struct {
	ID                  int64  `gorm:"primaryKey"`
	Name                string `gorm:"size:128;uniqueIndex;not null"`
	IncludesAllProducts bool   `gorm:"not null;default:false"`
	IncludedProductIDs  string `gorm:"type:text"` // 逗号分隔的商品 ID
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (RangeModel) TableName() string {
	return "offer_range"
}

// ConditionModel 对应数据库中的 offer_condition 表
type ConditionModel struct {
	ID      int64           `gorm:"primaryKey"`
	RangeID int64           `gorm:"index;not null"`
	Type    string          `gorm:"size:32;not null"`
	Value   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// 关联关系
	Range RangeModel `gorm:"foreignKey:RangeID"`
}

func (ConditionModel) TableName() string {
	return "offer_condition"
}

// BenefitModel 对应数据库中的 offer_benefit 表
type BenefitModel struct {
	ID      int64           `gorm:"primaryKey"`
	RangeID int64           `gorm:"index;not null"`
	Type    string          `gorm:"size:32;not null"`
	Value   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Range   RangeModel      `gorm:"foreignKey:RangeID"`
}

func (BenefitModel) TableName() string {
	return "offer_benefit"
}

// OfferModel 对应数据库中的 offer_conditionaloffer 表
type OfferModel struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"size:128;uniqueIndex;not null"`
	Description string    `gorm:"type:text"`
	StartDate   time.Time `gorm:"not null"`
	EndDate     time.Time `gorm:"not null"`
	ConditionID int64     `gorm:"not null"`
	BenefitID   int64     `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Condition ConditionModel `gorm:"foreignKey:ConditionID"`
	Benefit   BenefitModel   `gorm:"foreignKey:BenefitID"`
}

func (OfferModel) TableName() string {
	return "offer_conditionaloffer"
}
