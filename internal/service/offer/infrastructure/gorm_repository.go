package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"merchdash/internal/service/offer/domain"
)

// GormOfferRepository 是 OfferRepository 的 GORM 实现
type GormOfferRepository struct {
	db *gorm.DB
}

// NewGormOfferRepository 创建一个新的 GORM 仓储实例
func NewGormOfferRepository(db *gorm.DB) *GormOfferRepository {
	return &GormOfferRepository{db: db}
}

// Create 在同一个事务里依次写入条件、优惠和 Offer，任何一步失败都整体回滚。
// 只有事务提交成功后才回填领域对象的 ID。
func (r *GormOfferRepository) Create(ctx context.Context, offer *domain.Offer) error {
	var model *OfferModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cond := fromDomainCondition(offer.Condition)
		cond.ID = 0
		if err := tx.Omit(clause.Associations).Create(cond).Error; err != nil {
			return errors.Wrap(err, "create condition")
		}

		benefit := fromDomainBenefit(offer.Benefit)
		benefit.ID = 0
		if err := tx.Omit(clause.Associations).Create(benefit).Error; err != nil {
			return errors.Wrap(err, "create benefit")
		}

		model = &OfferModel{
			Name:        offer.Name,
			Description: offer.Description,
			StartDate:   offer.StartDate,
			EndDate:     offer.EndDate,
			ConditionID: cond.ID,
			BenefitID:   benefit.ID,
		}
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return errors.Wrap(translateOfferError(err), "create offer")
		}
		return nil
	})
	if err != nil {
		return err
	}

	offer.ID = model.ID
	offer.Condition.ID = model.ConditionID
	offer.Benefit.ID = model.BenefitID
	offer.CreatedAt = model.CreatedAt
	offer.UpdatedAt = model.UpdatedAt
	return nil
}

// Update 原地更新 Offer 及其拥有的条件和优惠。
func (r *GormOfferRepository) Update(ctx context.Context, offer *domain.Offer) error {
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current OfferModel
		if err := tx.Select("id", "condition_id", "benefit_id").First(&current, offer.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrOfferNotFound
			}
			return errors.Wrap(err, "load offer for update")
		}

		if err := tx.Model(&ConditionModel{}).Where("id = ?", current.ConditionID).Updates(map[string]interface{}{
			"range_id": offer.Condition.RangeID,
			"type":     string(offer.Condition.Type),
			"value":    offer.Condition.Value,
		}).Error; err != nil {
			return errors.Wrap(err, "update condition")
		}

		if err := tx.Model(&BenefitModel{}).Where("id = ?", current.BenefitID).Updates(map[string]interface{}{
			"range_id": offer.Benefit.RangeID,
			"type":     string(offer.Benefit.Type),
			"value":    offer.Benefit.Value,
		}).Error; err != nil {
			return errors.Wrap(err, "update benefit")
		}

		if err := tx.Model(&OfferModel{}).Where("id = ?", offer.ID).Updates(map[string]interface{}{
			"name":        offer.Name,
			"description": offer.Description,
			"start_date":  offer.StartDate,
			"end_date":    offer.EndDate,
			"updated_at":  now,
		}).Error; err != nil {
			return errors.Wrap(translateOfferError(err), "update offer")
		}

		offer.Condition.ID = current.ConditionID
		offer.Benefit.ID = current.BenefitID
		offer.UpdatedAt = now
		return nil
	})
}

// FindByID 使用 Preload 一次性加载条件、优惠以及它们引用的范围
func (r *GormOfferRepository) FindByID(ctx context.Context, id int64) (*domain.Offer, error) {
	var model OfferModel
	err := r.db.WithContext(ctx).
		Preload("Condition.Range").
		Preload("Benefit.Range").
		First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOfferNotFound
		}
		return nil, errors.Wrapf(err, "find offer %d", id)
	}
	return ToDomainOffer(&model), nil
}

func (r *GormOfferRepository) List(ctx context.Context) ([]*domain.Offer, error) {
	var models []*OfferModel
	err := r.db.WithContext(ctx).
		Preload("Condition.Range").
		Preload("Benefit.Range").
		Order("id DESC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "list offers")
	}

	offers := make([]*domain.Offer, len(models))
	for i, m := range models {
		offers[i] = ToDomainOffer(m)
	}
	return offers, nil
}

// Delete 同时删除 Offer 以及它拥有的条件和优惠。
func (r *GormOfferRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model OfferModel
		if err := tx.Select("id", "condition_id", "benefit_id").First(&model, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrOfferNotFound
			}
			return errors.Wrapf(err, "load offer %d", id)
		}
		if err := tx.Delete(&OfferModel{}, model.ID).Error; err != nil {
			return errors.Wrap(err, "delete offer")
		}
		if err := tx.Delete(&ConditionModel{}, model.ConditionID).Error; err != nil {
			return errors.Wrap(err, "delete condition")
		}
		if err := tx.Delete(&BenefitModel{}, model.BenefitID).Error; err != nil {
			return errors.Wrap(err, "delete benefit")
		}
		return nil
	})
}

func (r *GormOfferRepository) NameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&OfferModel{}).
		Where("name = ? AND id <> ?", name, excludeID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "check offer name")
	}
	return count > 0, nil
}

func translateOfferError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrDuplicateName
	}
	return err
}

// GormRangeRepository 是 RangeRepository 的 GORM 实现
type GormRangeRepository struct {
	db *gorm.DB
}

func NewGormRangeRepository(db *gorm.DB) *GormRangeRepository {
	return &GormRangeRepository{db: db}
}

func (r *GormRangeRepository) Create(ctx context.Context, rng *domain.Range) error {
	model := FromDomainRange(rng)
	model.ID = 0
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrRangeNameTaken
		}
		return errors.Wrap(err, "create range")
	}
	rng.ID = model.ID
	return nil
}

func (r *GormRangeRepository) Update(ctx context.Context, rng *domain.Range) error {
	res := r.db.WithContext(ctx).Model(&RangeModel{}).Where("id = ?", rng.ID).Updates(map[string]interface{}{
		"name":                  rng.Name,
		"includes_all_products": rng.IncludesAllProducts,
		"included_product_ids":  joinIDs(rng.IncludedProductIDs),
		"updated_at":            time.Now(),
	})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return domain.ErrRangeNameTaken
		}
		return errors.Wrap(res.Error, "update range")
	}
	if res.RowsAffected == 0 {
		return domain.ErrRangeNotFound
	}
	return nil
}

func (r *GormRangeRepository) FindByID(ctx context.Context, id int64) (*domain.Range, error) {
	var model RangeModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRangeNotFound
		}
		return nil, errors.Wrapf(err, "find range %d", id)
	}
	return ToDomainRange(&model), nil
}

func (r *GormRangeRepository) List(ctx context.Context) ([]*domain.Range, error) {
	var models []*RangeModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list ranges")
	}
	ranges := make([]*domain.Range, len(models))
	for i, m := range models {
		ranges[i] = ToDomainRange(m)
	}
	return ranges, nil
}

// Delete 拒绝删除仍被条件或优惠引用的范围。
func (r *GormRangeRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&ConditionModel{}).Where("range_id = ?", id).Count(&refs).Error; err != nil {
			return errors.Wrap(err, "count condition references")
		}
		if refs == 0 {
			if err := tx.Model(&BenefitModel{}).Where("range_id = ?", id).Count(&refs).Error; err != nil {
				return errors.Wrap(err, "count benefit references")
			}
		}
		if refs > 0 {
			return domain.ErrRangeInUse
		}

		res := tx.Delete(&RangeModel{}, id)
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete range")
		}
		if res.RowsAffected == 0 {
			return domain.ErrRangeNotFound
		}
		return nil
	})
}
