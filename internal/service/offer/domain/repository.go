// internal/service/offer/domain/repository.go
package domain

import "context"

// OfferRepository 定义了优惠聚合的持久化接口。
// Condition 与 Benefit 归属于 Offer，只通过它一起写入或删除。
type OfferRepository interface {
	// Create 在一个事务中写入条件、优惠与 Offer，并回填所有 ID。
	Create(ctx context.Context, offer *Offer) error

	// Update 在一个事务中原地更新 Offer 及其条件、优惠。
	Update(ctx context.Context, offer *Offer) error

	FindByID(ctx context.Context, id int64) (*Offer, error)
	List(ctx context.Context) ([]*Offer, error)
	Delete(ctx context.Context, id int64) error

	// NameTaken 判断名称是否已被其它优惠占用，excludeID 为正在编辑的优惠。
	NameTaken(ctx context.Context, name string, excludeID int64) (bool, error)
}

// RangeFinder 是向导需要的只读 Range 查询能力，可以由本地库或远端目录服务实现。
type RangeFinder interface {
	FindByID(ctx context.Context, id int64) (*Range, error)
	List(ctx context.Context) ([]*Range, error)
}

// RangeRepository 是本地 Range 表的完整读写接口。
type RangeRepository interface {
	RangeFinder
	Create(ctx context.Context, r *Range) error
	Update(ctx context.Context, r *Range) error
	Delete(ctx context.Context, id int64) error
}

// DraftStore 保存向导草稿，按会话与作用域隔离。
type DraftStore interface {
	// Load 在草稿不存在或已过期时返回 ErrDraftNotFound。
	Load(ctx context.Context, key DraftKey) (*Draft, error)
	Save(ctx context.Context, key DraftKey, draft *Draft) error
	Delete(ctx context.Context, key DraftKey) error
}
