// internal/service/offer/domain/event.go
package domain

import "time"

type CommitMode string

const (
	CommitCreated CommitMode = "created"
	CommitUpdated CommitMode = "updated"
)

// OfferCommitted 在向导成功提交优惠后发布，供下游（定价、搜索索引等）刷新缓存。
type OfferCommitted struct {
	OfferID     int64      `json:"offerId"`
	Name        string     `json:"name"`
	Mode        CommitMode `json:"mode"`
	StartDate   string     `json:"startDate"`
	EndDate     string     `json:"endDate"`
	CommittedAt time.Time  `json:"committedAt"`
	TraceID     string     `json:"traceId,omitempty"`
}

func NewOfferCommitted(o *Offer, mode CommitMode, traceID string) *OfferCommitted {
	return &OfferCommitted{
		OfferID:     o.ID,
		Name:        o.Name,
		Mode:        mode,
		StartDate:   o.StartDate.Format(DateLayout),
		EndDate:     o.EndDate.Format(DateLayout),
		CommittedAt: time.Now().UTC(),
		TraceID:     traceID,
	}
}
