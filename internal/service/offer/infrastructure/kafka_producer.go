package infrastructure

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"

	"merchdash/internal/pkg/logger"
	"merchdash/internal/pkg/mq"
	"merchdash/internal/service/offer/domain"
)

// KafkaOfferPublisher 把 OfferCommitted 事件写入 Kafka，以优惠 ID 作为消息 Key，
// 保证同一个优惠的事件有序。
type KafkaOfferPublisher struct {
	writer mq.MessageWriter
}

func NewKafkaOfferPublisher(writer mq.MessageWriter) *KafkaOfferPublisher {
	return &KafkaOfferPublisher{writer: writer}
}

func (p *KafkaOfferPublisher) PublishOfferCommitted(ctx context.Context, event *domain.OfferCommitted) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal offer committed event")
	}

	key := []byte(strconv.FormatInt(event.OfferID, 10))
	if err := mq.ProduceMessage(ctx, p.writer, key, eventBytes); err != nil {
		return errors.Wrap(err, "produce offer committed event")
	}
	logger.Ctx(ctx).Debug().Int64("offer_id", event.OfferID).Str("mode", string(event.Mode)).Msg("Offer event published")
	return nil
}

// NoopOfferPublisher 在未配置 Kafka 时使用。
type NoopOfferPublisher struct{}

func (NoopOfferPublisher) PublishOfferCommitted(context.Context, *domain.OfferCommitted) error {
	return nil
}
