package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merchdash/internal/service/offer/domain"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaOfferPublisher_PublishOfferCommitted(t *testing.T) {
	writer := &fakeWriter{}
	publisher := NewKafkaOfferPublisher(writer)

	offer := &domain.Offer{
		ID:        12,
		Name:      "my offer",
		StartDate: time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	event := domain.NewOfferCommitted(offer, domain.CommitCreated, "")
	require.NoError(t, publisher.PublishOfferCommitted(context.Background(), event))

	require.Len(t, writer.msgs, 1)
	msg := writer.msgs[0]
	assert.Equal(t, "12", string(msg.Key))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "my offer", decoded["name"])
	assert.Equal(t, "created", decoded["mode"])
	assert.Equal(t, "2012-01-01", decoded["startDate"])
	assert.Equal(t, "2013-01-01", decoded["endDate"])
}

func TestKafkaOfferPublisher_WriteFailure(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker down")}
	publisher := NewKafkaOfferPublisher(writer)

	event := domain.NewOfferCommitted(&domain.Offer{ID: 1, Name: "x"}, domain.CommitUpdated, "")
	err := publisher.PublishOfferCommitted(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}
