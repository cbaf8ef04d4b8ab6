package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/honeynil/KudosClassroom/internal/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducer_Publish(t *testing.T) {
	writer := &fakeWriter{}
	p := &Producer{writer: writer, topic: "purchases"}
	event := models.PurchaseEvent{
		ID:            "evt-1",
		Type:          models.EventTransactionRequested,
		TransactionID: 11,
		StudentID:     3,
		ClassID:       2,
		PrizeID:       7,
		Amount:        30,
		CreatedAt:     time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	require.NoError(t, p.Publish(context.Background(), event))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "3", string(msg.Key))
	assert.Equal(t, "transaction_requested", string(msg.Headers[0].Value))

	var decoded models.PurchaseEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event, decoded)

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

func TestProducer_PublishError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: fmt.Errorf("broker down")}, topic: "purchases"}
	err := p.Publish(context.Background(), models.PurchaseEvent{Type: models.EventBalanceAdjusted, StudentID: 1})
	assert.EqualError(t, err, "broker down")
}
