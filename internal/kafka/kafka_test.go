package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ms-ticketcodes/internal/logger"
	"ms-ticketcodes/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *memoryWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memoryWriter) Close() error { return nil }

type memoryReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func (r *memoryReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *memoryReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *memoryReader) Close() error { return nil }

func (r *memoryReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func TestPublishPaymentCompleted(t *testing.T) {
	w := &memoryWriter{}
	p := &Producer{
		Writer: w,
		Topics: Topics{PaymentCompleted: "ticketing.payment.completed"},
		Logger: logger.NewDiscard(),
	}

	err := p.PublishPaymentCompleted(context.Background(), models.PaymentCompletedEvent{
		OrderID: "o1",
		Tickets: []models.AssignedTicket{{TicketNumber: "T0001", TicketCode: "CODE-0001"}},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "ticketing.payment.completed", w.msgs[0].Topic)
	assert.Equal(t, "o1", string(w.msgs[0].Key))

	var evt models.PaymentCompletedEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &evt))
	assert.Equal(t, "CODE-0001", evt.Tickets[0].TicketCode)
}

func TestPublishErrorIsReturned(t *testing.T) {
	p := &Producer{Writer: &memoryWriter{err: errors.New("broker down")}, Logger: logger.NewDiscard()}
	err := p.PublishCodesProvisioned(context.Background(), models.CodesProvisionedEvent{Inserted: 3})
	assert.ErrorContains(t, err, "broker down")
}

func TestConsumerHandlesAndCommits(t *testing.T) {
	r := &memoryReader{msgs: make(chan kafka.Message, 3)}
	c := &Consumer{Reader: r, Logger: logger.NewDiscard()}

	good, _ := json.Marshal(models.CodesProvisionedEvent{Inserted: 5, Source: "sheet"})
	r.msgs <- kafka.Message{Offset: 1, Value: good}
	r.msgs <- kafka.Message{Offset: 2, Value: []byte("{not json")}
	r.msgs <- kafka.Message{Offset: 3, Value: good}

	var mu sync.Mutex
	var seen []int
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.RunCodesProvisioned(ctx, func(ctx context.Context, evt models.CodesProvisionedEvent) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, evt.Inserted)
			return errors.New("sweep failed")
		})
	}()

	require.Eventually(t, func() bool { return r.committedCount() == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{5, 5}, seen)
}
