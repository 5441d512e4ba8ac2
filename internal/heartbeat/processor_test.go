package heartbeat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
	"github.com/nishchith-m10/fleet-control-plane/internal/mq"
)

type fakeHealthStore struct {
	upserts [][]domain.Heartbeat
	err     error
}

func (s *fakeHealthStore) UpsertHeartbeats(_ context.Context, beats []domain.Heartbeat) error {
	if s.err != nil {
		return s.err
	}
	s.upserts = append(s.upserts, beats)
	return nil
}

func newTestProcessor(store HealthStore) *Processor {
	return NewProcessor(nil, store, Config{}, slog.New(slog.DiscardHandler))
}

func TestHandleDelivery_MalformedDiscarded(t *testing.T) {
	p := newTestProcessor(&fakeHealthStore{})

	err := p.handleDelivery(context.Background(), &mq.Delivery{Body: []byte("not json")})
	if err != nil {
		t.Fatalf("битый отчёт должен отбрасываться без ошибки, получено %v", err)
	}
	if p.Buffered() != 0 {
		t.Fatalf("буфер должен остаться пустым, в нём %d записей", p.Buffered())
	}
}

func TestHandleDelivery_MissingWorkspaceDiscarded(t *testing.T) {
	p := newTestProcessor(&fakeHealthStore{})

	body, _ := json.Marshal(domain.Heartbeat{CPUPercent: 10})
	if err := p.handleDelivery(context.Background(), &mq.Delivery{Body: body}); err != nil {
		t.Fatalf("handleDelivery: %v", err)
	}
	if p.Buffered() != 0 {
		t.Fatalf("отчёт без workspace_id не должен попадать в буфер")
	}
}

func TestHandleDelivery_ValidBuffered(t *testing.T) {
	p := newTestProcessor(&fakeHealthStore{})
	ws := uuid.New()

	body, _ := json.Marshal(domain.Heartbeat{WorkspaceID: ws, CPUPercent: 42})
	if err := p.handleDelivery(context.Background(), &mq.Delivery{Body: body}); err != nil {
		t.Fatalf("handleDelivery: %v", err)
	}
	if p.Buffered() != 1 {
		t.Fatalf("ожидалась одна запись в буфере, есть %d", p.Buffered())
	}

	beats := p.buffer.Snapshot()
	if beats[0].Timestamp.IsZero() {
		t.Error("нулевой timestamp должен заполняться временем приёма")
	}
}

func TestFlush_WritesAndClears(t *testing.T) {
	store := &fakeHealthStore{}
	p := newTestProcessor(store)

	p.buffer.Put(domain.Heartbeat{WorkspaceID: uuid.New(), Timestamp: time.Now()})
	p.buffer.Put(domain.Heartbeat{WorkspaceID: uuid.New(), Timestamp: time.Now()})

	p.flush(context.Background())

	if len(store.upserts) != 1 || len(store.upserts[0]) != 2 {
		t.Fatalf("ожидалась одна запись двух отчётов, получено %v", store.upserts)
	}
	if p.Buffered() != 0 {
		t.Errorf("после успешного сброса буфер должен быть пуст")
	}
}

func TestFlush_FailureRebuffers(t *testing.T) {
	store := &fakeHealthStore{err: errors.New("db down")}
	p := newTestProcessor(store)

	p.buffer.Put(domain.Heartbeat{WorkspaceID: uuid.New(), Timestamp: time.Now()})
	p.flush(context.Background())

	if p.Buffered() != 1 {
		t.Fatalf("при ошибке записи отчёты должны вернуться в буфер, в нём %d", p.Buffered())
	}

	stats := p.HealthStats()
	if stats.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, ожидался 1", stats.ErrorCount)
	}
}
