package heartbeat

import (
	"sync"

	"github.com/google/uuid"
	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
)

// Buffer — in-memory буфер heartbeat'ов, ключ — tenant.
//
// Семантика last-write-wins: для каждого tenant хранится только самый
// свежий payload. Вместо per-key локов — snapshot-and-clear: flush
// атомарно забирает весь буфер, а конкурентные записи во время flush
// попадают уже в новый буфер и при неудачном flush не затираются
// re-merge'ем устаревшего снимка.
type Buffer struct {
	mu      sync.Mutex
	entries map[uuid.UUID]domain.Heartbeat
}

// NewBuffer создаёт пустой буфер.
func NewBuffer() *Buffer {
	return &Buffer{
		entries: make(map[uuid.UUID]domain.Heartbeat),
	}
}

// Put записывает heartbeat tenant'а, затирая предыдущий.
func (b *Buffer) Put(hb domain.Heartbeat) {
	b.mu.Lock()
	b.entries[hb.WorkspaceID] = hb
	b.mu.Unlock()
}

// Snapshot атомарно забирает содержимое буфера и очищает его.
func (b *Buffer) Snapshot() []domain.Heartbeat {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == 0 {
		return nil
	}

	snapshot := make([]domain.Heartbeat, 0, len(b.entries))
	for _, hb := range b.entries {
		snapshot = append(snapshot, hb)
	}
	b.entries = make(map[uuid.UUID]domain.Heartbeat)
	return snapshot
}

// ReMerge возвращает снимок в буфер после неудачного flush.
// Записи, пришедшие во время flush, не затираются: конкурентная
// запись всегда новее содержимого снимка.
func (b *Buffer) ReMerge(snapshot []domain.Heartbeat) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, hb := range snapshot {
		if _, exists := b.entries[hb.WorkspaceID]; exists {
			continue
		}
		b.entries[hb.WorkspaceID] = hb
	}
}

// Len возвращает количество tenants в буфере.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
