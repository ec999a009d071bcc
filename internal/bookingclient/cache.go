package bookingclient

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Leganyst/homeservice-platform/internal/api"
)

// Cache — локальная копия проекций заказов. Сервер — источник истины:
// его ответ перезаписывает запись целиком.
//
// Каждый запрос (мутация или опрос) получает номер выдачи. Опрос, выданный
// раньше последней мутации заказа или во время незавершённой мутации,
// для этого заказа игнорируется.
type Cache struct {
	mu      sync.Mutex
	seq     uint64
	entries map[uuid.UUID]*entry
}

type entry struct {
	view      api.Booking
	confirmed *api.Booking // последнее подтверждённое сервером состояние
	pending   uint64       // номер незавершённой мутации, 0 — нет
	stamp     uint64       // номер выдачи, от которого получено view
}

func NewCache() *Cache {
	return &Cache{entries: make(map[uuid.UUID]*entry)}
}

// Issue выдаёт следующий номер.
func (c *Cache) Issue() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Begin отмечает мутацию заказа и применяет оптимистичное изменение (если есть).
func (c *Cache) Begin(id uuid.UUID, optimistic func(*api.Booking)) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	seq := c.seq

	e, ok := c.entries[id]
	if !ok {
		return seq
	}
	e.pending = seq
	e.stamp = seq
	if optimistic != nil {
		optimistic(&e.view)
	}
	return seq
}

// Ack записывает ответ сервера на мутацию seq.
func (c *Cache) Ack(seq uint64, b api.Booking) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[b.ID]
	if !ok {
		e = &entry{}
		c.entries[b.ID] = e
	}
	if e.pending != 0 && e.pending != seq {
		return
	}
	confirmed := b
	e.view, e.confirmed = b, &confirmed
	e.pending = 0
	if seq > e.stamp {
		e.stamp = seq
	}
}

// Rollback возвращает подтверждённое состояние после неуспешной мутации seq.
func (c *Cache) Rollback(id uuid.UUID, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok || e.pending != seq {
		return
	}
	e.pending = 0
	if e.confirmed == nil {
		delete(c.entries, id)
		return
	}
	e.view = *e.confirmed
}

// Refresh применяет результат опроса, выданного под номером seq.
func (c *Cache) Refresh(seq uint64, items []api.Booking) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range items {
		e, ok := c.entries[b.ID]
		if !ok {
			confirmed := b
			c.entries[b.ID] = &entry{view: b, confirmed: &confirmed, stamp: seq}
			continue
		}
		if e.pending != 0 || e.stamp > seq {
			continue
		}
		confirmed := b
		e.view, e.confirmed, e.stamp = b, &confirmed, seq
	}
}

func (c *Cache) Get(id uuid.UUID) (api.Booking, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return api.Booking{}, false
	}
	return e.view, true
}

// Pending — есть ли по заказу мутация без ответа.
func (c *Cache) Pending(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return ok && e.pending != 0
}

// All — все заказы, новые первыми.
func (c *Cache) All() []api.Booking {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]api.Booking, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.view)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out
}
