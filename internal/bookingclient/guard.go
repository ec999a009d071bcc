package bookingclient

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrInFlight — по этому заказу уже идёт изменяющий запрос.
var ErrInFlight = errors.New("request for this booking is already in flight")

// Guard не даёт отправить второй изменяющий запрос по тому же заказу,
// пока первый не вернулся (двойной клик "Завершить" и т.п.).
type Guard struct {
	mu   sync.Mutex
	busy map[uuid.UUID]struct{}
}

func NewGuard() *Guard {
	return &Guard{busy: make(map[uuid.UUID]struct{})}
}

// Acquire занимает id; release нужно вызвать ровно один раз.
func (g *Guard) Acquire(id uuid.UUID) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.busy[id]; ok {
		return nil, ErrInFlight
	}
	g.busy[id] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.busy, id)
			g.mu.Unlock()
		})
	}, nil
}

func (g *Guard) InFlight(id uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.busy[id]
	return ok
}
