package bookingclient

import (
	"context"
	"log"
	"time"
)

const DefaultPollInterval = 10 * time.Second

// Poller — периодическая задача обновления. Живёт, пока жив ctx.
type Poller struct {
	Interval time.Duration
	Refresh  func(ctx context.Context) error
	// OnError вызывается на каждую ошибку обновления; по умолчанию log.Printf.
	OnError func(error)
}

// Run обновляет сразу и затем каждые Interval. Возвращает ctx.Err() после отмены.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
		if p.OnError != nil {
			p.OnError(err)
			return
		}
		log.Printf("poll: %v", err)
	}
}
