package janitor

import (
	"context"
	"time"

	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
)

type Producer struct {
	interval    time.Duration
	batchSize   int
	maxAttempts int

	trash   mediaTrash
	pending *inFlight
	logger  logger.Logger
}

func (p *Producer) Produce(ctx context.Context, out chan<- models.TrashedMedia) <-chan struct{} {
	idleStopped := make(chan struct{})
	p.logger.Debug("Starting producer", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("Producer stopped by context")
				return

			case <-ticker.C:
				items, err := p.trash.List(ctx, p.batchSize, p.maxAttempts)
				if err != nil {
					p.logger.Error("Failed to list media trash", "error", err)
					continue
				}

				for _, item := range items {
					// Still being deleted by a worker
					if !p.pending.acquire(item.PublicID) {
						continue
					}

					select {
					case <-ctx.Done():
						p.logger.Debug("Producer stopped by context while sending media")
						return
					case out <- item:
					}
				}
			}
		}
	}()

	return idleStopped
}
