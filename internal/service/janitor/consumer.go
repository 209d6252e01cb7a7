package janitor

import (
	"context"
	"sync"

	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
)

type Consumer struct {
	countWorkers int

	trash   mediaTrash
	media   mediaDeleter
	pending *inFlight
	logger  logger.Logger
}

func (c *Consumer) Consume(ctx context.Context, in <-chan models.TrashedMedia) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for range c.countWorkers {
		wg.Add(1)
		go func() {
			c.worker(ctx, in)
			wg.Done()
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		c.logger.Debug("Consumer stopped")
	}()

	return idleStopped
}

func (c *Consumer) worker(ctx context.Context, in <-chan models.TrashedMedia) {
	for {
		select {
		case <-ctx.Done():
			return

		case item, ok := <-in:
			if !ok {
				c.logger.Debug("Consumer worker stopped, input channel closed")
				return
			}
			c.remove(ctx, item)
		}
	}
}

func (c *Consumer) remove(ctx context.Context, item models.TrashedMedia) {
	defer c.pending.release(item.PublicID)

	err := c.media.Delete(ctx, item.PublicID)
	if err != nil {
		c.logger.Warn("Failed to delete media", "error", err, "public_id", item.PublicID, "attempts", item.Attempts+1)

		err = c.trash.MarkFailed(ctx, item.PublicID, err.Error())
		if err != nil {
			c.logger.Error("Failed to mark media deletion failed", "error", err, "public_id", item.PublicID)
		}
		return
	}

	err = c.trash.Remove(ctx, item.PublicID)
	if err != nil {
		c.logger.Error("Failed to remove media from trash", "error", err, "public_id", item.PublicID)
		return
	}

	c.logger.Debug("Media deleted", "public_id", item.PublicID)
}
