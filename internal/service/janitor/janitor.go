package janitor

import (
	"context"
	"time"

	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
)

const (
	defaultCountWorkers    = 4                // Number of workers deleting media
	defaultProduceInterval = 30 * time.Second // Interval for listing media trash
	defaultBatchSize       = 100              // Media listed per tick
	defaultMaxAttempts     = 5                // Give up on media after that many failed deletions
)

type mediaTrash interface {
	List(ctx context.Context, limit int, maxAttempts int) ([]models.TrashedMedia, error)
	Remove(ctx context.Context, publicID string) error
	MarkFailed(ctx context.Context, publicID string, reason string) error
}

type mediaDeleter interface {
	Delete(ctx context.Context, publicID string) error
}

type Config struct {
	CountWorkers int
	Interval     time.Duration
	BatchSize    int
	MaxAttempts  int
}

// Janitor removes replaced media from the media host
// Media to remove is taken from media trash filled by user service
type Janitor struct {
	consumer *Consumer
	producer *Producer
	logger   logger.Logger
}

func New(cfg Config, trash mediaTrash, media mediaDeleter, logger logger.Logger) *Janitor {
	setDefault := func(field *int, def int) {
		if *field <= 0 {
			*field = def
		}
	}
	setDefault(&cfg.CountWorkers, defaultCountWorkers)
	setDefault(&cfg.BatchSize, defaultBatchSize)
	setDefault(&cfg.MaxAttempts, defaultMaxAttempts)
	if cfg.Interval <= 0 {
		cfg.Interval = defaultProduceInterval
	}

	pending := newInFlight()

	return &Janitor{
		consumer: &Consumer{
			countWorkers: cfg.CountWorkers,
			trash:        trash,
			media:        media,
			pending:      pending,
			logger:       logger,
		},
		producer: &Producer{
			interval:    cfg.Interval,
			batchSize:   cfg.BatchSize,
			maxAttempts: cfg.MaxAttempts,
			trash:       trash,
			pending:     pending,
			logger:      logger,
		},
		logger: logger,
	}
}

// Run until ctx is done
// Returned channel is closed when all workers stopped
func (j *Janitor) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	mediaChan := make(chan models.TrashedMedia)

	producerStopped := j.producer.Produce(ctx, mediaChan)
	consumerStopped := j.consumer.Consume(ctx, mediaChan)

	go func() {
		defer close(idleStopped)
		defer close(mediaChan)
		<-producerStopped
		<-consumerStopped
		j.logger.Debug("Janitor stopped")
	}()

	return idleStopped
}
