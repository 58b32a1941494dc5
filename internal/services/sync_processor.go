package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"consolida/internal/log"
	"consolida/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending containers (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of containers to process per poll cycle (default: 10)
	BatchSize int
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    10,
	}
}

// PendingSource lists containers that still need mirroring.
type PendingSource interface {
	GetPendingSync(ctx context.Context, limit int) ([]storage.PendingSync, error)
}

// Syncer mirrors one container.
type Syncer interface {
	Sync(ctx context.Context, kind, name string) error
}

// SyncProcessor polls the local store for unsynced containers. It covers
// messages lost while the broker was down.
type SyncProcessor struct {
	source PendingSource
	syncer Syncer
	config SyncProcessorConfig
	logger *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(source PendingSource, syncer Syncer, config SyncProcessorConfig, logger *log.Logger) *SyncProcessor {
	if logger == nil {
		logger = log.Discard()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSyncProcessorConfig().BatchSize
	}
	return &SyncProcessor{
		source: source,
		syncer: syncer,
		config: config,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on startup
	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch mirrors up to BatchSize pending containers and returns how
// many succeeded.
func (p *SyncProcessor) ProcessBatch(ctx context.Context) int {
	items, err := p.source.GetPendingSync(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to fetch pending containers", log.FieldError, err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	p.logger.DebugContext(ctx, "Processing sync batch", log.FieldCount, len(items))

	done := 0
	for _, item := range items {
		if ctx.Err() != nil {
			return done
		}
		if p.stopCh != nil {
			select {
			case <-p.stopCh:
				return done
			default:
			}
		}
		if err := p.syncer.Sync(ctx, item.Kind, item.Name); err != nil {
			p.logger.WarnContext(ctx, "Sync processing failed",
				"name", item.Name,
				"kind", item.Kind,
				"version", item.Version,
				log.FieldError, err)
			continue
		}
		done++
	}
	return done
}
