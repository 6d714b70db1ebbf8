package evidence

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfab/market-gateway/internal/config"
	"github.com/quantfab/market-gateway/internal/provenance"
)

const (
	// queueSize bounds the collector backlog. A full queue drops bundles
	// rather than slowing tool calls.
	queueSize = 256

	// persistTimeout caps one index write plus the optional S3 put.
	persistTimeout = 10 * time.Second
)

// Collector receives sealed bundles and persists them off the request path.
// A nil Collector is a disabled one; every method no-ops.
type Collector struct {
	index      *Index
	sink       *S3Sink
	slaSeconds int

	queue    chan *Bundle
	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New builds the collector from config. Returns nil when the sidecar is
// disabled.
func New(ctx context.Context, cfg config.EvidenceConfig) (*Collector, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	idx, err := OpenIndex(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	var sink *S3Sink
	if cfg.S3.Enabled {
		sink, err = NewS3Sink(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Prefix)
		if err != nil {
			idx.Close()
			return nil, err
		}
	}
	return &Collector{
		index:      idx,
		sink:       sink,
		slaSeconds: cfg.FreshnessSLA,
		queue:      make(chan *Bundle, queueSize),
		stopChan:   make(chan struct{}),
	}, nil
}

// Start launches the persistence worker.
func (c *Collector) Start() {
	if c == nil {
		return
	}
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run()
	log.Info().Msg("Evidence collector started")
}

// Stop drains the queue, stops the worker and closes the index.
func (c *Collector) Stop() {
	if c == nil {
		return
	}
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopChan)
	c.mu.Unlock()
	c.wg.Wait()
	if err := c.index.Close(); err != nil {
		log.Warn().Err(err).Msg("evidence index close failed")
	}
	log.Info().Msg("Evidence collector stopped")
}

// Record seals a bundle for one built envelope and queues it. Never blocks;
// a full queue drops the bundle with a warning.
func (c *Collector) Record(tool, asset string, env *provenance.Envelope, items []Item) {
	if c == nil {
		return
	}
	b := NewBundle(tool, asset, env, items, c.slaSeconds)
	select {
	case c.queue <- b:
	default:
		log.Warn().
			Str("bundle_id", b.BundleID).
			Str("tool", tool).
			Msg("evidence queue full, bundle dropped")
	}
}

func (c *Collector) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopChan:
			c.drain()
			return
		case b := <-c.queue:
			c.persist(b)
		}
	}
}

// drain flushes whatever is still queued at shutdown.
func (c *Collector) drain() {
	for {
		select {
		case b := <-c.queue:
			c.persist(b)
		default:
			return
		}
	}
}

func (c *Collector) persist(b *Bundle) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := c.index.Insert(ctx, b); err != nil {
		log.Warn().Err(err).Str("bundle_id", b.BundleID).Msg("evidence index write failed")
	}
	if c.sink != nil {
		if err := c.sink.Put(ctx, b); err != nil {
			log.Warn().Err(err).Str("bundle_id", b.BundleID).Msg("evidence s3 put failed")
		}
	}
}
