package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"auth-api/internal/domain"
	"auth-api/internal/storage"
)

type ArchiveConfig struct {
	Bucket        string
	Prefix        string
	FlushInterval time.Duration
	BatchSize     int
	// MaxBuffered caps events held while uploads fail; the oldest are dropped first.
	MaxBuffered int
	Logger      logrus.FieldLogger
}

// ArchiveSink batches events and uploads them to object storage as NDJSON.
type ArchiveSink struct {
	cfg   ArchiveConfig
	store storage.Service
	now   func() time.Time

	mu      sync.Mutex
	pending []domain.AuditEvent
	dropped int

	kick   chan struct{}
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewArchiveSink(store storage.Service, cfg ArchiveConfig) *ArchiveSink {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.MaxBuffered < cfg.BatchSize {
		cfg.MaxBuffered = cfg.BatchSize * 10
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &ArchiveSink{
		cfg:   cfg,
		store: store,
		now:   time.Now,
		kick:  make(chan struct{}, 1),
	}
}

// Start launches the background flusher. It stops when ctx ends or Close is called.
func (s *ArchiveSink) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-s.kick:
			}
			if err := s.Flush(ctx); err != nil {
				s.cfg.Logger.Warnf("audit archive flush: %v", err)
			}
		}
	}()
	s.cfg.Logger.Infof("audit archive enabled, bucket %s prefix %q", s.cfg.Bucket, s.cfg.Prefix)
}

// Close stops the flusher and uploads whatever is still buffered.
func (s *ArchiveSink) Close(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return s.Flush(ctx)
}

func (s *ArchiveSink) Record(_ context.Context, event domain.AuditEvent) {
	s.mu.Lock()
	s.pending = append(s.pending, event)
	s.trimLocked()
	full := len(s.pending) >= s.cfg.BatchSize
	s.mu.Unlock()

	if full {
		select {
		case s.kick <- struct{}{}:
		default:
		}
	}
}

// Flush uploads buffered events as a single object. Events are put back on failure.
func (s *ArchiveSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range batch {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encode audit event: %w", err)
		}
	}

	key := s.objectKey()
	if err := s.store.PutObject(ctx, s.cfg.Bucket, key, &buf, "application/x-ndjson"); err != nil {
		s.requeue(batch)
		return err
	}
	s.cfg.Logger.Debugf("archived %d audit events to %s", len(batch), key)
	return nil
}

// Dropped reports how many events were discarded because the buffer overflowed.
func (s *ArchiveSink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *ArchiveSink) requeue(batch []domain.AuditEvent) {
	s.mu.Lock()
	s.pending = append(batch, s.pending...)
	s.trimLocked()
	s.mu.Unlock()
}

func (s *ArchiveSink) trimLocked() {
	if over := len(s.pending) - s.cfg.MaxBuffered; over > 0 {
		s.pending = append([]domain.AuditEvent(nil), s.pending[over:]...)
		s.dropped += over
	}
}

func (s *ArchiveSink) objectKey() string {
	now := s.now().UTC()
	name := fmt.Sprintf("%s-%s.ndjson", now.Format("20060102T150405.000000000Z"), uuid.NewString())
	return path.Join(s.cfg.Prefix, now.Format("2006/01/02"), name)
}
