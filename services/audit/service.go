package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/upb/rag-gatekeeper/internal/observability"
	"github.com/upb/rag-gatekeeper/models"
	"go.uber.org/zap"
)

// MirrorService fans audit events out to mirror sinks in the background
type MirrorService struct {
	sinks        []Sink
	metrics      observability.Metrics
	logger       *zap.Logger
	eventChan    chan *models.AuditEvent
	workerCount  int
	bufferSize   int
	writeTimeout time.Duration
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	started      bool
	stopped      bool
	mu           sync.Mutex
}

// Config holds configuration for the MirrorService
type Config struct {
	BufferSize   int           // Size of the event buffer channel
	WorkerCount  int           // Number of concurrent workers
	WriteTimeout time.Duration // Per-sink write deadline
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   10000,
		WorkerCount:  2,
		WriteTimeout: 5 * time.Second,
	}
}

// NewMirrorService creates a new MirrorService instance
func NewMirrorService(sinks []Sink, metrics observability.Metrics, logger *zap.Logger, config Config) *MirrorService {
	ctx, cancel := context.WithCancel(context.Background())

	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}

	return &MirrorService{
		sinks:        sinks,
		metrics:      metrics,
		logger:       logger,
		eventChan:    make(chan *models.AuditEvent, config.BufferSize),
		workerCount:  config.WorkerCount,
		bufferSize:   config.BufferSize,
		writeTimeout: config.WriteTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start starts the background workers
func (s *MirrorService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit mirror service already started")
	}

	// Start worker goroutines
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit mirror service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize),
		zap.Int("sinks", len(s.sinks)))

	return nil
}

// Stop drains pending events, then closes every sink.
// Waits at most timeout for the queue to drain.
func (s *MirrorService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("audit mirror service not running")
	}
	s.stopped = true
	// Close the event channel (no more events will be accepted)
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit mirror service", zap.Int("pending_events", len(s.eventChan)))

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		s.logger.Info("audit mirror service stopped gracefully")
	case <-time.After(timeout):
		err = fmt.Errorf("audit mirror service stop timeout after %v", timeout)
	}
	s.cancel()

	for _, sink := range s.sinks {
		if cerr := sink.Close(); cerr != nil {
			s.logger.Warn("failed to close audit sink", zap.String("sink", sink.Name()), zap.Error(cerr))
		}
	}
	return err
}

// Enqueue hands an event to the workers without blocking.
// The event is dropped when the buffer is full.
func (s *MirrorService) Enqueue(event *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopped {
		return fmt.Errorf("audit mirror service not running")
	}

	select {
	case s.eventChan <- event:
		return nil
	default:
		s.logger.Warn("audit event channel full, dropping mirror copy",
			zap.String("request_id", event.RequestID))
		return fmt.Errorf("audit event buffer full")
	}
}

// worker processes events from the channel
func (s *MirrorService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		s.processEvent(id, event)
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// processEvent writes one event to every sink
func (s *MirrorService) processEvent(workerID int, event *models.AuditEvent) {
	for _, sink := range s.sinks {
		ctx, cancel := context.WithTimeout(s.ctx, s.writeTimeout)
		err := sink.Write(ctx, event)
		cancel()

		if err != nil {
			s.metrics.RecordAuditFailure(context.Background(), sink.Name())
			s.logger.Error("failed to mirror audit event",
				zap.Int("worker_id", workerID),
				zap.String("sink", sink.Name()),
				zap.String("request_id", event.RequestID),
				zap.Error(err))
		}
	}
}

// GetStats returns statistics about the mirror service
func (s *MirrorService) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Sinks:         len(s.sinks),
		Started:       s.started && !s.stopped,
	}
}

// Stats represents mirror service statistics
type Stats struct {
	BufferSize    int  `json:"buffer_size"`
	PendingEvents int  `json:"pending_events"`
	WorkerCount   int  `json:"worker_count"`
	Sinks         int  `json:"sinks"`
	Started       bool `json:"started"`
}
