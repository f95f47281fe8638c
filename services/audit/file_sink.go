package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/upb/rag-gatekeeper/models"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig configures the JSON Lines audit file
type FileConfig struct {
	Path      string
	MaxSizeMB int
	Compress  bool
}

// FileSink appends one JSON object per line. Rotation renames the active
// file and keeps every backup, so written records are never rewritten.
type FileSink struct {
	mu  sync.Mutex
	out io.WriteCloser
}

// NewFileSink opens (or creates) the audit file
func NewFileSink(cfg FileConfig) (*FileSink, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("audit file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	return newFileSink(&lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: 0,
		MaxAge:     0,
		Compress:   cfg.Compress,
	}), nil
}

func newFileSink(out io.WriteCloser) *FileSink {
	return &FileSink{out: out}
}

// Name identifies the sink in logs and metrics
func (s *FileSink) Name() string {
	return "file"
}

// Write appends the event as a single line
func (s *FileSink) Write(_ context.Context, event *models.AuditEvent) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding audit event: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.out.Write(line)
	if err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}
	if n != len(line) {
		return fmt.Errorf("writing audit event: %w", io.ErrShortWrite)
	}
	return nil
}

// Close closes the underlying file
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Close()
}
