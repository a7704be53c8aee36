package btrace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
)

var ErrRecordWriteFailed = errors.New("failed to write trace record")

// eof terminates a trace whose program exited normally.
const eof = "#eof\n"

type syncer interface {
	Sync() error
}

// Sink is the append-only trace destination.
//
// Every Commit is one write followed by a sync, so a record is never split and a trace cut
// short by a crash is still a valid prefix.
type Sink struct {
	logger *zap.SugaredLogger
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// NewSink writes records to w. If w has a Sync method it is called after every record.
func NewSink(logger *zap.SugaredLogger, w io.Writer) *Sink {
	s := &Sink{logger: logger, w: w}

	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}

	return s
}

// OpenSink truncates and writes to path.
//
// An empty path discards the trace. A path that cannot be opened is logged and also
// discards the trace: tracing never stops the program from running.
func OpenSink(logger *zap.SugaredLogger, path string) *Sink {
	if path == "" {
		logger.Infow("no trace destination given, discarding records")

		return NewSink(logger, io.Discard)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		logger.Warnw("failed to open trace destination, discarding records", "path", path, "err", err)

		return NewSink(logger, io.Discard)
	}

	logger.Infow("writing trace", "path", path)

	return NewSink(logger, f)
}

// Commit writes one complete record and flushes it to storage.
func (s *Sink) Commit(record string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commit(record)
}

func (s *Sink) commit(record string) error {
	if s.w == nil {
		return fmt.Errorf("%w: sink closed", ErrRecordWriteFailed)
	}

	n, err := io.WriteString(s.w, record)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRecordWriteFailed, err)
	}

	if n != len(record) {
		return fmt.Errorf("%w: bytes written (%d) != bytes to write (%d)", ErrRecordWriteFailed, n, len(record))
	}

	if sy, ok := s.w.(syncer); ok {
		// the record is already written; terminals and pipes refuse to sync
		if err := sy.Sync(); err != nil {
			s.logger.Debugw("failed to sync trace destination", "err", err)
		}
	}

	return nil
}

// Finish appends the end-of-trace marker.
func (s *Sink) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commit(eof)
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.w = nil

	if s.closer == nil {
		return nil
	}

	if err := s.closer.Close(); err != nil {
		return fmt.Errorf("failed to close trace destination: %w", err)
	}

	return nil
}
