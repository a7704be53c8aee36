package btrace_test

import (
	"bytes"
	"errors"
	"sync"
)

var errUnmapped = errors.New("unmapped")

// fakeMemory is one address space shared by every thread.
type fakeMemory struct {
	strings map[uint32]string
	words   map[uint32][]uint32
	reads   int
	mu      sync.Mutex
}

func (f *fakeMemory) CString(_ int32, addr uint32, limit int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads++

	s, ok := f.strings[addr]
	if !ok {
		return "", errUnmapped
	}

	if len(s) > limit {
		s = s[:limit]
	}

	return s, nil
}

func (f *fakeMemory) Words(_ int32, addr uint32, n int) ([]uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads++

	w, ok := f.words[addr]
	if !ok || len(w) < n {
		return nil, errUnmapped
	}

	out := make([]uint32, n)
	copy(out, w)

	return out, nil
}

// syncBuffer is a concurrency safe destination that counts syncs.
type syncBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	writes int
	syncs  int
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writes++

	return s.buf.Write(p)
}

func (s *syncBuffer) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.syncs++

	return nil
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buf.String()
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}
