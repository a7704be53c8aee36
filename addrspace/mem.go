package addrspace

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
)

var ErrShortRead = errors.New("short read from address space")

// chunk is the read size used while scanning for a string terminator.
const chunk = 64

// ProcMem provides a thread safe way to read the virtual address space of traced threads.
type ProcMem struct {
	logger      *zap.SugaredLogger
	files       map[int32]*os.File
	mu          sync.Mutex
	pathbuilder func(int32) string
}

// NewProcMem is configured to read /proc/tid/mem.
func NewProcMem(logger *zap.SugaredLogger) *ProcMem {
	return &ProcMem{
		logger:      logger,
		files:       make(map[int32]*os.File),
		pathbuilder: func(tid int32) string { return fmt.Sprintf("/proc/%d/mem", tid) },
	}
}

// NewTestProcMem is configured with a Nop logger and a pathbuilder. pathbuilder specifies
// which file stands in for a thread's address space; file offsets are addresses.
func NewTestProcMem(pathbuilder func(int32) string) *ProcMem {
	return &ProcMem{
		logger:      zap.NewNop().Sugar(),
		files:       make(map[int32]*os.File),
		pathbuilder: pathbuilder,
	}
}

func (p *ProcMem) file(tid int32) (*os.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f, ok := p.files[tid]; ok {
		return f, nil
	}

	fp := p.pathbuilder(tid)

	f, err := os.Open(fp)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fp, err)
	}

	p.logger.Debugw("opened address space", "tid", tid, "path", fp)

	p.files[tid] = f

	return f, nil
}

// ReadAt fills buf with the bytes at addr in tid's address space.
func (p *ProcMem) ReadAt(tid int32, addr uint32, buf []byte) error {
	f, err := p.file(tid)
	if err != nil {
		return err
	}

	n, err := f.ReadAt(buf, int64(addr))
	if n == len(buf) {
		return nil
	}

	if err == nil || errors.Is(err, io.EOF) {
		err = ErrShortRead
	}

	return fmt.Errorf("failed to read %d bytes at 0x%x of %d: %w", len(buf), addr, tid, err)
}

// CString reads a NUL-terminated string at addr, returning at most limit bytes.
//
// The string ends early, without error, if the mapping ends before a terminator is found.
func (p *ProcMem) CString(tid int32, addr uint32, limit int) (string, error) {
	f, err := p.file(tid)
	if err != nil {
		return "", err
	}

	var (
		out []byte
		buf [chunk]byte
	)

	for len(out) < limit {
		n, err := f.ReadAt(buf[:min(chunk, limit-len(out))], int64(addr)+int64(len(out)))

		if i := bytes.IndexByte(buf[:n], 0); i >= 0 {
			return string(append(out, buf[:i]...)), nil
		}

		out = append(out, buf[:n]...)

		if err != nil {
			if len(out) > 0 {
				return string(out), nil
			}

			return "", fmt.Errorf("failed to read string at 0x%x of %d: %w", addr, tid, err)
		}
	}

	return string(out), nil
}

// Words reads n little-endian 32-bit words starting at addr.
func (p *ProcMem) Words(tid int32, addr uint32, n int) ([]uint32, error) {
	buf := make([]byte, 4*n)

	if err := p.ReadAt(tid, addr, buf); err != nil {
		return nil, err
	}

	words := make([]uint32, n)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[4*i:])
	}

	return words, nil
}

// Forget closes the cached handle for tid. It is called when the thread exits.
func (p *ProcMem) Forget(tid int32) {
	p.mu.Lock()
	f, ok := p.files[tid]
	delete(p.files, tid)
	p.mu.Unlock()

	if !ok {
		return
	}

	if err := f.Close(); err != nil {
		p.logger.Errorw("failed to close address space", "tid", tid, "err", err)
	}
}

func (p *ProcMem) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for tid, f := range p.files {
		if err := f.Close(); err != nil {
			p.logger.Errorw("failed to close address space", "tid", tid, "err", err)
		}
	}

	p.files = make(map[int32]*os.File)

	return nil
}
