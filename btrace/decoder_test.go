package btrace_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tcassar-diss/btrace/btrace"
	"github.com/tcassar-diss/btrace/syscalls"
	"go.uber.org/zap"
)

func newDecoder(mem btrace.Memory) (*btrace.Decoder, *syncBuffer) {
	out := &syncBuffer{}
	logger := zap.NewNop().Sugar()

	return btrace.NewDecoder(logger, syscalls.NewTable(), mem, btrace.NewSink(logger, out)), out
}

func testMemory() *fakeMemory {
	return &fakeMemory{
		strings: map[uint32]string{
			0x1000: "/tmp/x",
			0x2000: "hello world",
			0x3000: "/etc/passwd",
		},
		words: map[uint32][]uint32{
			0x4000: {0, 8192, 3, 0x22, 0xffffffff},
		},
	}
}

func TestDecodeScenarios(t *testing.T) {
	cases := []struct {
		name     string
		entry    btrace.Regs
		ret      uint32
		expected string
	}{
		{
			name:     "open",
			entry:    btrace.Regs{Eax: syscalls.SysOpen, Ebx: 0x1000, Ecx: 0, Edx: 0o644},
			ret:      3,
			expected: "open(\"/tmp/x\", O_RDONLY, 0644) = 3\n",
		},
		{
			name:     "read elides long buffers",
			entry:    btrace.Regs{Eax: syscalls.SysRead, Ebx: 3, Ecx: 0x2000, Edx: 11},
			ret:      11,
			expected: "read(3, \"hello wo\"..., 11) = 11\n",
		},
		{
			name:     "access success",
			entry:    btrace.Regs{Eax: syscalls.SysAccess, Ebx: 0x3000, Ecx: 0},
			ret:      0,
			expected: "access(\"/etc/passwd\", 0) = 0 SUCCESS ACCESS\n",
		},
		{
			name:     "access failure",
			entry:    btrace.Regs{Eax: syscalls.SysAccess, Ebx: 0x3000, Ecx: 0},
			ret:      0xfffffffe,
			expected: "access(\"/etc/passwd\", 0) = -1 UNSUCCESSFUL ACCESS\n",
		},
		{
			name:     "unknown syscall",
			entry:    btrace.Regs{Eax: 999, Ebx: 1, Ecx: 2, Edx: 3, Esi: 4, Edi: 5},
			ret:      0xffffffff,
			expected: "999(0x1, 0x2, 0x3, 0x4, 0x5) = 0xffffffff\n",
		},
		{
			name:     "mmap arguments come from the argument block",
			entry:    btrace.Regs{Eax: syscalls.SysMmap, Ebx: 0x4000},
			ret:      0xb7f00000,
			expected: "mmap(0x0, 8192, 3, 34, -1) = 0xb7f00000\n",
		},
		{
			name:     "brk",
			entry:    btrace.Regs{Eax: syscalls.SysBrk, Ebx: 0x804a000},
			ret:      0x806b000,
			expected: "brk(0x804a000) = 134656000\n",
		},
		{
			name:     "getdents",
			entry:    btrace.Regs{Eax: syscalls.SysGetdents, Ebx: 3, Ecx: 0x1000, Edx: 32768},
			ret:      48,
			expected: "getdents(3, 0x1000, 32768) = 0x30\n",
		},
		{
			name:     "write failure",
			entry:    btrace.Regs{Eax: syscalls.SysWrite, Ebx: 1, Ecx: 0x2000, Edx: 11},
			ret:      0xfffffff7,
			expected: "write(1, \"hello wo\"..., 11) = -1 ERROR\n",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d, out := newDecoder(testMemory())

			require.NoError(t, d.OnEntry(100, &c.entry))
			require.Empty(t, out.String(), "nothing is written before the call returns")
			require.Equal(t, 1, d.Pending())

			d.OnProbe(100, &btrace.Regs{Eax: c.ret})

			require.Equal(t, c.expected, out.String())
			require.Zero(t, d.Pending())
			require.Equal(t, 1, out.writes, "a record is a single write")
			require.Equal(t, 1, out.syncs, "every record is synced")
		})
	}
}

func TestDecodeExit(t *testing.T) {
	d, out := newDecoder(testMemory())

	require.NoError(t, d.OnEntry(100, &btrace.Regs{Eax: syscalls.SysExit}))
	require.Equal(t, "exit(0) = ?\n", out.String())

	d.OnProbe(100, &btrace.Regs{Eax: 0})
	d.OnProbe(100, &btrace.Regs{Eax: 0})
	d.OnThreadExit(100)

	require.Equal(t, "exit(0) = ?\n", out.String())

	snap := d.Stats().Snapshot()
	require.Equal(t, uint64(1), snap.Records)
	require.Equal(t, uint64(1), snap.SelfTerminating)
	require.Zero(t, snap.Orphaned)
}

func TestDecodeExitGroupWithoutProbe(t *testing.T) {
	d, out := newDecoder(testMemory())

	require.NoError(t, d.OnEntry(100, &btrace.Regs{Eax: syscalls.SysExitGroup, Ebx: 2}))
	d.OnThreadExit(100)

	require.Equal(t, "exit_group(2) = ?\n", out.String())
	require.Zero(t, d.Pending())
}

func TestProbeWithoutEntry(t *testing.T) {
	d, out := newDecoder(testMemory())

	d.OnProbe(100, &btrace.Regs{Eax: 3})

	require.Empty(t, out.String())
	require.Zero(t, out.writes)
}

func TestProbeCompletesOnlyItsThread(t *testing.T) {
	d, out := newDecoder(testMemory())

	require.NoError(t, d.OnEntry(1, &btrace.Regs{Eax: syscalls.SysGetpid}))
	require.NoError(t, d.OnEntry(2, &btrace.Regs{Eax: syscalls.SysOpen, Ebx: 0x1000, Ecx: 2, Edx: 0}))

	d.OnProbe(2, &btrace.Regs{Eax: 4})
	require.Equal(t, "open(\"/tmp/x\", O_RDWR, 0) = 4\n", out.String())

	d.OnProbe(1, &btrace.Regs{Eax: 77})
	require.Equal(t, "open(\"/tmp/x\", O_RDWR, 0) = 4\ngetpid() = 77\n", out.String())
}

func TestOrphanedThread(t *testing.T) {
	d, out := newDecoder(testMemory())

	require.NoError(t, d.OnEntry(5, &btrace.Regs{Eax: syscalls.SysRead, Ebx: 0, Ecx: 0x2000, Edx: 64}))
	d.OnThreadExit(5)

	require.Empty(t, out.String())
	require.Zero(t, d.Pending())
	require.Equal(t, uint64(1), d.Stats().Snapshot().Orphaned)

	d.OnProbe(5, &btrace.Regs{Eax: 0})
	require.Empty(t, out.String())
}

func TestEntryFailsOnWildMmapPointer(t *testing.T) {
	d, out := newDecoder(testMemory())

	err := d.OnEntry(1, &btrace.Regs{Eax: syscalls.SysMmap, Ebx: 0xdead0000})
	require.ErrorIs(t, err, btrace.ErrIndirectArgs)

	require.Empty(t, out.String())
	require.Zero(t, d.Pending())
}

func TestWriteFailureKeepsDecoding(t *testing.T) {
	logger := zap.NewNop().Sugar()
	d := btrace.NewDecoder(logger, syscalls.NewTable(), testMemory(), btrace.NewSink(logger, failingWriter{}))

	require.NoError(t, d.OnEntry(1, &btrace.Regs{Eax: syscalls.SysGetpid}))
	d.OnProbe(1, &btrace.Regs{Eax: 1})

	snap := d.Stats().Snapshot()
	require.Equal(t, uint64(1), snap.WriteFailures)
	require.Zero(t, snap.Records)
	require.Zero(t, d.Pending())
}

func TestConcurrentThreadsNeverTear(t *testing.T) {
	const (
		threads = 16
		calls   = 200
	)

	d, out := newDecoder(testMemory())

	var wg sync.WaitGroup

	for tid := int32(1); tid <= threads; tid++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := 0; i < calls; i++ {
				if err := d.OnEntry(tid, &btrace.Regs{Eax: syscalls.SysOpen, Ebx: 0x1000, Ecx: 1, Edx: 0o600}); err != nil {
					t.Error(err)

					return
				}

				d.OnProbe(tid, &btrace.Regs{Eax: uint32(tid)})
			}
		}()
	}

	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, threads*calls)

	counts := make(map[string]int)
	for _, l := range lines {
		counts[l]++
	}

	for tid := 1; tid <= threads; tid++ {
		line := fmt.Sprintf("open(\"/tmp/x\", O_WRONLY, 0600) = %d", tid)
		require.Equal(t, calls, counts[line], line)
	}

	require.Equal(t, uint64(threads*calls), d.Stats().Snapshot().Records)
}
