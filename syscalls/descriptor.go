// Package syscalls holds the i386 syscall descriptor table used to render trace records.
package syscalls

import (
	"fmt"
	"strings"
)

// Args are the five ordinal syscall arguments, in calling-convention order.
type Args [5]uint32

// Call is a syscall number together with its resolved arguments.
type Call struct {
	Number uint32
	Args   Args
}

// StringReader reads NUL-terminated strings out of the traced thread's memory.
//
// At most limit bytes are returned.
type StringReader interface {
	CString(addr uint32, limit int) (string, error)
}

// EnterFunc renders the text between the parentheses of a record.
type EnterFunc func(sr StringReader, args Args) string

// ExitFunc renders the text following " = " of a record.
type ExitFunc func(ret uint32) string

// Descriptor is the immutable rendering metadata of one syscall.
type Descriptor struct {
	Number uint32
	Name   string
	Enter  EnterFunc
	Exit   ExitFunc

	// SelfTerminating syscalls never report a return value: the record is completed
	// with " = ?" at entry.
	SelfTerminating bool
}

// Prefix renders "name(args)" without the result.
func (d *Descriptor) Prefix(sr StringReader, args Args) string {
	return d.Name + "(" + d.Enter(sr, args) + ")"
}

// Suffix renders the result that follows " = ".
func (d *Descriptor) Suffix(ret uint32) string {
	return d.Exit(ret)
}

// Table maps syscall numbers to descriptors. It is never modified after NewTable returns.
type Table struct {
	byNumber map[uint32]*Descriptor
}

// NewTable builds the table of curated syscalls.
func NewTable() *Table {
	t := &Table{byNumber: make(map[uint32]*Descriptor, len(curated))}

	for i := range curated {
		d := curated[i]
		t.byNumber[d.Number] = &d
	}

	return t
}

// Lookup returns the descriptor for number. A missing entry is not an error: callers fall
// back to FallbackEnter and FallbackExit.
func (t *Table) Lookup(number uint32) (*Descriptor, bool) {
	d, ok := t.byNumber[number]
	return d, ok
}

// Len is the number of known syscalls.
func (t *Table) Len() int {
	return len(t.byNumber)
}

// FallbackEnter renders an unknown syscall as its number followed by all five arguments in
// hexadecimal.
func FallbackEnter(c Call) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%d(", c.Number)

	for i, a := range c.Args {
		if i > 0 {
			b.WriteString(", ")
		}

		fmt.Fprintf(&b, "0x%x", a)
	}

	b.WriteByte(')')

	return b.String()
}

// FallbackExit renders the raw return value of an unknown syscall in hexadecimal.
func FallbackExit(ret uint32) string {
	return fmt.Sprintf("0x%x", ret)
}
