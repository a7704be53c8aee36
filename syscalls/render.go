package syscalls

import (
	"fmt"
	"strings"
)

const (
	// PathMax bounds path reads.
	PathMax = 4096

	// bufPreview is how many characters of a read/write buffer are shown before eliding.
	bufPreview = 8
)

var openModes = [4]string{"O_RDONLY", "O_WRONLY", "O_RDWR", "O_RDWR"}

// arg renders one argument.
type arg func(sr StringReader, v uint32) string

func signed(_ StringReader, v uint32) string {
	return fmt.Sprintf("%d", int32(v))
}

func unsigned(_ StringReader, v uint32) string {
	return fmt.Sprintf("%d", v)
}

func hex(_ StringReader, v uint32) string {
	return fmt.Sprintf("0x%x", v)
}

func octal(_ StringReader, v uint32) string {
	return fmt.Sprintf("%#o", v)
}

// openMode decodes the access mode from the low two bits of open flags.
func openMode(_ StringReader, v uint32) string {
	return openModes[v&3]
}

func path(sr StringReader, v uint32) string {
	s, err := sr.CString(v, PathMax)
	if err != nil {
		return fmt.Sprintf("0x%x", v)
	}

	return fmt.Sprintf("%q", s)
}

// buffer shows at most bufPreview characters, eliding the rest.
func buffer(sr StringReader, v uint32) string {
	s, err := sr.CString(v, bufPreview+1)
	if err != nil {
		return fmt.Sprintf("0x%x", v)
	}

	if len(s) > bufPreview {
		return fmt.Sprintf("%q...", s[:bufPreview])
	}

	return fmt.Sprintf("%q", s)
}

// enter builds an EnterFunc from one renderer per ordinal argument.
func enter(args ...arg) EnterFunc {
	return func(sr StringReader, a Args) string {
		parts := make([]string, len(args))
		for i, render := range args {
			parts[i] = render(sr, a[i])
		}

		return strings.Join(parts, ", ")
	}
}

func retSigned(ret uint32) string {
	return fmt.Sprintf("%d", int32(ret))
}

func retUnsigned(ret uint32) string {
	return fmt.Sprintf("%d", ret)
}

func retHex(ret uint32) string {
	return fmt.Sprintf("0x%x", ret)
}

// retCount is used by read and write: any negative value is a generic failure.
func retCount(ret uint32) string {
	if int32(ret) < 0 {
		return "-1 ERROR"
	}

	return retUnsigned(ret)
}

func retAccess(ret uint32) string {
	if ret != 0 {
		return "-1 UNSUCCESSFUL ACCESS"
	}

	return "0 SUCCESS ACCESS"
}

func retNone(uint32) string {
	return "?"
}
