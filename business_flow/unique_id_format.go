package businessflow

import "fmt"

const (
	DefaultUniqueIDPrefix   = "RAIoT"
	DefaultUniqueIDPadWidth = 5
)

// UniqueIDFormat renders counter values as PREFIX followed by the zero padded number.
// Width is a minimum; larger numbers keep all of their digits.
type UniqueIDFormat struct {
	Prefix string
	Width  int
}

func DefaultUniqueIDFormat() UniqueIDFormat {
	return UniqueIDFormat{Prefix: DefaultUniqueIDPrefix, Width: DefaultUniqueIDPadWidth}
}

func (f UniqueIDFormat) Format(n int64) string {
	return fmt.Sprintf("%s%0*d", f.Prefix, f.Width, n)
}
