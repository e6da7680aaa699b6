package guardrail

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// tailLine returns the last non-empty line of the file, reading at most
// window bytes from the end regardless of file size. Returns nil when the
// file does not exist or is empty. A file whose trailing window holds no
// complete line is an error, not an absence.
func tailLine(path string, window int64) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // path validated by the gate
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open series log: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat series log: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return nil, nil
	}

	readLen := size
	offset := int64(0)
	truncated := false
	if size > window {
		readLen = window
		offset = size - window
		truncated = true
	}

	buf := make([]byte, readLen)
	if _, err := f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to tail series log: %w", err)
	}

	lines := bytes.Split(buf, []byte("\n"))
	// When the window starts mid-line, the first fragment is not a line.
	start := 0
	if truncated {
		start = 1
	}
	for i := len(lines) - 1; i >= start; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) > 0 {
			return line, nil
		}
	}
	if truncated {
		return nil, fmt.Errorf("latest record exceeds the %d byte tail window", window)
	}
	return nil, nil
}
