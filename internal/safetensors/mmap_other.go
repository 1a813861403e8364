//go:build !unix

package safetensors

import (
	"io"
	"os"
)

func mapFile(f *os.File, size int) ([]byte, bool, error) {
	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, false, err
	}
	return buf, false, nil
}

func unmapFile([]byte) error { return nil }
