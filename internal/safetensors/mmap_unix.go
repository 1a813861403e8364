//go:build unix

package safetensors

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// mapFile maps f read-only, falling back to a full read when mmap fails.
func mapFile(f *os.File, size int) ([]byte, bool, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		return data, true, nil
	}
	data, err = readAll(f, size)
	return data, false, err
}

func unmapFile(data []byte) error {
	return unix.Munmap(data)
}

func readAll(r io.ReaderAt, size int) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := r.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}
