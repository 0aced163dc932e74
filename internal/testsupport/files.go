package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	WriteBytes(t, path, buf)
}

// WriteBytes writes data to path, creating parent directories.
func WriteBytes(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteVideo writes a minimal ISO-BMFF header that content sniffing detects
// as MP4.
func WriteVideo(t testing.TB, path string) {
	t.Helper()
	WriteBytes(t, path, MP4Bytes())
}

// MP4Bytes returns a minimal MP4 ftyp box followed by padding.
func MP4Bytes() []byte {
	header := []byte{
		0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p',
		'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00,
		'i', 's', 'o', 'm', 'm', 'p', '4', '1',
	}
	return append(header, make([]byte, 64)...)
}

// WebMBytes returns a minimal EBML header with a webm doctype.
func WebMBytes() []byte {
	header := []byte{
		0x1A, 0x45, 0xDF, 0xA3, 0x9F,
		0x42, 0x86, 0x81, 0x01,
		0x42, 0xF7, 0x81, 0x01,
		0x42, 0xF2, 0x81, 0x04,
		0x42, 0xF3, 0x81, 0x08,
		0x42, 0x82, 0x84, 'w', 'e', 'b', 'm',
		0x42, 0x87, 0x81, 0x04,
		0x42, 0x85, 0x81, 0x02,
	}
	return append(header, make([]byte, 64)...)
}

// MustExist fails the test when path is not a regular file.
func MustExist(t testing.TB, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
	if info.IsDir() {
		t.Fatalf("expected %s to be a file", path)
	}
}

// MustNotExist fails the test when path exists.
func MustNotExist(t testing.TB, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("expected %s to be absent", path)
	} else if !os.IsNotExist(err) {
		t.Fatalf("stat %s: %v", path, err)
	}
}
