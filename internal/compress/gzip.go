// Package compress adapts the gzip codec used for on-disk candle files.
// Compressed files are a single gzip member with no outer framing.
package compress

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// Level is the compression effort. The zero value is Fastest; Optimal is
// the engine default.
type Level int

const (
	Fastest Level = iota
	Optimal
	SmallestSize
)

func (l Level) gzipLevel() int {
	switch l {
	case SmallestSize:
		return gzip.BestCompression
	case Optimal:
		return gzip.DefaultCompression
	default:
		return gzip.BestSpeed
	}
}

func (l Level) String() string {
	switch l {
	case SmallestSize:
		return "smallest"
	case Optimal:
		return "optimal"
	default:
		return "fastest"
	}
}

// ParseLevel maps a configuration string to a Level.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "fastest":
		return Fastest, true
	case "optimal", "":
		return Optimal, true
	case "smallest":
		return SmallestSize, true
	}
	return Optimal, false
}

// IsCompressed sniffs the two gzip magic bytes 0x1F 0x8B.
func IsCompressed(b []byte) bool {
	return len(b) >= 2 && b[0] == 0x1F && b[1] == 0x8B
}

// Compress gzips b at the given level.
func Compress(b []byte, level Level) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(len(b) / 2)
	zw, err := gzip.NewWriterLevel(&out, level.gzipLevel())
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := zw.Write(b); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return out.Bytes(), nil
}

// Decompress gunzips b in full.
func Decompress(b []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	return out, nil
}

// NewReader returns a streaming decompressor over r.
func NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	return zr, nil
}

// NewWriter returns a streaming compressor over w at the given level.
func NewWriter(w io.Writer, level Level) (*gzip.Writer, error) {
	zw, err := gzip.NewWriterLevel(w, level.gzipLevel())
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	return zw, nil
}

var decompressPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 64*1024)
		return &b
	},
}

// ReturnBuffer hands a buffer obtained from DecompressPooled back to the
// pool.
func ReturnBuffer(b []byte) {
	b = b[:0]
	decompressPool.Put(&b)
}

// DecompressPooled gunzips b into a pooled buffer of at least estimate
// bytes that doubles on exhaustion. The caller owns the result until it is
// returned with ReturnBuffer.
func DecompressPooled(b []byte, estimate int) ([]byte, error) {
	if estimate <= 0 {
		estimate = 64 * 1024
	}
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer zr.Close()

	bp := decompressPool.Get().(*[]byte)
	buf := *bp
	if cap(buf) < estimate {
		buf = make([]byte, estimate)
	}
	buf = buf[:cap(buf)]

	n := 0
	for {
		if n == len(buf) {
			grown := make([]byte, len(buf)*2)
			copy(grown, buf)
			buf = grown
		}
		m, err := zr.Read(buf[n:])
		n += m
		if err == io.EOF {
			break
		}
		if err != nil {
			ReturnBuffer(buf)
			return nil, fmt.Errorf("gzip read: %w", err)
		}
	}
	return buf[:n], nil
}
