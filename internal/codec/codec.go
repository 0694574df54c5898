// Package codec implements the fixed-layout binary format of vault files:
// a 64-byte validated header followed by a dense array of 96-byte records.
// All multi-byte integers are little-endian.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/shopspring/decimal"

	"historyvault/internal/domain/models"
)

const (
	// Magic identifies a vault file: "HVLT".
	Magic = "HVLT"
	// Version is the current format version.
	Version = 1
	// HeaderSize is the fixed byte length of the file header.
	HeaderSize = 64
	// RecordSize is the byte length of one candle record.
	RecordSize = 96

	// FlagCompressed marks a file whose payload was written compressed.
	FlagCompressed uint16 = 0x0001
)

var (
	ErrBadMagic           = errors.New("bad magic")
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrTruncated          = errors.New("truncated input")
	ErrNegativeCount      = errors.New("negative record count")
	ErrDecimalRange       = errors.New("decimal out of 96-bit range")
)

// Header is the decoded 64-byte file header. Timestamps are ticks since the
// Unix epoch; zero when the file holds no records.
type Header struct {
	Version         uint16
	Flags           uint16
	RecordCount     int64
	FirstTimestamp  int64
	LastTimestamp   int64
	IntervalSeconds int32
}

// Compressed reports whether the compressed payload marker is set.
func (h Header) Compressed() bool { return h.Flags&FlagCompressed != 0 }

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, HeaderSize+1024*RecordSize)
		return &b
	},
}

func pooled(n int) []byte {
	bp := bufPool.Get().(*[]byte)
	b := *bp
	if cap(b) < n {
		b = make([]byte, n)
	}
	return b[:n]
}

// ReturnBuffer hands a buffer obtained from Encode or EncodeEmpty back to
// the pool.
func ReturnBuffer(b []byte) {
	b = b[:0]
	bufPool.Put(&b)
}

// Encode serializes candles in input order. No sorting and no monotonicity
// validation happen here; the engine preserves what it is given. The
// returned buffer comes from a pool and must be released with ReturnBuffer.
func Encode(candles []models.Candle, interval models.Interval, compressed bool) ([]byte, error) {
	buf := pooled(HeaderSize + len(candles)*RecordSize)

	h := Header{Version: Version, RecordCount: int64(len(candles))}
	if compressed {
		h.Flags |= FlagCompressed
	}
	if s, err := interval.Seconds(); err == nil {
		h.IntervalSeconds = int32(s)
	}
	if len(candles) > 0 {
		h.FirstTimestamp = models.TicksOf(candles[0].OpenTime)
		h.LastTimestamp = models.TicksOf(candles[len(candles)-1].CloseTime)
	}
	putHeader(buf[:HeaderSize], h)

	for i, c := range candles {
		if err := putRecord(buf[HeaderSize+i*RecordSize:], c); err != nil {
			ReturnBuffer(buf)
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return buf, nil
}

// EncodeEmpty produces a 64-byte header with zero count and zero timestamps.
func EncodeEmpty(interval models.Interval, compressed bool) ([]byte, error) {
	return Encode(nil, interval, compressed)
}

// Decode validates the header and reads every record, returning a freshly
// owned candle slice.
func Decode(b []byte) ([]models.Candle, Header, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return nil, Header{}, err
	}
	need := HeaderSize + int(h.RecordCount)*RecordSize
	if len(b) < need {
		return nil, Header{}, fmt.Errorf("%w: have %d bytes, need %d", ErrTruncated, len(b), need)
	}
	candles := make([]models.Candle, h.RecordCount)
	for i := range candles {
		candles[i] = readRecord(b[HeaderSize+i*RecordSize:])
	}
	return candles, h, nil
}

// DecodeHeader validates and reads only the first 64 bytes. The
// availability scan uses this to avoid decoding whole files.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: have %d bytes, need header of %d", ErrTruncated, len(b), HeaderSize)
	}
	if string(b[0:4]) != Magic {
		return Header{}, fmt.Errorf("%w: %q", ErrBadMagic, b[0:4])
	}
	h := Header{
		Version:         binary.LittleEndian.Uint16(b[4:6]),
		Flags:           binary.LittleEndian.Uint16(b[6:8]),
		RecordCount:     int64(binary.LittleEndian.Uint64(b[8:16])),
		FirstTimestamp:  int64(binary.LittleEndian.Uint64(b[16:24])),
		LastTimestamp:   int64(binary.LittleEndian.Uint64(b[24:32])),
		IntervalSeconds: int32(binary.LittleEndian.Uint32(b[32:36])),
	}
	if h.Version > Version {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if h.RecordCount < 0 {
		return Header{}, fmt.Errorf("%w: %d", ErrNegativeCount, h.RecordCount)
	}
	return h, nil
}

// EncodeTo writes the header followed by the exact record bytes to w.
func EncodeTo(w io.Writer, candles []models.Candle, interval models.Interval, compressed bool) error {
	buf, err := Encode(candles, interval, compressed)
	if err != nil {
		return err
	}
	defer ReturnBuffer(buf)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write encoded candles: %w", err)
	}
	return nil
}

// DecodeFrom reads a header, then exactly the record bytes it announces.
func DecodeFrom(r io.Reader) ([]models.Candle, Header, error) {
	var hb [HeaderSize]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, Header{}, fmt.Errorf("%w: short header read", ErrTruncated)
		}
		return nil, Header{}, fmt.Errorf("read header: %w", err)
	}
	h, err := DecodeHeader(hb[:])
	if err != nil {
		return nil, Header{}, err
	}
	body := make([]byte, int(h.RecordCount)*RecordSize)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, Header{}, fmt.Errorf("%w: short record read", ErrTruncated)
		}
		return nil, Header{}, fmt.Errorf("read records: %w", err)
	}
	candles := make([]models.Candle, h.RecordCount)
	for i := range candles {
		candles[i] = readRecord(body[i*RecordSize:])
	}
	return candles, h, nil
}

func putHeader(b []byte, h Header) {
	copy(b[0:4], Magic)
	binary.LittleEndian.PutUint16(b[4:6], h.Version)
	binary.LittleEndian.PutUint16(b[6:8], h.Flags)
	binary.LittleEndian.PutUint64(b[8:16], uint64(h.RecordCount))
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.FirstTimestamp))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.LastTimestamp))
	binary.LittleEndian.PutUint32(b[32:36], uint32(h.IntervalSeconds))
	for i := 36; i < HeaderSize; i++ {
		b[i] = 0
	}
}

func putRecord(b []byte, c models.Candle) error {
	binary.LittleEndian.PutUint64(b[0:8], uint64(models.TicksOf(c.OpenTime)))
	binary.LittleEndian.PutUint64(b[8:16], uint64(models.TicksOf(c.CloseTime)))
	offsets := [5]int{16, 32, 48, 64, 80}
	values := [5]decimal.Decimal{c.Open, c.High, c.Low, c.Close, c.Volume}
	for i, v := range values {
		if err := putDecimal(b[offsets[i]:], v); err != nil {
			return err
		}
	}
	return nil
}

func readRecord(b []byte) models.Candle {
	return models.Candle{
		OpenTime:  models.TimeOfTicks(int64(binary.LittleEndian.Uint64(b[0:8]))),
		CloseTime: models.TimeOfTicks(int64(binary.LittleEndian.Uint64(b[8:16]))),
		Open:      readDecimal(b[16:]),
		High:      readDecimal(b[32:]),
		Low:       readDecimal(b[48:]),
		Close:     readDecimal(b[64:]),
		Volume:    readDecimal(b[80:]),
	}
}

// Decimal payload: four little-endian 32-bit words lo, mid, hi, flags
// forming a 128-bit fixed-point decimal. The flags word carries the scale
// (0..28) in bits 16..23 and the sign in bit 31; the 96-bit magnitude lives
// in lo/mid/hi.
var maxMantissa = new(big.Int).Lsh(big.NewInt(1), 96)

func putDecimal(b []byte, d decimal.Decimal) error {
	scale := -int(d.Exponent())
	switch {
	case scale < 0:
		// Positive exponents fold into the mantissa.
		d = decimal.NewFromBigInt(d.BigInt(), 0)
		scale = 0
	case scale > 28:
		d = d.Round(28)
		scale = -int(d.Exponent())
	}

	coef := d.Coefficient()
	neg := coef.Sign() < 0
	abs := new(big.Int).Abs(coef)
	if abs.Cmp(maxMantissa) >= 0 {
		return fmt.Errorf("%w: %s", ErrDecimalRange, d)
	}

	var words [12]byte
	abs.FillBytes(words[:])
	// FillBytes is big-endian; the wire wants little-endian lo/mid/hi words.
	binary.LittleEndian.PutUint32(b[0:4], uint32(words[11])|uint32(words[10])<<8|uint32(words[9])<<16|uint32(words[8])<<24)
	binary.LittleEndian.PutUint32(b[4:8], uint32(words[7])|uint32(words[6])<<8|uint32(words[5])<<16|uint32(words[4])<<24)
	binary.LittleEndian.PutUint32(b[8:12], uint32(words[3])|uint32(words[2])<<8|uint32(words[1])<<16|uint32(words[0])<<24)

	flags := uint32(scale) << 16
	if neg {
		flags |= 1 << 31
	}
	binary.LittleEndian.PutUint32(b[12:16], flags)
	return nil
}

func readDecimal(b []byte) decimal.Decimal {
	lo := binary.LittleEndian.Uint32(b[0:4])
	mid := binary.LittleEndian.Uint32(b[4:8])
	hi := binary.LittleEndian.Uint32(b[8:12])
	flags := binary.LittleEndian.Uint32(b[12:16])

	mantissa := new(big.Int).SetUint64(uint64(hi))
	mantissa.Lsh(mantissa, 64)
	low64 := new(big.Int).SetUint64(uint64(mid)<<32 | uint64(lo))
	mantissa.Or(mantissa, low64)

	scale := int32((flags >> 16) & 0xFF)
	if flags&(1<<31) != 0 {
		mantissa.Neg(mantissa)
	}
	return decimal.NewFromBigInt(mantissa, -scale)
}
