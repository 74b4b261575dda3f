// Package compression wraps the codecs used for stress reports behind a
// single Compressor interface. Codecs are chosen by Algorithm or, for
// files, by extension.
//
//	comp, err := compression.NewCompressor(&compression.Config{
//	    Algorithm: compression.Zstd,
//	    Level:     compression.Better,
//	})
//	packed, err := comp.Compress(data)
//
// Speed (fastest to slowest): LZ4 > Snappy/S2 > Zstd > Gzip.
// Ratio (best to worst): Zstd > Gzip > Snappy/S2 > LZ4.
package compression

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm names a codec.
type Algorithm string

const (
	None   Algorithm = "none"
	Gzip   Algorithm = "gzip"
	Snappy Algorithm = "snappy"
	LZ4    Algorithm = "lz4"
	Zstd   Algorithm = "zstd"
	S2     Algorithm = "s2"
)

// Level trades speed for ratio.
type Level int

const (
	Fastest Level = 1
	Default Level = 5
	Better  Level = 7
	Best    Level = 9
)

func (l Level) String() string {
	switch l {
	case Fastest:
		return "fastest"
	case Default:
		return "default"
	case Better:
		return "better"
	case Best:
		return "best"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

var extensions = map[string]Algorithm{
	".gz":  Gzip,
	".sz":  Snappy,
	".lz4": LZ4,
	".zst": Zstd,
	".s2":  S2,
}

// FromPath picks the codec matching the file extension of path, or None.
func FromPath(path string) Algorithm {
	if a, ok := extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return a
	}
	return None
}

// Extension returns the file extension for a, or "" for None.
func (a Algorithm) Extension() string {
	for ext, alg := range extensions {
		if alg == a {
			return ext
		}
	}
	return ""
}

// Compressor compresses whole buffers or streams. Implementations are safe
// for concurrent use.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)

	// CompressStream compresses src into dst and flushes the codec frame.
	CompressStream(dst io.Writer, src io.Reader) error
	DecompressStream(dst io.Writer, src io.Reader) error

	// NewWriter returns a writer that compresses into dst. Close flushes
	// the frame but does not close dst.
	NewWriter(dst io.Writer) (io.WriteCloser, error)

	Algorithm() Algorithm
	Level() Level
}

// Config selects a codec.
type Config struct {
	Algorithm Algorithm
	Level     Level
}

// DefaultConfig returns zstd at the default level.
func DefaultConfig() *Config {
	return &Config{Algorithm: Zstd, Level: Default}
}

// NewCompressor creates the compressor described by config. A nil config
// means DefaultConfig.
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	base := baseCompressor{algorithm: config.Algorithm, level: config.Level}

	switch config.Algorithm {
	case None, "":
		base.algorithm = None
		return &noneCompressor{base}, nil
	case Gzip:
		return newGzipCompressor(base), nil
	case Snappy:
		return &snappyCompressor{base}, nil
	case LZ4:
		return &lz4Compressor{baseCompressor: base, compressionLevel: mapLZ4Level(config.Level)}, nil
	case Zstd:
		return newZstdCompressor(base), nil
	case S2:
		return &s2Compressor{base}, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", config.Algorithm)
	}
}

type baseCompressor struct {
	algorithm Algorithm
	level     Level
}

func (bc *baseCompressor) Algorithm() Algorithm { return bc.algorithm }
func (bc *baseCompressor) Level() Level         { return bc.level }

// viaWriter runs data through a compressor's stream writer.
func viaWriter(c Compressor, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := c.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func copyThrough(w io.WriteCloser, src io.Reader) error {
	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func readAll(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil { //nolint:gosec // reports are produced locally
		return nil, err
	}
	return buf.Bytes(), nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type noneCompressor struct{ baseCompressor }

func (nc *noneCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (nc *noneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }

func (nc *noneCompressor) NewWriter(dst io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{dst}, nil
}

func (nc *noneCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

func (nc *noneCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

type gzipCompressor struct {
	baseCompressor
	gzipLevel  int
	readerPool sync.Pool
}

func newGzipCompressor(base baseCompressor) *gzipCompressor {
	gc := &gzipCompressor{baseCompressor: base, gzipLevel: mapGzipLevel(base.level)}
	gc.readerPool.New = func() interface{} { return new(gzip.Reader) }
	return gc
}

func (gc *gzipCompressor) NewWriter(dst io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriterLevel(dst, gc.gzipLevel)
}

func (gc *gzipCompressor) Compress(data []byte) ([]byte, error) { return viaWriter(gc, data) }

func (gc *gzipCompressor) Decompress(data []byte) ([]byte, error) {
	r := gc.readerPool.Get().(*gzip.Reader)
	defer gc.readerPool.Put(r)
	if err := r.Reset(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return readAll(r)
}

func (gc *gzipCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	w, err := gc.NewWriter(dst)
	if err != nil {
		return err
	}
	return copyThrough(w, src)
}

func (gc *gzipCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	r := gc.readerPool.Get().(*gzip.Reader)
	defer gc.readerPool.Put(r)
	if err := r.Reset(src); err != nil {
		return err
	}
	_, err := io.Copy(dst, r)
	return err
}

type snappyCompressor struct{ baseCompressor }

func (sc *snappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (sc *snappyCompressor) Decompress(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}

func (sc *snappyCompressor) NewWriter(dst io.Writer) (io.WriteCloser, error) {
	return snappy.NewBufferedWriter(dst), nil
}

func (sc *snappyCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	return copyThrough(snappy.NewBufferedWriter(dst), src)
}

func (sc *snappyCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, snappy.NewReader(src))
	return err
}

type lz4Compressor struct {
	baseCompressor
	compressionLevel lz4.CompressionLevel
}

func (lc *lz4Compressor) NewWriter(dst io.Writer) (io.WriteCloser, error) {
	w := lz4.NewWriter(dst)
	if err := w.Apply(lz4.CompressionLevelOption(lc.compressionLevel)); err != nil {
		return nil, err
	}
	return w, nil
}

func (lc *lz4Compressor) Compress(data []byte) ([]byte, error) { return viaWriter(lc, data) }

func (lc *lz4Compressor) Decompress(data []byte) ([]byte, error) {
	return readAll(lz4.NewReader(bytes.NewReader(data)))
}

func (lc *lz4Compressor) CompressStream(dst io.Writer, src io.Reader) error {
	w, err := lc.NewWriter(dst)
	if err != nil {
		return err
	}
	return copyThrough(w, src)
}

func (lc *lz4Compressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, lz4.NewReader(src))
	return err
}

type zstdCompressor struct {
	baseCompressor
	encoderLevel zstd.EncoderLevel
	encoderPool  sync.Pool
	decoderPool  sync.Pool
}

func newZstdCompressor(base baseCompressor) *zstdCompressor {
	zc := &zstdCompressor{baseCompressor: base, encoderLevel: mapZstdLevel(base.level)}
	zc.encoderPool.New = func() interface{} {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zc.encoderLevel))
		return enc
	}
	zc.decoderPool.New = func() interface{} {
		dec, _ := zstd.NewReader(nil)
		return dec
	}
	return zc
}

func (zc *zstdCompressor) Compress(data []byte) ([]byte, error) {
	enc := zc.encoderPool.Get().(*zstd.Encoder)
	defer zc.encoderPool.Put(enc)
	return enc.EncodeAll(data, nil), nil
}

func (zc *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	dec := zc.decoderPool.Get().(*zstd.Decoder)
	defer zc.decoderPool.Put(dec)
	return dec.DecodeAll(data, nil)
}

// NewWriter returns a dedicated encoder; pooled encoders are only used for
// calls that finish before returning.
func (zc *zstdCompressor) NewWriter(dst io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(dst, zstd.WithEncoderLevel(zc.encoderLevel))
}

func (zc *zstdCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	enc := zc.encoderPool.Get().(*zstd.Encoder)
	defer zc.encoderPool.Put(enc)
	enc.Reset(dst)
	return copyThrough(enc, src)
}

func (zc *zstdCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	dec := zc.decoderPool.Get().(*zstd.Decoder)
	defer zc.decoderPool.Put(dec)
	if err := dec.Reset(src); err != nil {
		return err
	}
	_, err := io.Copy(dst, dec)
	return err
}

type s2Compressor struct{ baseCompressor }

func (sc *s2Compressor) Compress(data []byte) ([]byte, error) {
	if sc.level >= Better {
		return s2.EncodeBetter(nil, data), nil
	}
	return s2.Encode(nil, data), nil
}

func (sc *s2Compressor) Decompress(data []byte) ([]byte, error) {
	return s2.Decode(nil, data)
}

func (sc *s2Compressor) NewWriter(dst io.Writer) (io.WriteCloser, error) {
	var opts []s2.WriterOption
	if sc.level >= Better {
		opts = append(opts, s2.WriterBetterCompression())
	}
	return s2.NewWriter(dst, opts...), nil
}

func (sc *s2Compressor) CompressStream(dst io.Writer, src io.Reader) error {
	w, _ := sc.NewWriter(dst)
	return copyThrough(w, src)
}

func (sc *s2Compressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, s2.NewReader(src))
	return err
}

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
