package codec

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

const (
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
	CompressionNone = "none"
)

type compressor interface {
	name() string
	newWriter(w io.Writer) (io.WriteCloser, error)
	newReader(r io.Reader) (io.ReadCloser, error)
}

func newCompressor(name string, level int) (compressor, error) {
	switch name {
	case "", CompressionGzip:
		if level != 0 && (level < gzip.HuffmanOnly || level > gzip.BestCompression) {
			return nil, fmt.Errorf("gzip level %d out of range", level)
		}
		return gzipCompressor{level: level}, nil
	case CompressionZstd:
		return zstdCompressor{level: level}, nil
	case CompressionLZ4:
		if level < 0 || level >= len(lz4Levels) {
			return nil, fmt.Errorf("lz4 level %d out of range 0-%d", level, len(lz4Levels)-1)
		}
		return lz4Compressor{level: lz4Levels[level]}, nil
	case CompressionNone:
		return noneCompressor{}, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", name)
	}
}

type gzipCompressor struct {
	level int
}

func (gzipCompressor) name() string { return CompressionGzip }

func (g gzipCompressor) newWriter(w io.Writer) (io.WriteCloser, error) {
	level := g.level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	return gzip.NewWriterLevel(w, level)
}

func (gzipCompressor) newReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

type zstdCompressor struct {
	level int
}

func (zstdCompressor) name() string { return CompressionZstd }

func (z zstdCompressor) newWriter(w io.Writer) (io.WriteCloser, error) {
	level := zstd.SpeedDefault
	if z.level != 0 {
		level = zstd.EncoderLevelFromZstd(z.level)
	}
	return zstd.NewWriter(w, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
}

func (zstdCompressor) newReader(r io.Reader) (io.ReadCloser, error) {
	d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return d.IOReadCloser(), nil
}

// lz4Levels maps a numeric level onto the library's constants; 0 is Fast.
var lz4Levels = []lz4.CompressionLevel{
	lz4.Fast,
	lz4.Level1, lz4.Level2, lz4.Level3,
	lz4.Level4, lz4.Level5, lz4.Level6,
	lz4.Level7, lz4.Level8, lz4.Level9,
}

type lz4Compressor struct {
	level lz4.CompressionLevel
}

func (lz4Compressor) name() string { return CompressionLZ4 }

func (l lz4Compressor) newWriter(w io.Writer) (io.WriteCloser, error) {
	zw := lz4.NewWriter(w)
	if err := zw.Apply(lz4.CompressionLevelOption(l.level), lz4.ChecksumOption(true)); err != nil {
		return nil, err
	}
	return zw, nil
}

func (lz4Compressor) newReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

type noneCompressor struct{}

func (noneCompressor) name() string { return CompressionNone }

func (noneCompressor) newWriter(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

func (noneCompressor) newReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
