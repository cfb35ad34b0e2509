// Package codec turns Go values into compressed byte payloads and back.
//
// Values are serialized as deterministic CBOR and then compressed. Encode and
// Decode open and close their own streams; nothing outlives a call.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/cossteam/dgram/pkg/packet"
	"github.com/fxamacker/cbor/v2"
)

var (
	ErrEncode = errors.New("encode failed")
	ErrDecode = errors.New("decode failed")
)

// DefaultMaxSize caps the decompressed size Decode accepts.
const DefaultMaxSize = 16 << 20

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Options selects the compression applied after serialization. The
// mapstructure tags let the codec section of a config file decode into it.
type Options struct {
	Compression string `mapstructure:"compression" yaml:"compression"`

	// Level is passed to the compressor. Zero picks its default.
	Level int `mapstructure:"level" yaml:"level"`

	// MaxSize limits the decompressed payload. Zero means DefaultMaxSize.
	MaxSize int `mapstructure:"maxSize" yaml:"maxSize"`
}

type Codec struct {
	compressor compressor
	maxSize    int
}

var defaultCodec = &Codec{
	compressor: gzipCompressor{},
	maxSize:    DefaultMaxSize,
}

// New returns a Codec for opts. An empty Compression means gzip.
func New(opts Options) (*Codec, error) {
	comp, err := newCompressor(opts.Compression, opts.Level)
	if err != nil {
		return nil, err
	}
	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Codec{compressor: comp, maxSize: maxSize}, nil
}

func (c *Codec) Name() string {
	return c.compressor.name()
}

// Encode serializes and compresses v.
func (c *Codec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer

	zw, err := c.compressor.newWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %s writer: %w", ErrEncode, c.compressor.name(), err)
	}

	if err := encMode.NewEncoder(zw).Encode(v); err != nil {
		zw.Close()
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %s flush: %w", ErrEncode, c.compressor.name(), err)
	}
	return buf.Bytes(), nil
}

// Decode decompresses data and deserializes it into v, which must be a
// non-nil pointer. v is only written when the whole payload decodes.
func (c *Codec) Decode(data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: target must be a non-nil pointer, got %T", ErrDecode, v)
	}

	raw, err := c.decompress(data)
	if err != nil {
		return err
	}

	fresh := reflect.New(rv.Elem().Type())
	if err := decMode.Unmarshal(raw, fresh.Interface()); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}

func (c *Codec) decompress(data []byte) ([]byte, error) {
	zr, err := c.compressor.newReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s reader: %w", ErrDecode, c.compressor.name(), err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(io.LimitReader(zr, int64(c.maxSize)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, c.compressor.name(), err)
	}
	if len(raw) > c.maxSize {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", ErrDecode, c.maxSize)
	}
	return raw, nil
}

// EncodePacket encodes v into the payload of an unaddressed packet.
func (c *Codec) EncodePacket(v any) (*packet.Packet, error) {
	b, err := c.Encode(v)
	if err != nil {
		return nil, err
	}
	return packet.NewPacket(b), nil
}

// DecodePacket decodes the payload of p into v.
func (c *Codec) DecodePacket(p *packet.Packet, v any) error {
	if p == nil {
		return fmt.Errorf("%w: nil packet", ErrDecode)
	}
	return c.Decode(p.Payload, v)
}

// Encode uses the default gzip codec.
func Encode(v any) ([]byte, error) {
	return defaultCodec.Encode(v)
}

// Decode uses the default gzip codec.
func Decode(data []byte, v any) error {
	return defaultCodec.Decode(data, v)
}
