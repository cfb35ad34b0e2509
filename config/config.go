package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/cossteam/dgram/pkg/codec"
	"github.com/cossteam/dgram/pkg/packet"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Loglevel  string `yaml:"loglevel"`
	LogFormat string `yaml:"logformat"`

	ListenAddr string `yaml:"listenAddr"`
	ListenPort int    `yaml:"listenPort"`

	// DestinationHost and DestinationPort are the default destination for
	// packets that carry none. An empty host and a port of -1 mean unset.
	DestinationHost string `yaml:"destinationHost"`
	DestinationPort int    `yaml:"destinationPort"`

	BufferSize    int    `yaml:"bufferSize"`
	Timeout       string `yaml:"timeout"`
	QueueCapacity int    `yaml:"queueCapacity"`

	Codec Codec `yaml:"codec"`
}

type Codec struct {
	Spec map[string]interface{} `yaml:"spec"`
}

// LoadCodecOptions decodes the codec spec into target, accepting loosely
// typed values such as "3" for an int.
func (c *Codec) LoadCodecOptions(target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(c.Spec)
}

// CodecOptions returns the codec options, defaulting to gzip.
func (c *Config) CodecOptions() (codec.Options, error) {
	opts := codec.Options{Compression: codec.CompressionGzip}
	if err := c.Codec.LoadCodecOptions(&opts); err != nil {
		return codec.Options{}, fmt.Errorf("codec spec: %w", err)
	}
	return opts, nil
}

// TransportOptions converts the config into packet.Options.
func (c *Config) TransportOptions() (packet.Options, error) {
	opts := packet.DefaultOptions()
	opts.DestinationHost = c.DestinationHost
	opts.DestinationPort = c.DestinationPort
	opts.ListenPort = c.ListenPort
	opts.BufferSize = c.BufferSize
	opts.QueueCapacity = c.QueueCapacity

	if c.ListenAddr != "" {
		ip := net.ParseIP(c.ListenAddr)
		if ip == nil {
			return packet.Options{}, fmt.Errorf("invalid listen address %q", c.ListenAddr)
		}
		opts.ListenIP = ip
	}

	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return packet.Options{}, fmt.Errorf("timeout: %w", err)
		}
		if d <= 0 {
			return packet.Options{}, fmt.Errorf("timeout must be positive, got %s", d)
		}
		opts.Timeout = d
	}
	return opts, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Loglevel:        "info",
		DestinationPort: packet.PortUnset,
		BufferSize:      packet.DefaultBufferSize,
		Timeout:         packet.DefaultTimeout.String(),
		QueueCapacity:   packet.DefaultQueueCapacity,
	}
}

// Load reads a YAML file on top of Default.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
