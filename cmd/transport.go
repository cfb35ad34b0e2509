package cmd

import (
	"github.com/cossteam/dgram/config"
	"github.com/cossteam/dgram/pkg/codec"
	"github.com/cossteam/dgram/pkg/log"
	"github.com/cossteam/dgram/pkg/packet"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// setup turns flags and config into a logger, a transport and a codec.
func setup(ctx *cli.Context) (*zap.Logger, *packet.Transport, *codec.Codec, error) {
	c, err := applyConfig(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := log.SetupLogger(c.Loglevel, c.LogFormat)
	if err != nil {
		return nil, nil, nil, err
	}

	opts, err := c.TransportOptions()
	if err != nil {
		return nil, nil, nil, err
	}

	cc, err := newCodec(c)
	if err != nil {
		return nil, nil, nil, err
	}

	t, err := packet.New(logger, opts)
	if err != nil {
		return nil, nil, nil, err
	}
	return logger, t, cc, nil
}

func newCodec(c *config.Config) (*codec.Codec, error) {
	opts, err := c.CodecOptions()
	if err != nil {
		return nil, err
	}
	return codec.New(opts)
}
