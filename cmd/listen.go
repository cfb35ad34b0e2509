package cmd

import (
	"context"
	"errors"

	"github.com/cossteam/dgram/pkg/codec"
	"github.com/cossteam/dgram/pkg/controller"
	"github.com/cossteam/dgram/pkg/packet"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func init() {
	App.Commands = append(App.Commands, Listen)
}

var Listen = &cli.Command{
	Name:  "listen",
	Usage: "receive datagrams and log them until interrupted",
	Flags: append(transportFlags(),
		&cli.BoolFlag{
			Name:  "decode",
			Usage: "decode payloads with the codec before logging",
		},
		&cli.BoolFlag{
			Name:  "echo",
			Usage: "send every received payload back to its sender",
		},
	),
	Action: runListen,
}

func runListen(ctx *cli.Context) error {
	logger, t, cc, err := setup(ctx)
	if err != nil {
		return err
	}

	c := &consumer{
		logger:    logger.With(zap.String("component", "consumer")),
		transport: t,
		codec:     cc,
		decode:    ctx.Bool("decode"),
		echo:      ctx.Bool("echo"),
	}

	mgr := controller.NewManager(logger, t, c)
	return mgr.Start(SetupSignalHandler())
}

// consumer drains a transport's inbound queue.
type consumer struct {
	logger    *zap.Logger
	transport *packet.Transport
	codec     *codec.Codec
	decode    bool
	echo      bool
}

func (c *consumer) Start(ctx context.Context) error {
	for {
		p, err := c.transport.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, packet.ErrInterrupted) {
				return nil
			}
			return err
		}
		c.handle(ctx, p)
	}
}

func (c *consumer) handle(ctx context.Context, p *packet.Packet) {
	fields := []zap.Field{zap.Stringer("from", p.Addr()), zap.Int("size", len(p.Payload))}
	if c.decode {
		var v interface{}
		if err := c.codec.DecodePacket(p, &v); err != nil {
			c.logger.Warn("failed to decode packet", append(fields, zap.Error(err))...)
		} else {
			fields = append(fields, zap.Any("value", v))
		}
	} else {
		fields = append(fields, zap.ByteString("payload", p.Payload))
	}
	c.logger.Info("received packet", fields...)

	if c.echo {
		reply := packet.NewPacketTo(p.Payload, p.Addr())
		if err := c.transport.Enqueue(ctx, reply); err != nil {
			c.logger.Warn("failed to queue echo", zap.Error(err))
		}
	}
}
