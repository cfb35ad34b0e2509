package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cossteam/dgram/pkg/packet"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func init() {
	App.Commands = append(App.Commands, Send)
}

var Send = &cli.Command{
	Name:      "send",
	Usage:     "send messages to the default destination",
	ArgsUsage: "MESSAGE...",
	Flags: append(transportFlags(),
		&cli.BoolFlag{
			Name:  "encode",
			Usage: "encode each message with the codec",
		},
		&cli.IntFlag{
			Name:  "count",
			Usage: "times to send each message",
			Value: 1,
		},
		&cli.DurationFlag{
			Name:  "wait",
			Usage: "how long to log replies after sending",
		},
	),
	Action: runSend,
}

func runSend(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return errors.New("no message given")
	}

	logger, t, cc, err := setup(ctx)
	if err != nil {
		return err
	}
	if t.DefaultDestination() == nil {
		t.Close()
		return fmt.Errorf("%w: send needs --host and --port", packet.ErrInvalidArgument)
	}

	sigCtx := SetupSignalHandler()
	done := make(chan error, 1)
	go func() {
		done <- t.Start(sigCtx)
	}()

	sendErr := enqueueAll(sigCtx, ctx, t, func(msg string) (*packet.Packet, error) {
		if ctx.Bool("encode") {
			return cc.EncodePacket(msg)
		}
		return packet.NewPacket([]byte(msg)), nil
	})

	if sendErr == nil {
		waitDrained(sigCtx, t)
		if wait := ctx.Duration("wait"); wait > 0 {
			logReplies(sigCtx, logger, t, wait)
		}
	}

	t.Shutdown()
	return errors.Join(sendErr, <-done)
}

func enqueueAll(ctx context.Context, cliCtx *cli.Context, t *packet.Transport, build func(string) (*packet.Packet, error)) error {
	for i := 0; i < cliCtx.Int("count"); i++ {
		for _, msg := range cliCtx.Args().Slice() {
			p, err := build(msg)
			if err != nil {
				return err
			}
			if err := t.Enqueue(ctx, p); err != nil {
				return err
			}
		}
	}
	return nil
}

func waitDrained(ctx context.Context, t *packet.Transport) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for t.Pending() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func logReplies(ctx context.Context, logger *zap.Logger, t *packet.Transport, wait time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	for {
		p, err := t.Dequeue(ctx)
		if err != nil {
			return
		}
		logger.Info("received reply", zap.Stringer("from", p.Addr()), zap.ByteString("payload", p.Payload))
	}
}
