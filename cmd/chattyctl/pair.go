package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/matheus3301/chatty/internal/backend"
	"github.com/matheus3301/chatty/internal/backend/wa"
	"github.com/matheus3301/chatty/internal/lock"
	"github.com/matheus3301/chatty/internal/profile"
)

var pairCommand = &cli.Command{
	Name:      "pair",
	Usage:     "link a WhatsApp account by scanning a QR code (daemon must be stopped)",
	ArgsUsage: "<account>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return errors.New("usage: chattyctl pair <account>")
		}
		id := c.Args().First()
		if err := checkWhatsAppAccount(id); err != nil {
			return err
		}

		paths := profile.For(profileName(c))
		if err := paths.EnsureDir(); err != nil {
			return err
		}
		lk, err := lock.Acquire(paths.Lock())
		if err != nil {
			var held *lock.HeldError
			if errors.As(err, &held) {
				return fmt.Errorf("stop chattyd first: %w", err)
			}
			return err
		}
		defer func() { _ = lk.Release() }()

		ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		adapter, err := wa.NewAdapter(ctx, id, paths.AccountDB(id), nil, zap.NewNop())
		if err != nil {
			return err
		}
		events, err := adapter.Pair(ctx)
		if errors.Is(err, wa.ErrAlreadyPaired) {
			fmt.Printf("Account %s is already paired (%s).\n", id, adapter.PhoneNumber())
			return nil
		}
		if err != nil {
			return err
		}
		defer func() { _ = adapter.Disconnect(ctx) }()

		for evt := range events {
			switch evt.Type {
			case wa.PairQRCode:
				fmt.Print("\033[H\033[2J")
				fmt.Println("Scan with WhatsApp > Linked devices:")
				fmt.Println(renderQR(evt.QRCode))
			case wa.PairSuccess:
				fmt.Printf("Paired %s as %s.\n", id, adapter.PhoneNumber())
				return nil
			case wa.PairTimedOut, wa.PairFailed:
				return fmt.Errorf("pairing failed: %s", evt.Message)
			}
		}
		return ctx.Err()
	},
}

func checkWhatsAppAccount(id string) error {
	for _, ac := range loadConfig().Accounts {
		if ac.ID != id {
			continue
		}
		if p, ok := backend.ParseProtocol(ac.Protocol); !ok || p != backend.ProtocolWhatsApp {
			return fmt.Errorf("account %q is not a whatsapp account", id)
		}
		return nil
	}
	return fmt.Errorf("account %q is not configured", id)
}

// renderQR converts content to a compact QR code using Unicode half-block
// characters. Two bitmap rows become one terminal line.
func renderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}

	bitmap := qr.Bitmap()
	var sb strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		sb.WriteString("  ")
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bot := y+1 < len(bitmap) && bitmap[y+1][x]
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
