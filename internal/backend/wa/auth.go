package wa

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// PairEventType enumerates the steps of QR pairing.
type PairEventType string

const (
	PairQRCode   PairEventType = "qr_code"
	PairSuccess  PairEventType = "paired"
	PairFailed   PairEventType = "failed"
	PairTimedOut PairEventType = "timeout"
)

// PairEvent is one step of the QR pairing flow.
type PairEvent struct {
	Type    PairEventType
	QRCode  string
	Message string
}

// ErrAlreadyPaired is returned by Pair when the device is already linked.
var ErrAlreadyPaired = errors.New("already paired")

// Pair starts QR pairing and connects. The returned channel yields a QR
// code each time the phone should scan a new one and closes after the
// final success, failure or timeout event.
func (a *Adapter) Pair(ctx context.Context) (<-chan PairEvent, error) {
	if a.IsLoggedIn() {
		return nil, ErrAlreadyPaired
	}
	qrChan, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("get QR channel: %w", err)
	}

	out := make(chan PairEvent, 10)
	go func() {
		defer close(out)

		// Connect must be called after GetQRChannel.
		if err := a.client.Connect(); err != nil {
			out <- PairEvent{Type: PairFailed, Message: err.Error()}
			return
		}

		for item := range qrChan {
			switch item.Event {
			case "code":
				out <- PairEvent{Type: PairQRCode, QRCode: item.Code}
			case "success":
				a.logger.Info("device paired", zap.String("phone", a.PhoneNumber()))
				out <- PairEvent{Type: PairSuccess, Message: "paired"}
				return
			case "timeout":
				out <- PairEvent{Type: PairTimedOut, Message: "QR code timeout"}
				return
			default:
				if item.Error != nil {
					out <- PairEvent{Type: PairFailed, Message: item.Error.Error()}
					return
				}
			}
		}
	}()

	return out, nil
}
