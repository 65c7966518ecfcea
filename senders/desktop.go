package senders

import (
	"context"

	"github.com/gen2brain/beeep"
)

type desktopSender struct {
	base
}

func (d *desktopSender) Send(ctx context.Context, summary, body string) error {
	return beeep.Notify(summary, body, "")
}
