// Package senders delivers new-article notifications. Delivery is
// fire-and-forget: a sink that fails is logged and skipped.
package senders

import (
	"context"
	"net/http"

	"github.com/fiffu/feedwatch/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Sender interface {
	Send(ctx context.Context, summary, body string) error
}

type Registry map[string]Sender

func NewSenderRegistry(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, transport http.RoundTripper) Registry {
	base := base{log, cfg, transport}

	reg := Registry{
		"desktop": &desktopSender{base},
	}
	if cfg.MailgunEnabled() {
		reg["email"] = &mailgunSender{base}
	} else {
		log.Sugar().Info("Email notifications disabled; no mailgun credentials configured")
	}
	return reg
}

type base struct {
	log       *zap.Logger
	cfg       *config.Config
	transport http.RoundTripper
}
