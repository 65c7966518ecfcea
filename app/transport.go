package app

import (
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewTransport(lc fx.Lifecycle, log *zap.Logger) http.RoundTripper {
	return &transport{base: http.DefaultTransport, log: log}
}

type transport struct {
	base http.RoundTripper
	log  *zap.Logger
}

func (tpt *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	started := time.Now()
	res, err := tpt.base.RoundTrip(req)

	fields := []any{
		"method", req.Method,
		"url", req.URL.String(),
		"elapsed_msecs", int(time.Since(started).Milliseconds()),
	}
	if err != nil {
		tpt.log.Sugar().Debugw("Outbound request failed", append(fields, "err", err)...)
		return res, err
	}

	tpt.log.Sugar().Debugw("Outbound request", append(fields, "status", res.StatusCode)...)
	return res, nil
}
