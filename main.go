package main

import (
	"net/http"
	"os"
	"time"

	"github.com/fiffu/feedwatch/app"
	"github.com/fiffu/feedwatch/config"
	"github.com/fiffu/feedwatch/lib"
	"github.com/fiffu/feedwatch/lib/feedcache"
	"github.com/fiffu/feedwatch/lib/health"
	"github.com/fiffu/feedwatch/lib/refresher"
	"github.com/fiffu/feedwatch/lib/state"
	"github.com/fiffu/feedwatch/senders"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger() (*zap.Logger, error) {
	switch os.Getenv("ENVIRONMENT") {
	default:
		return zap.NewDevelopment()

	case "production":
		logCfg := zap.NewProductionConfig()
		logCfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			t = t.UTC()
			zapcore.ISO8601TimeEncoder(t, enc)
		}
		return logCfg.Build()
	}
}

func main() {
	fx.New(
		fx.Provide(NewLogger),
		fx.Provide(config.NewConfig),
		fx.Provide(config.NewSettings),

		fx.Provide(app.NewTransport),
		fx.Provide(senders.NewSenderRegistry),

		fx.Provide(state.NewStore),
		fx.Provide(feedcache.NewStore),
		fx.Provide(health.NewTracker),
		fx.Provide(refresher.NewRefresher),
		fx.Provide(lib.NewService),
		fx.Provide(app.NewAPI),

		fx.Invoke(func(*http.Server) {}),
	).Run()
}
