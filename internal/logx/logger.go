package logx

import (
	"os"

	"go.uber.org/zap"
)

// L is a nop until Init runs, so library code can log unconditionally.
var L = zap.NewNop()

func Init() {
	cfg := zap.NewProductionConfig()

	// Local dev readability
	if os.Getenv("ENV") != "prod" {
		cfg = zap.NewDevelopmentConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}

	L = logger
}
