package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joseph-ayodele/artists-registry/internal/app"
	"github.com/joseph-ayodele/artists-registry/internal/common"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		common.NewLogger(app.ServiceName, common.LogConfig{}).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := common.NewLogger(app.ServiceName, cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Serve(ctx, cfg, logger); err != nil {
		logger.Error("artistsd exited", "error", err)
		os.Exit(1)
	}
}
