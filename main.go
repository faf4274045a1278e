package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/cupogo/andvari/utils/zlog"

	"github.com/lionbot/lionbot/htdocs"
	"github.com/lionbot/lionbot/pkg/services/stores"
	"github.com/lionbot/lionbot/pkg/settings"
	"github.com/lionbot/lionbot/pkg/web"
)

func main() {
	app := &cli.App{
		Name:           "lionbot",
		Usage:          "chat proxy in front of Gemini",
		Version:        settings.Current.Version,
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the http service",
				Action: serveAction,
			},
			chatCommand(),
			{
				Name:  "usage",
				Usage: "show environment settings",
				Action: func(*cli.Context) error {
					return settings.Usage()
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		zap.S().Fatalw("run fail", "err", err)
	}
}

func setupLogger() *zap.SugaredLogger {
	var zlogger *zap.Logger
	if settings.InDevelop() {
		zlogger, _ = zap.NewDevelopment()
	} else {
		zlogger, _ = zap.NewProduction()
	}
	zap.ReplaceGlobals(zlogger)
	sugar := zlogger.Sugar()
	zlog.Set(sugar)
	return sugar
}

func serveAction(c *cli.Context) error {
	sugar := setupLogger()
	defer func() { _ = sugar.Sync() }()

	srv, err := web.New(web.Config{
		Addr:       settings.Current.HTTPListen,
		Debug:      settings.InDevelop(),
		DocHandler: htdocs.Handler(),
	})
	if err != nil {
		sugar.Infow("init server fail", "err", err)
		return err
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	if path := settings.Current.PresetFile; len(path) > 0 {
		if err := stores.WatchPreset(ctx, path, srv.SetPreset); err != nil {
			sugar.Infow("watch preset fail", "file", path, "err", err)
		}
	}

	idleClosed := make(chan struct{})
	go func() {
		quit := make(chan os.Signal, 2)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		sugar.Info("shuting down server...")
		if err := srv.Stop(context.Background()); err != nil {
			sugar.Infow("server shutdown:", "err", err)
		}
		cancel()
		close(idleClosed)
	}()

	err = srv.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		sugar.Infow("serve fail", "err", err)
		return err
	}

	<-idleClosed
	stores.Sgt().Close()
	return nil
}
