package main

import (
	"PetCare/internal/api/config"
	"PetCare/internal/pkg/logger"
	"PetCare/internal/wire"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

func main() {
	if err := config.LoadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger.InitLogger()

	app, err := wire.InitApp()
	if err != nil {
		log.Error("应用装配失败", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Cfg.Server.Port),
		Handler: app.Router,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		log.Info("HTTP 服务启动", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		app.Cron.Start()
		<-ctx.Done()
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("收到退出信号，开始优雅关闭")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP 服务关闭失败", "err", err)
		}

		app.Cron.Stop()
		app.ChatSvc.Close()
		app.NotifySvc.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("服务异常退出", "err", err)
		os.Exit(1)
	}
	log.Info("服务已退出")
}
