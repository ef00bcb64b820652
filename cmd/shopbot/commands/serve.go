package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/liliang-cn/shopbot/internal/api"
	"github.com/liliang-cn/shopbot/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP chat API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, "")
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	chatService := a.chatService()

	sweeper := service.NewSweeper(a.sessions, a.cfg.Session.SweepInterval, a.cfg.Session.MaxAge, logger)
	go sweeper.Run(ctx)

	router := api.SetupRouter(chatService, api.RouterConfig{
		AllowOrigins:     a.cfg.Server.AllowOrigins,
		MaxRequestLength: a.cfg.Server.MaxRequestLength,
	}, logger)

	srv := &http.Server{
		Addr:         a.cfg.Address(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * a.cfg.LLM.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting shopbot server",
			zap.String("address", a.cfg.Address()),
			zap.String("index", a.cfg.Index.Provider),
			zap.String("llm_model", a.cfg.LLM.LLMModel),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Failed to start server", zap.Error(err))
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server exited")
	return nil
}
