package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"greenexchange/controllers"
	"greenexchange/middleware"
	"greenexchange/routes"
	"greenexchange/views"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.UsingDefaultKey {
		a.logger.Warn("SESSION_SECRET is not set, using the built-in default key")
	}
	if err := a.store.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := os.MkdirAll(a.cfg.UploadDir, 0o755); err != nil {
		return err
	}

	renderer, err := views.New()
	if err != nil {
		return err
	}

	cookie := controllers.CookieOptions{
		Name:   a.cfg.SessionCookie,
		Secure: strings.HasPrefix(a.cfg.BaseURL, "https:"),
	}
	userController := controllers.NewUserController(a.auth, a.trees, renderer, a.logger, cookie, a.cfg.DBTimeout)
	treeController := controllers.NewTreeController(a.trees, renderer, a.logger, a.cfg.UploadDir, a.cfg.MaxUploadBytes, a.cfg.DBTimeout)
	certificateController := controllers.NewCertificateController(a.trees, a.logger, a.cfg.DBTimeout)
	pageController := controllers.NewPageController(a.trees, renderer, a.logger, a.cfg.DBTimeout)

	router := mux.NewRouter()
	routes.RegisterRoutes(router, userController, treeController, certificateController, pageController, a.cfg.UploadDir, a.metrics)
	router.Use(middleware.SessionMiddleware(a.auth, a.cfg.SessionCookie, a.logger))
	router.Use(middleware.RequestLogger(a.logger, a.metrics))

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server is running", zap.String("port", a.cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
