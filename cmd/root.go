package cmd

import (
	"context"
	"fmt"
	"os"

	"greenexchange/services"
	"greenexchange/store"
	"greenexchange/utils"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	envFile string
	debug   bool

	rootCmd = &cobra.Command{
		Use:           "greenexchange",
		Short:         "GreenExchange tree marketplace",
		Long:          "GreenExchange lists planted trees, lets users buy them for a certificate and resell them.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to the .env file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app is the wiring shared by every subcommand.
type app struct {
	cfg     *utils.Config
	logger  *zap.Logger
	client  *mongo.Client
	store   *store.MongoStore
	mailer  utils.Mailer
	metrics *utils.Metrics
	auth    *services.AuthService
	trees   *services.TreeService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, envLoaded := utils.LoadConfig(envFile)
	logger, err := utils.NewLogger(cfg.LogLevel, debug)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	if !envLoaded {
		logger.Info("no .env file found, using environment variables", zap.String("env_file", envFile))
	}

	mailer, err := utils.NewMailer(cfg)
	if err != nil {
		return nil, err
	}

	client, err := utils.ConnectDB(ctx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	st := store.NewMongoStore(client, cfg.MongoDB, cfg.MongoTx)

	metrics := utils.NewMetrics()
	a := &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		store:   st,
		mailer:  mailer,
		metrics: metrics,
		auth: services.NewAuthService(st, utils.NewTokenSigner(cfg.SessionSecret), mailer, metrics, logger, services.AuthOptions{
			BcryptCost: cfg.BcryptCost,
			SessionTTL: cfg.SessionTTL,
			BaseURL:    cfg.BaseURL,
		}),
		trees: services.NewTreeService(st, mailer, metrics, logger, cfg.BaseURL),
	}
	logger.Debug("connected to mongo", zap.String("db", cfg.MongoDB), zap.Bool("transactions", cfg.MongoTx))
	return a, nil
}

func (a *app) close() {
	if err := a.client.Disconnect(context.Background()); err != nil {
		a.logger.Warn("mongo disconnect failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}
