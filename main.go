package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tournevent/daobooking/internal/event"
	"github.com/tournevent/daobooking/internal/server"
	"github.com/tournevent/daobooking/pkg/carrier/dao"
	"github.com/tournevent/daobooking/pkg/ims"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "daobooking",
	Short:   "DAO carrier booking for Thetis IMS shipments",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve booking events over HTTP and the enabled message queues",
	RunE:  runServe,
}

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Run a single booking request and print the result",
	RunE:  runBook,
}

var installCarrierCmd = &cobra.Command{
	Use:   "install-carrier",
	Short: "Create the DAO carrier record in IMS unless it exists",
	RunE:  runInstallCarrier,
}

var bookFlags event.BookingRequest

func init() {
	bookCmd.Flags().Int64Var(&bookFlags.DocumentID, "document", 0, "document id")
	bookCmd.Flags().Int64Var(&bookFlags.ShipmentID, "shipment", 0, "shipment id")
	bookCmd.Flags().Int64Var(&bookFlags.EventID, "event", 0, "event id")
	bookCmd.Flags().StringVar(&bookFlags.DeviceName, "device", "", "device name for event messages")
	bookCmd.Flags().StringVar(&bookFlags.UserID, "user", "", "user id for event messages")
	_ = bookCmd.MarkFlagRequired("document")
	_ = bookCmd.MarkFlagRequired("shipment")
	_ = bookCmd.MarkFlagRequired("event")

	rootCmd.AddCommand(serveCmd, bookCmd, installCarrierCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(context.Background())
	}

	reg, metrics := initMetrics()
	handler := initHandler(cfg, metrics, logger)

	logger.Info("Starting DAO booking service",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.Bool("kafka", cfg.KafkaEnabled),
		zap.Bool("amqp", cfg.AMQPEnabled),
	)

	g, ctx := errgroup.WithContext(ctx)

	srv := server.New(server.Config{Port: cfg.Port}, handler, reg, logger)
	g.Go(func() error {
		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if cfg.KafkaEnabled {
		consumer := event.NewKafkaConsumer(event.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
		}, handler, logger)
		g.Go(func() error { return consumer.Run(ctx) })
	}

	if cfg.AMQPEnabled {
		consumer := event.NewAMQPConsumer(event.AMQPConfig{
			URL:      cfg.AMQPURL,
			Queue:    cfg.AMQPQueue,
			Prefetch: cfg.AMQPPrefetch,
		}, handler, logger)
		g.Go(func() error { return consumer.Run(ctx) })
	}

	return g.Wait()
}

func runBook(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	_, metrics := initMetrics()
	handler := initHandler(cfg, metrics, logger)

	outcome, err := handler.Handle(ctx, event.SourceCLI, bookFlags)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(outcome)
}

func runInstallCarrier(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	setup := ims.CarrierSetup{
		CustomerID: cfg.DAOCustomerID,
		Code:       cfg.DAOCode,
		SenderID:   cfg.DAOSenderID,
		Paper:      cfg.DAOPaper,
		Test:       cfg.DAOTest,
	}
	if err := setup.Validate(); err != nil {
		return err
	}

	created, err := ims.InstallCarrier(ctx, initIMSClient(cfg, logger), cfg.DAOCarrierName, dao.SetupKey, setup)
	if err != nil {
		return err
	}

	if created {
		logger.Info("Carrier installed", zap.String("carrier", cfg.DAOCarrierName))
	} else {
		logger.Info("Carrier already installed", zap.String("carrier", cfg.DAOCarrierName))
	}
	return nil
}
