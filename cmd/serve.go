package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/msgpilot/msgpilot/delivery"
	"github.com/msgpilot/msgpilot/engine"
	"github.com/msgpilot/msgpilot/logger"
	"github.com/msgpilot/msgpilot/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the assistant API server and the delivery worker",
	Long: `Start msgpilot as a long-running service. This serves the HTTP API and
runs the background worker that executes due scheduled messages.

Examples:
  msgpilot serve
  msgpilot serve --addr 0.0.0.0:3009
  msgpilot serve --no-worker`,
	RunE: runServe,
}

var (
	serveAddr     string
	serveNoWorker bool
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
	serveCmd.Flags().BoolVar(&serveNoWorker, "no-worker", false, "Do not start the delivery worker")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	worker := delivery.NewWorker(a.deliveries, a.bridge,
		delivery.WithInterval(a.pollInterval()))
	if !serveNoWorker {
		worker.Start()
		defer worker.Stop()
	}

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.Server.Addr
	}
	srv := server.New(server.Options{
		Addr:          addr,
		Engine:        a.engine,
		Rewriter:      engine.NewRewriter(a.provider),
		Conversations: a.conversations,
		Deliveries:    a.deliveries,
		Worker:        worker,
		Bridge:        a.bridge,
		Settings:      a.settings,
	})
	if err := srv.Start(); err != nil {
		return err
	}

	logger.Info("msgpilot is running. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	if err := srv.Stop(); err != nil {
		logger.Error("error stopping server", "error", err)
	}
	return nil
}
