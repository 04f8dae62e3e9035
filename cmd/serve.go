package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yeremiapane/restaurant-core/models"
	"github.com/yeremiapane/restaurant-core/router"
	"github.com/yeremiapane/restaurant-core/services"
	"github.com/yeremiapane/restaurant-core/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, KDS websocket and stock monitor",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		if err := models.AutoMigrate(db); err != nil {
			return err
		}
		utils.InfoLogger.Println("AutoMigrate completed.")

		if cfg.Monitor.Enabled {
			monitor := services.NewStockMonitor(db, cfg.Monitor.StockSweepSchedule)
			if err := monitor.Start(); err != nil {
				return err
			}
			defer monitor.Stop()
		}

		r := router.SetupRouter(db, cfg)

		srv := &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			utils.InfoLogger.Printf("Listening on port %s", cfg.Server.Port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		utils.InfoLogger.Println("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
