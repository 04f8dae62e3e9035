package cmd

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-core/config"
	"github.com/yeremiapane/restaurant-core/utils"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "restaurant-core",
	Short: "Order fulfillment and recipe-cost engine",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.LoadEnv()
		utils.InitLogger()
		if err := cfg.Validate(); err != nil {
			return err
		}
		if cfg.JWT.DevSecret {
			utils.ErrorLogger.Warn("JWT_SECRET is not set, using the development secret")
		}
		utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.Issuer)
		if cfg.Server.GinMode == "release" {
			gin.SetMode(gin.ReleaseMode)
		}
		return nil
	},
}

// Execute runs the root command. Defaults to serve when no subcommand is given.
func Execute() {
	if len(os.Args) == 1 {
		rootCmd.SetArgs([]string{"serve"})
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDB() (*gorm.DB, error) {
	db, err := config.InitDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect %s database: %w", cfg.Database.Driver, err)
	}
	return db, nil
}
