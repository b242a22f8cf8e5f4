package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uovfts/faculty-assistant/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if err := db.Migrate(cfg.URL(), logger); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		fmt.Println("Database schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
