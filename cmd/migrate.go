package cmd

import (
	"chowlive/config"
	"chowlive/db"
	"chowlive/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "执行数据库迁移",
	Long:  `连接数据库并迁移全部业务模型后退出`,
	Run: func(cmd *cobra.Command, args []string) {
		logger.InitLogger(logger.DefaultConfig())

		cfg := config.Load()
		if err := db.ConnectGormDB(cfg); err != nil {
			logger.Fatal("failed to connect database", logger.ErrorField(err))
		}
		defer db.CloseGormDB()

		if err := db.AutoMigrate(); err != nil {
			logger.Fatal("failed to migrate database", logger.ErrorField(err))
		}
		logger.Info("database migration completed")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
