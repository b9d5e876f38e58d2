package cmd

import (
	"chowlive/logger"
	"chowlive/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 Chowlive 服务器",
	Long:  `启动共享听歌房间服务，提供房间管理、队列权威和播放同步能力`,
	Run: func(cmd *cobra.Command, args []string) {
		logger.InitLogger(logger.DefaultConfig())
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
