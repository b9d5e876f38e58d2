package main

import (
	"chowlive/cmd"
	"chowlive/logger"
)

func main() {
	cmd.Execute()
	logger.Sync()
}
