package main

import (
	"github.com/JreyForFun/Whispr/internal/cli"
	"github.com/JreyForFun/Whispr/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cli.Execute()
}
