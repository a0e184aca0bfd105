// Package cli wires the whispr commands: chat, stats and reset.
package cli

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/JreyForFun/Whispr/internal/ui"
	"github.com/JreyForFun/Whispr/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "whispr",
	Short:   "Anonymous one-on-one chat with strangers over WebRTC",
	Long:    `Whispr pairs you with a random stranger for an anonymous text or video conversation. Messages travel peer to peer over an encrypted WebRTC data channel; the service only brokers the introduction and relays the handshake.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
