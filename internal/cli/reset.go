package cli

import (
	"github.com/spf13/cobra"

	"github.com/JreyForFun/Whispr/internal/session"
	"github.com/JreyForFun/Whispr/internal/ui"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the local anonymous identity",
	Long:  `Forget the locally stored anonymous session. The next chat starts with a brand-new identity and asks for consent again.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session.NewStore(session.DefaultPath()).Reset()
		ui.PrintSuccess("Session forgotten")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
