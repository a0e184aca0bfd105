package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JreyForFun/Whispr/internal/backend"
	"github.com/JreyForFun/Whispr/internal/config"
	"github.com/JreyForFun/Whispr/internal/media"
	"github.com/JreyForFun/Whispr/internal/pairing"
	"github.com/JreyForFun/Whispr/internal/peer"
	"github.com/JreyForFun/Whispr/internal/session"
	"github.com/JreyForFun/Whispr/internal/ui"
)

var (
	flagChatDomain   string
	flagChatSTUN     string
	flagChatTURN     string
	flagChatTURNUser string
	flagChatTURNPass string
	flagChatVideo    bool
	flagChatInsecure bool
)

var chatCmd = &cobra.Command{
	Use:     "chat",
	Aliases: []string{"c"},
	Short:   "Find a stranger and start chatting",
	Long: `Find a random stranger and start an anonymous conversation.

Examples:
  whispr chat
  whispr chat --video
  whispr chat --domain my.whispr.host --insecure`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

func runChat() error {
	cfg, err := config.Load(config.Options{
		Domain:     flagChatDomain,
		STUNServer: flagChatSTUN,
		TURNServer: flagChatTURN,
		TURNUser:   flagChatTURNUser,
		TURNPass:   flagChatTURNPass,
		Insecure:   flagChatInsecure,
	})
	if err != nil {
		return err
	}

	store := session.NewStore(session.DefaultPath())
	if _, err := store.Current(); err != nil {
		if !ui.PromptConsent() {
			return fmt.Errorf("cannot continue without consent")
		}
		store.Consent()
	}

	provider := media.None()
	if flagChatVideo {
		provider = media.Placeholder()
	}

	controller := pairing.NewController(pairing.Deps{
		Config:  cfg,
		Session: store,
		Backend: backend.NewClient(cfg.APIBaseURL),
		Media:   provider,
		Dial:    pairing.DefaultDialer(cfg.WebSocketURL),
		NewConn: func() (peer.Conn, error) { return peer.NewConn(cfg) },
	})

	return ui.RunChat(controller, flagChatVideo)
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVar(&flagChatDomain, "domain", "", "Custom server domain")
	chatCmd.Flags().StringVarP(&flagChatSTUN, "stun", "s", "", "Custom STUN server")
	chatCmd.Flags().StringVarP(&flagChatTURN, "turn", "t", "", "Custom TURN server")
	chatCmd.Flags().StringVar(&flagChatTURNUser, "turn-user", "", "TURN username")
	chatCmd.Flags().StringVar(&flagChatTURNPass, "turn-pass", "", "TURN password")
	chatCmd.Flags().BoolVarP(&flagChatVideo, "video", "v", false, "Search for a video conversation")
	chatCmd.Flags().BoolVar(&flagChatInsecure, "insecure", false, "Use http/ws instead of https/wss")
}
