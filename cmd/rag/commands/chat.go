package commands

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"manualrag/internal/tui"
)

var chatLang string

// NewChatCmd creates the chat command.
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive question screen",
		Long: `Open a terminal screen for asking questions. Enter sends the question,
ctrl+l switches between English and Swedish, up and down page through the
retrieved sections and ctrl+c quits.`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}
	cmd.Flags().StringVar(&chatLang, "lang", "", "Initial answer language: en or sv (default from config)")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.service(cmd.Context())
	if err != nil {
		return err
	}
	p := tea.NewProgram(tui.New(cmd.Context(), svc, a.language(chatLang)), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
