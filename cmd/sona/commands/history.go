package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumenkind/sona/pkg/cli"
	"github.com/lumenkind/sona/pkg/history"
)

var (
	historySession string
	historyLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Conversation history management",
	Long: `Inspect and prune stored conversation history.

History is kept per session under ~/.sona/sona/history/.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored messages, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openHistory(historySession, false)
		if err != nil {
			return err
		}
		defer closeStore()

		msgs, err := store.Recent(context.Background(), historyLimit)
		if err != nil {
			return err
		}
		return outputResult(msgs)
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all stored messages for a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openHistory(historySession, false)
		if err != nil {
			return err
		}
		defer closeStore()

		if err := store.Clear(context.Background()); err != nil {
			return err
		}
		name := historySession
		if name == "" {
			name = "default"
		}
		cli.PrintSuccess("History for session '%s' cleared", name)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the conversation as a transcript",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openHistory(historySession, false)
		if err != nil {
			return err
		}
		defer closeStore()

		msgs, err := store.Recent(context.Background(), historyLimit)
		if err != nil {
			return err
		}
		styles := cli.NewStyles(cli.DefaultTheme)
		for _, m := range msgs {
			prefix := m.Role + ">"
			if m.Role == history.RoleUser {
				prefix = styles.Prompt.Render(prefix)
			}
			fmt.Printf("%s %s\n", prefix, m.Content)
		}
		return nil
	},
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historySession, "session", "", "session id (default: the default session)")
	historyCmd.PersistentFlags().IntVarP(&historyLimit, "limit", "n", 0, "only the most recent N messages (0 = all)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)
}
