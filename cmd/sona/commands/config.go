package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumenkind/sona/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage sona CLI configuration.

Configuration is stored in ~/.sona/sona/config.yaml.
Multiple contexts can be defined for different servers or identities.`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context pointing at a session endpoint.

Examples:
  sona config add-context prod --endpoint wss://host/session --user u-1
  sona config add-context dev --endpoint ws://localhost:8080/session --concierge atlas --mode text`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		endpoint, _ := cmd.Flags().GetString("endpoint")
		apiKey, _ := cmd.Flags().GetString("api-key")
		concierge, _ := cmd.Flags().GetString("concierge")
		userID, _ := cmd.Flags().GetString("user")
		mode, _ := cmd.Flags().GetString("mode")

		if endpoint == "" {
			return fmt.Errorf("endpoint is required")
		}

		ctx := &cli.Context{
			Name:          name,
			Endpoint:      endpoint,
			APIKey:        apiKey,
			ConciergeName: concierge,
			UserID:        userID,
			Mode:          mode,
		}

		cfg := getConfig()
		if err := cfg.AddContext(name, ctx); err != nil {
			return err
		}

		cli.PrintSuccess("Context '%s' added successfully", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		cfg := getConfig()
		if err := cfg.DeleteContext(name); err != nil {
			return err
		}
		cli.PrintSuccess("Context '%s' deleted", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the default context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		cfg := getConfig()
		if err := cfg.UseContext(name); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context '%s'", name)
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Show the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		if cfg.CurrentContext == "" {
			fmt.Println("No current context set")
			return nil
		}
		ctx, err := cfg.GetCurrentContext()
		if err != nil {
			return err
		}
		return outputResult(contextView(ctx))
	},
}

var configListContextsCmd = &cobra.Command{
	Use:   "list-contexts",
	Short: "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		names := cfg.ListContexts()
		if len(names) == 0 {
			fmt.Println("No contexts defined")
			return nil
		}
		for _, name := range names {
			marker := " "
			if name == cfg.CurrentContext {
				marker = "*"
			}
			ctx, _ := cfg.GetContext(name)
			fmt.Printf("%s %-16s %s\n", marker, name, ctx.Endpoint)
		}
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view [name]",
	Short: "Show a context's configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		ctx, err := getConfig().ResolveContext(name)
		if err != nil {
			return err
		}
		return outputResult(contextView(ctx))
	},
}

// contextView is the display shape of a context, with the API key masked.
func contextView(ctx *cli.Context) map[string]any {
	view := map[string]any{
		"name":     ctx.Name,
		"endpoint": ctx.Endpoint,
	}
	if ctx.APIKey != "" {
		view["api_key"] = cli.MaskAPIKey(ctx.APIKey)
	}
	if ctx.ConciergeName != "" {
		view["concierge_name"] = ctx.ConciergeName
	}
	if ctx.UserID != "" {
		view["user_id"] = ctx.UserID
	}
	if ctx.Mode != "" {
		view["mode"] = ctx.Mode
	}
	if ctx.HistoryDepth != 0 {
		view["history_depth"] = ctx.HistoryDepth
	}
	if ctx.MaxReconnects != 0 {
		view["max_reconnects"] = ctx.MaxReconnects
	}
	if ctx.KeepAliveSeconds != 0 {
		view["keep_alive_seconds"] = ctx.KeepAliveSeconds
	}
	return view
}

func init() {
	configAddContextCmd.Flags().String("endpoint", "", "session websocket endpoint (required)")
	configAddContextCmd.Flags().String("api-key", "", "API key for authentication")
	configAddContextCmd.Flags().String("concierge", "", "concierge name queries address")
	configAddContextCmd.Flags().String("user", "", "user id carried in query metadata")
	configAddContextCmd.Flags().String("mode", "", "interaction mode (voice or text)")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
