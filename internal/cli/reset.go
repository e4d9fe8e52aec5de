package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sagebridge/sagebridge/internal/assistant"
	"github.com/sagebridge/sagebridge/internal/config"
	"github.com/sagebridge/sagebridge/internal/session"
)

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <context-id>",
		Short: "Evict a conversation session and its uploaded resources",
		Long:  "Deletes the backend session mapped to the given context id (for example discord:123456) along with every resource uploaded during it, then removes the record.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contextID := args[0]

			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			table, cleanup, err := openSessionTable(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			_, ok, err := table.Get(contextID)
			if err != nil {
				return fmt.Errorf("looking up %s: %w", contextID, err)
			}
			if !ok {
				fmt.Printf("no session tracked for %s\n", contextID)
				return nil
			}

			backend := assistant.NewOpenAIClient(cfg.OpenAI, log)
			mux := session.NewMultiplexer(table, backend, 0, log)
			if err := mux.Evict(cmd.Context(), contextID); err != nil {
				return fmt.Errorf("evicting %s: %w", contextID, err)
			}

			fmt.Printf("session for %s evicted\n", contextID)
			return nil
		},
	}
}
