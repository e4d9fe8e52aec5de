package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagebridge/sagebridge/internal/config"
)

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List tracked conversation sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			table, cleanup, err := openSessionTable(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			snap := table.Snapshot()
			if len(snap) == 0 {
				fmt.Println("no sessions tracked")
				return nil
			}

			contexts := make([]string, 0, len(snap))
			for id := range snap {
				contexts = append(contexts, id)
			}
			sort.Strings(contexts)

			for _, id := range contexts {
				rec := snap[id]
				fmt.Printf("%s\t%s\tlast used %s\t%d resource(s)\n",
					id,
					rec.SessionID,
					time.Unix(rec.LastUsed, 0).Format(time.RFC3339),
					len(rec.ResourceIDs),
				)
			}
			return nil
		},
	}
}
