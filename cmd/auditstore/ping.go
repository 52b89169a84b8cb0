package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groblegark/auditstore/internal/ui"
)

var pingCmd = &cobra.Command{
	Use:     "ping",
	Short:   "Check connectivity of the active backend",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repo, err := activeRepo(ctx)
		if err != nil {
			return err
		}

		up := repo.TestConnection(ctx)
		status := "unreachable"
		if up {
			status = "ok"
		}
		if jsonOutput {
			if err := printJSON(map[string]any{"repository": repo.Name(), "reachable": up}); err != nil {
				return err
			}
		} else {
			fmt.Printf("%s %s\n", repo.Name(), ui.RenderStatus(status, up))
		}
		if !up {
			return fmt.Errorf("repository %s is unreachable", repo.Name())
		}
		return nil
	},
}
