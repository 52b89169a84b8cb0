package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groblegark/auditstore/internal/repository"
)

var (
	removeAll         bool
	removeFilterFlags filterFlags
)

var removeCmd = &cobra.Command{
	Use:     "remove [id]",
	Short:   "Remove events by ID, by filter, or all at once",
	GroupID: "events",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repo, err := activeRepo(ctx)
		if err != nil {
			return err
		}

		if removeAll {
			remover, ok := repo.(repository.AllRemover)
			if !ok {
				return fmt.Errorf("%s: %w", repo.Name(), repository.ErrNotSupported)
			}
			return printResult(remover.RemoveAllEvents(ctx))
		}

		if len(args) == 1 {
			remover, ok := repo.(repository.SingleRemover)
			if !ok {
				return fmt.Errorf("%s: %w", repo.Name(), repository.ErrNotSupported)
			}
			return printResult(remover.RemoveEvent(ctx, args[0]))
		}

		filter, err := removeFilterFlags.build()
		if err != nil {
			return err
		}
		if filter.IsEmpty() {
			return fmt.Errorf("refusing to remove without an ID, filter, or --all")
		}
		remover, ok := repo.(repository.FilteredRemover)
		if !ok {
			return fmt.Errorf("%s: %w", repo.Name(), repository.ErrNotSupported)
		}
		return printResult(remover.RemoveEvents(ctx, filter))
	},
}

func init() {
	removeCmd.Flags().BoolVar(&removeAll, "all", false, "remove every stored event")
	removeFilterFlags.register(removeCmd)
}
