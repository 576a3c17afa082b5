package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/MarcoPoloResearchLab/notebook/internal/notebook"
	"github.com/spf13/cobra"
)

func (a *cli) newTabsCommand() *cobra.Command {
	tabsCmd := &cobra.Command{
		Use:   "tabs",
		Short: "List and manage tabs",
	}

	tabsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tabs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), cmd.OutOrStdout(), func(rt *runtime) error {
				active := rt.engine.Selection().ActiveTabID
				writer := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(writer, "\tID\tNAME\tNOTES")
				for _, tab := range rt.engine.Tabs() {
					marker := ""
					if tab.ID == active {
						marker = "*"
					}
					fmt.Fprintf(writer, "%s\t%s\t%s\t%d\n", marker, tab.ID, tab.Name, len(rt.engine.NotesByTab(tab.ID)))
				}
				return writer.Flush()
			})
		},
	})

	tabsCmd.AddCommand(&cobra.Command{
		Use:   "create NAME",
		Short: "Create a tab and make it active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), cmd.OutOrStdout(), func(rt *runtime) error {
				tab, err := rt.engine.CreateTab(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(rt.out, tab.ID)
				return nil
			})
		},
	})

	tabsCmd.AddCommand(&cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a tab",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := notebook.NewTabID(args[0])
			if err != nil {
				return err
			}
			return a.withRuntime(cmd.Context(), cmd.OutOrStdout(), func(rt *runtime) error {
				renamed, err := rt.engine.RenameTab(cmd.Context(), id, args[1])
				if err != nil {
					return err
				}
				if !renamed {
					if _, ok := rt.engine.Tab(id); !ok {
						return fmt.Errorf("%w: %s", notebook.ErrTabNotFound, id)
					}
				}
				return nil
			})
		},
	})

	tabsCmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a tab and every note in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := notebook.NewTabID(args[0])
			if err != nil {
				return err
			}
			return a.withRuntime(cmd.Context(), cmd.OutOrStdout(), func(rt *runtime) error {
				deleted, err := rt.engine.DeleteTab(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("%w: %s", notebook.ErrTabNotFound, id)
				}
				return nil
			})
		},
	})

	return tabsCmd
}
