package main

import (
	"github.com/MarcoPoloResearchLab/notebook/internal/notebook"
	"github.com/spf13/cobra"
)

func (a *cli) newSelectCommand() *cobra.Command {
	selectCmd := &cobra.Command{
		Use:   "select",
		Short: "Change the active tab or note",
	}

	selectCmd.AddCommand(&cobra.Command{
		Use:   "tab ID",
		Short: "Make a tab active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := notebook.NewTabID(args[0])
			if err != nil {
				return err
			}
			return a.withRuntime(cmd.Context(), cmd.OutOrStdout(), func(rt *runtime) error {
				return rt.engine.SelectTab(cmd.Context(), id)
			})
		},
	})

	var clearFlag bool
	noteCmd := &cobra.Command{
		Use:   "note [ID]",
		Short: "Open a note, or close the open note with --none",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id notebook.NoteID
			if !clearFlag {
				if len(args) == 0 {
					return cmd.Usage()
				}
				parsed, err := notebook.NewNoteID(args[0])
				if err != nil {
					return err
				}
				id = parsed
			}
			return a.withRuntime(cmd.Context(), cmd.OutOrStdout(), func(rt *runtime) error {
				return rt.engine.SelectNote(cmd.Context(), id)
			})
		},
	}
	noteCmd.Flags().BoolVar(&clearFlag, "none", false, "Close the open note")
	selectCmd.AddCommand(noteCmd)

	return selectCmd
}
