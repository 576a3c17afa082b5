package main

import (
	"bufio"
	"fmt"
	"text/tabwriter"

	"github.com/MarcoPoloResearchLab/notebook/internal/dictation"
	"github.com/MarcoPoloResearchLab/notebook/internal/editor"
	"github.com/MarcoPoloResearchLab/notebook/internal/notebook"
	"github.com/MarcoPoloResearchLab/notebook/internal/notify"
	"github.com/spf13/cobra"
)

const timestampLayout = "2006-01-02 15:04:05"

func (a *cli) newNotesCommand() *cobra.Command {
	notesCmd := &cobra.Command{
		Use:   "notes",
		Short: "List, edit and search notes",
	}
	notesCmd.AddCommand(
		a.newNotesListCommand(),
		a.newNotesCreateCommand(),
		a.newNotesShowCommand(),
		a.newNotesEditCommand(),
		a.newNotesDictateCommand(),
		a.newNotesDeleteCommand(),
		a.newNotesSearchCommand(),
	)
	return notesCmd
}

func (a *cli) newNotesListCommand() *cobra.Command {
	var tabFlag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes of a tab (the active tab by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), cmd.OutOrStdout(), func(rt *runtime) error {
				tabID := notebook.TabID(tabFlag)
				if tabID == "" {
					tabID = rt.engine.Selection().ActiveTabID
				}
				if _, ok := rt.engine.Tab(tabID); !ok {
					return fmt.Errorf("%w: %s", notebook.ErrTabNotFound, tabID)
				}
				return printNotes(rt, rt.engine.NotesByTab(tabID))
			})
		},
	}
	cmd.Flags().StringVar(&tabFlag, "tab", "", "Tab id")
	return cmd
}

func (a *cli) newNotesCreateCommand() *cobra.Command {
	var tabFlag, titleFlag string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a note and open it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), cmd.OutOrStdout(), func(rt *runtime) error {
				id, err := rt.engine.CreateNote(cmd.Context(), notebook.TabID(tabFlag), titleFlag)
				if err != nil {
					return err
				}
				fmt.Fprintln(rt.out, id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&tabFlag, "tab", "", "Tab id (defaults to the active tab)")
	cmd.Flags().StringVar(&titleFlag, "title", "", "Note title")
	return cmd
}

func (a *cli) newNotesShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := notebook.NewNoteID(args[0])
			if err != nil {
				return err
			}
			return a.withRuntime(cmd.Context(), cmd.OutOrStdout(), func(rt *runtime) error {
				note, ok := rt.engine.Note(id)
				if !ok {
					return fmt.Errorf("%w: %s", notebook.ErrNoteNotFound, id)
				}
				fmt.Fprintf(rt.out, "# %s\n\n%s\n", note.Title, note.Content)
				return nil
			})
		},
	}
}

func (a *cli) newNotesEditCommand() *cobra.Command {
	var titleFlag, contentFlag string
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Open a note and replace its title or content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := notebook.NewNoteID(args[0])
			if err != nil {
				return err
			}
			titleChanged := cmd.Flags().Changed("title")
			contentChanged := cmd.Flags().Changed("content")
			if !titleChanged && !contentChanged {
				return fmt.Errorf("nothing to edit: pass --title or --content")
			}
			return a.withRuntime(cmd.Context(), cmd.OutOrStdout(), func(rt *runtime) error {
				session, err := openSession(cmd, rt, id, nil)
				if err != nil {
					return err
				}
				defer session.Close() //nolint:errcheck
				if titleChanged {
					if err := session.SetTitle(titleFlag); err != nil {
						return err
					}
				}
				if contentChanged {
					if err := session.SetContent(contentFlag); err != nil {
						return err
					}
				}
				return session.Save(cmd.Context())
			})
		},
	}
	cmd.Flags().StringVar(&titleFlag, "title", "", "New title")
	cmd.Flags().StringVar(&contentFlag, "content", "", "New content")
	return cmd
}

func (a *cli) newNotesDictateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dictate ID",
		Short: "Append transcript lines read from stdin to a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := notebook.NewNoteID(args[0])
			if err != nil {
				return err
			}
			return a.withRuntime(cmd.Context(), cmd.OutOrStdout(), func(rt *runtime) error {
				recognizer := dictation.NewScripted()
				session, err := openSession(cmd, rt, id, recognizer)
				if err != nil {
					return err
				}
				defer session.Close() //nolint:errcheck
				if err := session.StartDictation(); err != nil {
					return err
				}
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					if err := recognizer.Emit(dictation.Result{Transcript: scanner.Text(), Final: true}); err != nil {
						return err
					}
				}
				if err := scanner.Err(); err != nil {
					return err
				}
				if err := session.StopDictation(); err != nil {
					return err
				}
				if err := session.Save(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(rt.out, session.Content())
				return nil
			})
		},
	}
}

func (a *cli) newNotesDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := notebook.NewNoteID(args[0])
			if err != nil {
				return err
			}
			return a.withRuntime(cmd.Context(), cmd.OutOrStdout(), func(rt *runtime) error {
				deleted, err := rt.engine.DeleteNote(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("%w: %s", notebook.ErrNoteNotFound, id)
				}
				return nil
			})
		},
	}
}

func (a *cli) newNotesSearchCommand() *cobra.Command {
	var tabFlag string
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Fuzzy search note titles and content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), cmd.OutOrStdout(), func(rt *runtime) error {
				return printNotes(rt, rt.engine.SearchNotes(args[0], notebook.TabID(tabFlag)))
			})
		},
	}
	cmd.Flags().StringVar(&tabFlag, "tab", "", "Restrict the search to one tab")
	return cmd
}

// openSession makes id the active note and opens an editor session on it.
func openSession(cmd *cobra.Command, rt *runtime, id notebook.NoteID, recognizer dictation.Recognizer) (*editor.Session, error) {
	if err := rt.engine.SelectNote(cmd.Context(), id); err != nil {
		return nil, err
	}
	session, err := editor.NewSession(editor.Config{
		Source:        rt.engine,
		AutosaveDelay: rt.config.AutosaveDelay,
		Recognizer:    recognizer,
		Notifier:      notify.NewLogNotifier(rt.logger),
		Logger:        rt.logger,
	})
	if err != nil {
		return nil, err
	}
	session.Refresh()
	return session, nil
}

func printNotes(rt *runtime, notes []notebook.Note) error {
	active := rt.engine.Selection().ActiveNoteID
	writer := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "\tID\tTITLE\tUPDATED")
	for _, note := range notes {
		marker := ""
		if note.ID == active {
			marker = "*"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", marker, note.ID, note.Title, note.UpdatedAt.Local().Format(timestampLayout))
	}
	return writer.Flush()
}
