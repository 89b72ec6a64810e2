package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"github.com/eringen/esasync"
)

var errNoStore = errors.New("author commands need the sqlite target (ESASYNC_TARGET=sqlite)")

func (c *cli) authorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "author",
		Short: "Manage the authors of the sqlite mirror",
		Long: `Register esa users as authors of the sqlite mirror. Posts by users that
are not registered are mirrored under the fallback author and stay
unpublished.`,
	}
	cmd.AddCommand(c.authorAddCmd())
	cmd.AddCommand(c.authorListCmd())
	return cmd
}

func (c *cli) storeApp(cmd *cobra.Command) (*esasync.App, error) {
	app, err := c.newApp(cmd, log.WARN)
	if err != nil {
		return nil, err
	}
	if app.Store == nil {
		app.Close()
		return nil, errNoStore
	}
	return app, nil
}

func (c *cli) authorAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an esa user as an author",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			username, _ := cmd.Flags().GetString("esa-username")

			app, err := c.storeApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			author, err := app.Store.UpsertAuthor(cmd.Context(), name, username)
			if err != nil {
				return fmt.Errorf("failed to save author: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Saved author %s (@%s) as %s\n", okMark(), author.Name, author.EsaUsername, author.ID)
			return nil
		},
	}
	cmd.Flags().String("name", "", "display name of the author")
	cmd.Flags().String("esa-username", "", "esa screen name, with or without @")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("esa-username")
	return cmd
}

func (c *cli) authorListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered authors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.storeApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			authors, err := app.Store.ListAuthors(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list authors: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Found %d author(s):\n\n", len(authors))
			for _, a := range authors {
				if a.EsaUsername == "" {
					fmt.Fprintf(out, "  %s %s\n", a.Name, color.New(color.Faint).Sprint("(fallback)"))
					continue
				}
				fmt.Fprintf(out, "  %s @%s\n", a.Name, a.EsaUsername)
			}
			return nil
		},
	}
}
