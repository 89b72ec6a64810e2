package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"github.com/eringen/esasync/postsync"
)

func okMark() string { return color.New(color.FgGreen).Sprint("✓") }
func failMark() string { return color.New(color.FgRed).Sprint("✗") }

func actionColor(a postsync.Action) *color.Color {
	switch a {
	case postsync.ActionCreated:
		return color.New(color.FgGreen)
	case postsync.ActionUpdated:
		return color.New(color.FgCyan)
	case postsync.ActionDeleted:
		return color.New(color.FgYellow)
	default:
		return color.New(color.Faint)
	}
}

func printResult(w io.Writer, res postsync.Result) {
	fmt.Fprintf(w, "%s #%d %s", okMark(), res.Number, actionColor(res.Action).Sprint(res.Action))
	if res.Publication != postsync.PublicationUnchanged {
		fmt.Fprintf(w, ", %s", res.Publication)
	}
	if res.Deployed {
		fmt.Fprint(w, ", deployed")
	}
	fmt.Fprintln(w)
}

func parsePostNumbers(args []string) ([]int, error) {
	numbers := make([]int, 0, len(args))
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid post number %q", arg)
		}
		numbers = append(numbers, n)
	}
	return numbers, nil
}

func (c *cli) syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <number>...",
		Short: "Sync esa posts by number",
		Long: `Sync the given esa posts into the target, one after the other, exactly
as a webhook delivery for each of them would.

Usage:
  esasync sync 42
  esasync sync 42 43 --no-deploy`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			numbers, err := parsePostNumbers(args)
			if err != nil {
				return err
			}
			noDeploy, _ := cmd.Flags().GetBool("no-deploy")

			app, err := c.newApp(cmd, log.WARN)
			if err != nil {
				return err
			}
			defer app.Close()

			var opts []postsync.Option
			if noDeploy {
				opts = append(opts, postsync.WithoutDeploy())
			}
			out := cmd.OutOrStdout()
			failed := 0
			for _, n := range numbers {
				res, err := app.SyncPost(cmd.Context(), n, opts...)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s #%d %v\n", failMark(), n, err)
					continue
				}
				printResult(out, res)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d posts failed to sync", failed, len(numbers))
			}
			return nil
		},
	}
	cmd.Flags().Bool("no-deploy", false, "do not trigger a deploy after each post")
	return cmd
}

func (c *cli) syncAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync-all",
		Short: "Sync every esa post of the team",
		Long: `Walk every post of the esa team in ascending number order and sync it.

Failed posts are reported and the run goes on, unless --stop-on-error is set.
By default one deploy is triggered at the end when anything changed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts postsync.BulkOptions
			opts.StopOnError, _ = cmd.Flags().GetBool("stop-on-error")
			opts.DeployEachPost, _ = cmd.Flags().GetBool("deploy-each")
			noDeployAfter, _ := cmd.Flags().GetBool("no-deploy-after")
			opts.DeployAfter = !noDeployAfter
			opts.PreserveCreatedAt, _ = cmd.Flags().GetBool("preserve-created-at")
			opts.PerPage, _ = cmd.Flags().GetInt("per-page")

			app, err := c.newApp(cmd, log.INFO)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.SyncAll(cmd.Context(), opts)
			if report != nil {
				printReport(cmd.OutOrStdout(), report)
			}
			var bulkErr *postsync.BulkError
			if errors.As(err, &bulkErr) {
				return fmt.Errorf("%d of %d posts failed to sync", len(bulkErr.Failures), bulkErr.Attempted)
			}
			return err
		},
	}
	cmd.Flags().Bool("stop-on-error", false, "stop at the first post that fails")
	cmd.Flags().Bool("deploy-each", false, "deploy after every post instead of once at the end")
	cmd.Flags().Bool("no-deploy-after", false, "do not deploy at the end of the run")
	cmd.Flags().Bool("preserve-created-at", false, "date new target posts with their esa creation time")
	cmd.Flags().Int("per-page", 0, "esa page size (default 100)")
	return cmd
}

func printReport(w io.Writer, r *postsync.BulkReport) {
	fmt.Fprintf(w, "Synced %d post(s):\n", r.Attempted())
	for _, a := range []postsync.Action{postsync.ActionCreated, postsync.ActionUpdated, postsync.ActionDeleted, postsync.ActionSkipped} {
		fmt.Fprintf(w, "  %-8s %d\n", actionColor(a).Sprint(a), r.Count(a))
	}
	if len(r.Failures) > 0 {
		fmt.Fprintf(w, "  %-8s %d\n", color.New(color.FgRed).Sprint("failed"), len(r.Failures))
		for _, f := range r.Failures {
			fmt.Fprintf(w, "%s #%d %s: %v\n", failMark(), f.Number, f.Name, f.Err)
		}
	}
	if r.Deployed {
		fmt.Fprintf(w, "%s deployed\n", okMark())
	}
}
