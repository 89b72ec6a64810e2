package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eringen/esasync"
	"github.com/eringen/esasync/scaffold"
)

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter esasync.yaml and .env",
		Long: `Write esasync.yaml and .env into dir (default the current directory).

The webhook and session secrets in .env are generated; paste the webhook
secret into the esa webhook settings. Existing files are left untouched.

Usage:
  esasync init --team docs
  esasync init deploy --team docs --target sqlite`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			data := scaffold.Data{DatabasePath: "data/esasync.db"}
			data.Team, _ = cmd.Flags().GetString("team")
			data.Target, _ = cmd.Flags().GetString("target")
			data.PrivateCategoryPattern, _ = cmd.Flags().GetString("private-category")
			data.SiteURL, _ = cmd.Flags().GetString("site-url")
			data.SiteName = toTitle(data.Team)

			switch data.Target {
			case esasync.TargetDatoCMS, esasync.TargetSQLite, esasync.TargetMemory:
			default:
				return fmt.Errorf("unknown target %q", data.Target)
			}
			var err error
			if data.WebhookSecret, err = randomSecret(); err != nil {
				return err
			}
			if data.SessionSecret, err = randomSecret(); err != nil {
				return err
			}

			created, err := scaffold.Write(dir, data)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range created {
				fmt.Fprintf(out, "  created %s\n", p)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Done! Next steps:")
			fmt.Fprintln(out, "  Set ESA_API_TOKEN in .env.")
			if data.Target == esasync.TargetDatoCMS {
				fmt.Fprintln(out, "  Set the DATOCMS_* keys in .env.")
			}
			fmt.Fprintln(out, "  Point the esa webhook at /esa/webhook with the ESA_WEBHOOK_SECRET from .env.")
			fmt.Fprintln(out, "  Run 'esasync serve --config esasync.yaml'.")
			return nil
		},
	}
	cmd.Flags().String("team", "", "esa team name")
	cmd.Flags().String("target", esasync.TargetDatoCMS, "target CMS: datocms, sqlite or memory")
	cmd.Flags().String("private-category", `^(Private|Archived)(/.+)?$`, "categories that are never mirrored")
	cmd.Flags().String("site-url", "http://localhost:3000", "public URL of the service")
	_ = cmd.MarkFlagRequired("team")
	return cmd
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// toTitle converts a hyphenated or lowercase name to a title-case string.
// e.g. "my-team" -> "My Team", "docs" -> "Docs"
func toTitle(s string) string {
	parts := strings.Split(s, "-")
	for i, p := range parts {
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
