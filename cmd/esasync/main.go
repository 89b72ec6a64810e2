// Command esasync mirrors esa posts into a headless CMS.
//
// It serves the esa webhook endpoint, syncs single posts or the whole team on
// demand, and manages the authors of the sqlite mirror.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"github.com/eringen/esasync"
)

// version is set at build time via ldflags.
var version = "dev"

// cli carries the flags shared by every subcommand.
type cli struct {
	configPath string
	envFiles   []string
	verbose    bool
	// opts are appended to the options of every App; tests inject in-memory
	// adapters through them.
	opts []esasync.Option
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(opts ...esasync.Option) *cobra.Command {
	c := &cli{opts: opts}
	rootCmd := &cobra.Command{
		Use:     "esasync",
		Short:   "Mirror esa posts into a headless CMS",
		Version: version,
		Long: `esasync keeps a headless CMS in line with the posts of an esa team.

Posts are created, updated, published, unpublished and deleted downstream as
they change in esa. Posts in categories matching ESA_PRIVATE_CATEGORY_REGEX
are never mirrored, and wip posts or posts by unregistered authors stay
unpublished.

Configuration is read from the --config YAML file, then .env, then the
environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringSliceVar(&c.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log every sync step")

	rootCmd.AddCommand(c.serveCmd())
	rootCmd.AddCommand(c.syncCmd())
	rootCmd.AddCommand(c.syncAllCmd())
	rootCmd.AddCommand(c.authorCmd())
	rootCmd.AddCommand(initCmd())
	return rootCmd
}

func (c *cli) logger(w io.Writer, level log.Lvl) *log.Logger {
	l := log.New("esasync")
	l.SetOutput(w)
	l.SetHeader("${time_rfc3339} ${level}")
	if c.verbose {
		level = log.DEBUG
	}
	l.SetLevel(level)
	return l
}

// newApp loads the configuration and builds an App. Command-line logging
// goes to stderr so that summaries on stdout stay readable.
func (c *cli) newApp(cmd *cobra.Command, level log.Lvl) (*esasync.App, error) {
	cfg, err := esasync.LoadConfig(c.configPath, c.envFiles...)
	if err != nil {
		return nil, err
	}
	opts := append([]esasync.Option{esasync.WithLogger(c.logger(cmd.ErrOrStderr(), level))}, c.opts...)
	return esasync.New(cfg, opts...)
}
