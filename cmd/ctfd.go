/*
Copyright © 2023 dimas maulana dimasmaulana0305@gmail.com
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimasma0305/ctfdump/function/config"
	"github.com/dimasma0305/ctfdump/function/creds"
	"github.com/dimasma0305/ctfdump/function/log"
	"github.com/dimasma0305/ctfdump/function/scraper/ctfd"
	"github.com/spf13/cobra"
)

type ctfdCmdFlags struct {
	creds          creds.CredsStruct
	cookies        map[string]string
	output         string
	workers        int
	timeout        time.Duration
	insecure       bool
	skipExisting   bool
	filterCategory string
	onlySolved     bool
	verbose        bool
	configPath     string
}

var ctfdFlag ctfdCmdFlags

// ctfdCmd represents the ctfd command
var ctfdCmd = &cobra.Command{
	Use:   "ctfd [url]",
	Short: "Dump ctfd challenges from url",
	Long: `Dump every challenge of a CTFd platform, whatever its API version.
Credentials come from the flags, the config file, CTF_USERNAME / CTF_PASSWORD,
or an interactive prompt, in that order.`,
	Example: "  ctfdump ctfd https://demo.ctfd.io -u user -p pass",
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		conf, err := config.Load(ctfdFlag.configPath)
		if err != nil {
			log.Fatal(err)
		}
		mergeConfig(cmd, args, conf)

		ctfdFlag.creds.FromEnv()
		if err := ctfdFlag.creds.Prompt(os.Stdin, os.Stderr); err != nil {
			log.Fatal(err)
		}
		if err := ctfdFlag.creds.Validate(); err != nil {
			log.Fatal(err)
		}

		var filters ctfd.Filters
		if ctfdFlag.filterCategory != "" {
			filters = append(filters, ctfd.CategoryFilter(ctfdFlag.filterCategory))
		}
		if ctfdFlag.onlySolved {
			filters = append(filters, ctfd.SolvedFilter())
		}

		opts := ctfd.Options{
			Url:     ctfdFlag.creds.Url,
			NoLogin: ctfdFlag.creds.NoLogin,
			Session: ctfd.SessionOptions{
				Timeout:  ctfdFlag.timeout,
				Cookies:  ctfdFlag.cookies,
				Insecure: ctfdFlag.insecure,
				Debug:    log.DebugMode(),
			},
			Output:       ctfdFlag.output,
			Workers:      ctfdFlag.workers,
			SkipExisting: ctfdFlag.skipExisting,
			Filters:      filters,
			Verbose:      ctfdFlag.verbose,
		}
		if !ctfdFlag.creds.NoLogin {
			opts.Creds = &ctfd.Creds{
				Username: ctfdFlag.creds.Username,
				Password: ctfdFlag.creds.Password,
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		dumper, err := ctfd.NewDumper(opts)
		if err != nil {
			log.Fatal(err)
		}
		summary, err := dumper.Run(ctx)
		if err != nil {
			log.Fatal(err)
		}
		log.Info("Dumped %d challenges (%d files, %d skipped) from %s",
			summary.Challenges, summary.Files, summary.Skipped, dumper.Session().HostName())
		if summary.Failures > 0 {
			log.Error("%d challenges or files could not be dumped, see the errors above", summary.Failures)
		}
	},
}

// mergeConfig fills every flag the user did not set from the config file.
func mergeConfig(cmd *cobra.Command, args []string, conf *config.Config) {
	flags := cmd.Flags()
	if len(args) > 0 {
		ctfdFlag.creds.Url = args[0]
	} else {
		ctfdFlag.creds.Url = conf.Url
	}
	if !flags.Changed("username") {
		ctfdFlag.creds.Username = conf.Username
	}
	if !flags.Changed("password") {
		ctfdFlag.creds.Password = conf.Password
	}
	if !flags.Changed("no-login") {
		ctfdFlag.creds.NoLogin = conf.NoLogin
	}
	if !flags.Changed("cookie") {
		ctfdFlag.cookies = conf.Cookies
	}
	if !flags.Changed("output") {
		ctfdFlag.output = conf.Output
	}
	if !flags.Changed("workers") {
		ctfdFlag.workers = conf.Workers
	}
	if !flags.Changed("timeout") {
		ctfdFlag.timeout = conf.Timeout
	}
	if !flags.Changed("insecure") {
		ctfdFlag.insecure = conf.Insecure
	}
	if !flags.Changed("skip-existing") {
		ctfdFlag.skipExisting = conf.SkipExisting
	}
}

func init() {
	rootCmd.AddCommand(ctfdCmd)

	ctfdCmd.Flags().StringVarP(&ctfdFlag.creds.Username, "username", "u", "", "Username")
	ctfdCmd.Flags().StringVarP(&ctfdFlag.creds.Password, "password", "p", "", "Password")
	ctfdCmd.Flags().BoolVarP(&ctfdFlag.creds.NoLogin, "no-login", "n", false, "Skip login, the platform is public")
	ctfdCmd.Flags().StringToStringVar(&ctfdFlag.cookies, "cookie", nil, "Preset cookie as name=value, can be repeated")
	ctfdCmd.Flags().StringVarP(&ctfdFlag.output, "output", "o", ".", "Directory to dump into")
	ctfdCmd.Flags().IntVarP(&ctfdFlag.workers, "workers", "w", ctfd.DefaultWorkers, "Concurrent downloads per challenge")
	ctfdCmd.Flags().DurationVar(&ctfdFlag.timeout, "timeout", 2*time.Minute, "Give up on a request that makes no progress for this long")
	ctfdCmd.Flags().BoolVar(&ctfdFlag.insecure, "insecure", false, "Skip TLS certificate verification")
	ctfdCmd.Flags().BoolVar(&ctfdFlag.skipExisting, "skip-existing", false, "Leave challenges whose directory already exists untouched")
	ctfdCmd.Flags().StringVarP(&ctfdFlag.filterCategory, "filter-category", "c", "", "Filter challenge by category")
	ctfdCmd.Flags().BoolVar(&ctfdFlag.onlySolved, "only-solved", false, "Only dump challenges you solved")
	ctfdCmd.Flags().BoolVarP(&ctfdFlag.verbose, "verbose", "v", false, "Print every challenge as json")
	ctfdCmd.Flags().StringVar(&ctfdFlag.configPath, "config", "", "Config file (default ./"+config.CONFIG_FILE+")")
}
