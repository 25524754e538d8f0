package main

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sljivkov/nibifeed/chains"
	"github.com/sljivkov/nibifeed/config"
	"github.com/sljivkov/nibifeed/sources"
)

const version = "0.1.0"

// rootFlags are shared by every command
type rootFlags struct {
	envFile  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "nibifeed",
		Short: "Nibiru oracle price feed updater",
		Long: `nibifeed reads the Nibiru oracle exchange rates through the nibid CLI and
records them in an oracle CosmWasm contract, one set_price tx per token, on a
fixed interval.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := config.LoadEnvFile(flags.envFile); err != nil {
				return err
			}

			return setupLogger(cmp.Or(flags.logLevel, os.Getenv("LOG_LEVEL")), os.Getenv("LOG_FORMAT"))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runService(cmd, flags)
		},
	}

	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "optional dotenv file loaded before the environment is read")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level, overrides LOG_LEVEL")

	root.AddCommand(
		newRunCmd(flags),
		newRatesCmd(),
		newCheckMnemonicCmd(),
		newVersionCmd(),
	)

	return root
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the price feed until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runService(cmd, flags)
		},
	}
}

func runService(cmd *cobra.Command, flags *rootFlags) error {
	cfg, err := config.NewConfig(config.WithLogLevel(flags.logLevel))
	if err != nil {
		return err
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newService(*cfg).Run(ctx)
}

func newRatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rates",
		Short: "Fetch the exchange rates once and print the mapped token prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			feed, err := config.NewFeedConfig()
			if err != nil {
				return err
			}

			source, err := sources.NewNibidSource(feed.RatesCommandArgs())
			if err != nil {
				return err
			}

			prices, err := source.FetchRates(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			return enc.Encode(prices)
		},
	}
}

func newCheckMnemonicCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-mnemonic",
		Short: "Report whether NIBIRU_MNEMONIC is a valid BIP-39 phrase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			valid := chains.ValidateMnemonic(os.Getenv("NIBIRU_MNEMONIC"))
			fmt.Fprintf(cmd.OutOrStdout(), "Is the mnemonic valid? %t\n", valid)

			if !valid {
				return chains.ErrInvalidMnemonic
			}

			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nibifeed version %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
