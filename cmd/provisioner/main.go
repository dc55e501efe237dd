package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/systmms/provisioner/cmd/provisioner/commands"
	"github.com/systmms/provisioner/internal/config"
	"github.com/systmms/provisioner/internal/credstore"
	dserrors "github.com/systmms/provisioner/internal/errors"
	"github.com/systmms/provisioner/internal/logging"
	"github.com/systmms/provisioner/internal/secure"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg := &config.Config{}
	err := run(cfg)
	secure.Purge()
	if err != nil {
		msg := dserrors.SimplifyError(err).Error()
		if cfg.Settings != nil {
			msg = logging.Redact(msg, cfg.Settings.Secrets())
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	var (
		configFile string
		envFile    string
		noColor    bool
		debug      bool
		noKeyring  bool
	)

	rootCmd := &cobra.Command{
		Use:   "provisioner",
		Short: "Provision GitLab projects, Vault and Consul secrets and GitOps manifests",
		Long: `provisioner sets up a new service for the CI/CD platform: GitLab subgroups,
projects, protected branches and members, namespace secrets in Vault and
Consul, and the generated code, Helm chart and Argo CD manifests.

Configuration comes from an optional YAML file, a .env file and the CI_*/CD_*
pipeline variables.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.EnvFile = envFile
			cfg.Logger = logging.New(debug, noColor)
			if !noKeyring {
				cfg.Keyring = credstore.NewKeyring()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file path (optional)")
	flags.StringVar(&envFile, "env-file", "", "Read variables from this .env file (default .env when present)")
	flags.StringVar(&cfg.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after provisioning")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")
	flags.BoolVar(&noKeyring, "no-keyring", false, "Do not read tokens from the OS keyring")

	rootCmd.AddCommand(
		commands.NewProvisionCommand(cfg),
		commands.NewCloneCommand(cfg),
		commands.NewPushCommand(cfg),
		commands.NewRenderCommand(cfg),
		commands.NewDoctorCommand(cfg),
		commands.NewLoginCommand(cfg),
		commands.NewCompletionCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}
