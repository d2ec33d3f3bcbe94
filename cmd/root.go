// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/taintscan/internal/config"
	"github.com/xkilldash9x/taintscan/internal/observability"
)

// viperKeyAnnotation marks a flag with the config key it overrides.
const viperKeyAnnotation = "taintscan/viper-key"

// app carries the per-invocation state shared by every subcommand. A fresh
// one is built for each root command so flags never leak between runs.
type app struct {
	v       *viper.Viper
	cfg     *config.Config
	cfgFile string
	verbose bool
}

// NewRootCommand builds the command tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}
	config.SetDefaults(a.v)

	root := &cobra.Command{
		Use:           "taintscan",
		Short:         "taintscan tracks untrusted input to dangerous sinks in Python, JavaScript, TypeScript and Go.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(a.v, cmd.Flags()); err != nil {
				return err
			}
			if err := a.initializeConfig(); err != nil {
				return err
			}

			observability.InitializeLogger(a.cfg.Logger())
			if a.verbose {
				observability.SetLevel(zapcore.DebugLevel)
			}
			observability.GetLogger().Debug("Starting taintscan", zap.String("version", Version))
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./taintscan.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.SetVersionTemplate(`{{printf "%s %s\n" .Name .Version}}`)

	root.AddCommand(newScanCmd(a))
	root.AddCommand(newRulesCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the root command. Errors are printed here; mapping them to an
// exit status is left to the caller (see ExitCode).
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, ErrFindingsPresent) {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}
	observability.Sync()
	return err
}

// ExitCode maps the result of Execute to a process exit status: 0 on success,
// 2 when --fail-on-findings tripped, 1 for anything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrFindingsPresent):
		return 2
	default:
		return 1
	}
}

// initializeConfig reads in config file and ENV variables if set.
func (a *app) initializeConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("taintscan")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix(config.EnvPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := config.NewConfigFromViper(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// annotate ties a flag to the config key it overrides.
func annotate(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		_ = flags.SetAnnotation(name, viperKeyAnnotation, []string{key})
	}
}

// bindFlags binds every annotated flag of the executing command to viper, so
// an explicitly set flag wins over the file and environment.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[viperKeyAnnotation]
		if err != nil || len(keys) == 0 {
			return
		}
		if bindErr := v.BindPFlag(keys[0], f); bindErr != nil {
			err = fmt.Errorf("binding flag --%s: %w", f.Name, bindErr)
		}
	})
	return err
}
