package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"comfyd/internal/backend"
	"comfyd/internal/config"
	"comfyd/internal/logging"
	"comfyd/internal/manager"
	"comfyd/internal/registry"
)

// app is the state shared by all subcommands once flags are resolved.
type app struct {
	cfg config.Config
	log zerolog.Logger

	configPath string
	envFiles   []string
}

// buildRootCmd constructs the command tree with default settings.
func buildRootCmd() *cobra.Command { return buildRootCmdWith(&app{cfg: config.Default()}) }

// buildRootCmdWith constructs the command tree resolving into a.
func buildRootCmdWith(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "comfyd",
		Short:         "Generation orchestration daemon for a ComfyUI backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags -> Config
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file (.yaml, .yml, .json or .toml)")
	pf.StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "KEY=VALUE files loaded into the environment; missing files are skipped")
	pf.String("log-level", a.cfg.LogLevel, "Log level: debug|info|warn|error|off (defaults COMFYD_LOG_LEVEL or info)")
	pf.String("log-format", a.cfg.LogFormat, "Log format: json|console (defaults COMFYD_LOG_FORMAT or json)")
	pf.String("backend-url", a.cfg.BackendURL, "Generation server base URL (defaults COMFYD_BACKEND_URL)")
	pf.String("workflows-dir", "", "Directory of *.json workflow templates (defaults COMFYD_WORKFLOWS_DIR)")
	pf.String("default-workflow", a.cfg.DefaultWorkflow, "Workflow used when a request names none")
	pf.Duration("poll-interval", a.cfg.PollInterval.D(), "Completion poll interval")
	pf.Duration("poll-timeout", a.cfg.PollTimeout.D(), "Give up on a submitted job after this long")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.resolve(cmd)
	}

	root.AddCommand(newServeCmd(a), newGenerateCmd(a), newOptionsCmd(a))

	// completion command
	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(cmd.OutOrStdout(), true) }})
	completionCmd.AddCommand(&cobra.Command{Use: "powershell", Short: "PowerShell completion", RunE: func(cmd *cobra.Command, args []string) error {
		return root.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
	}})
	root.AddCommand(completionCmd)

	return root
}

// resolve layers defaults, the config file, .env files and COMFYD_* variables,
// then explicitly set flags, and builds the logger.
func (a *app) resolve(cmd *cobra.Command) error {
	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a.cfg = cfg
	}
	if err := config.LoadDotEnv(a.envFiles...); err != nil {
		return err
	}
	a.cfg.ApplyEnv()

	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if f := flags.Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	str("log-level", &a.cfg.LogLevel)
	str("log-format", &a.cfg.LogFormat)
	str("backend-url", &a.cfg.BackendURL)
	str("workflows-dir", &a.cfg.WorkflowsDir)
	str("default-workflow", &a.cfg.DefaultWorkflow)
	if flags.Changed("poll-interval") {
		d, _ := flags.GetDuration("poll-interval")
		a.cfg.PollInterval = config.Duration(d)
	}
	if flags.Changed("poll-timeout") {
		d, _ := flags.GetDuration("poll-timeout")
		a.cfg.PollTimeout = config.Duration(d)
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	a.log = logging.NewWriter(cmd.ErrOrStderr(), a.cfg.LogLevel, a.cfg.LogFormat)
	return nil
}

// services wires the workflow registry, the backend client and a manager
// from the resolved configuration.
func (a *app) services(pub manager.EventPublisher) (*registry.Registry, *backend.Client, *manager.Manager, error) {
	reg, err := registry.LoadDir(a.cfg.WorkflowsDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load workflows: %w", err)
	}
	if !reg.Has(a.cfg.DefaultWorkflow) {
		return nil, nil, nil, fmt.Errorf("default workflow %q is not registered", a.cfg.DefaultWorkflow)
	}
	bindings, err := a.cfg.ResolvedBindings()
	if err != nil {
		return nil, nil, nil, err
	}
	client := backend.NewClient(backend.Options{
		BaseURL:        a.cfg.BackendURL,
		Endpoints:      a.cfg.Endpoints,
		RequestTimeout: a.cfg.RequestTimeout.D(),
		Logger:         a.log.With().Str("component", "backend").Logger(),
	})
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Backend:            manager.FromClient(client),
		BackendURL:         client.BaseURL(),
		Workflows:          reg,
		DefaultWorkflow:    a.cfg.DefaultWorkflow,
		Bindings:           bindings,
		PollInterval:       a.cfg.PollInterval.D(),
		PollTimeout:        a.cfg.PollTimeout.D(),
		StreamCloseTimeout: a.cfg.StreamCloseTimeout.D(),
		RequestTimeout:     a.cfg.RequestTimeout.D(),
		Logger:             a.log.With().Str("component", "manager").Logger(),
		Publisher:          pub,
	})
	return reg, client, mgr, nil
}
