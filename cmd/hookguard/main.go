package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/yurucode/hookguard/internal/audit"
	"github.com/yurucode/hookguard/internal/command"
	"github.com/yurucode/hookguard/internal/guard"
	"github.com/yurucode/hookguard/internal/hooks"
	"github.com/yurucode/hookguard/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	store      *hooks.Store
	dispatcher *hooks.Dispatcher
}

var (
	flagVerbose  bool
	flagHome     string
	flagAuditLog string
	flagNoAudit  bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hookguard",
		Short: "Hook-based action guard for coding-agent tool calls",
		Long: `hookguard sits between a coding agent and the operations it is about
to perform and decides, per lifecycle event, whether each operation may
proceed. Hooks are event-bound scripts that emit a continue/block
decision; any hook failure blocks the pending action.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagHome, "home", "", "state directory (default $HOOKGUARD_HOME or ~/.config/hookguard)")
	rootCmd.PersistentFlags().StringVar(&flagAuditLog, "audit-log", "", "audit log path (default ~/.local/share/hookguard/audit.log)")
	rootCmd.PersistentFlags().BoolVar(&flagNoAudit, "no-audit", false, "disable the audit log")

	rootCmd.AddCommand(newDispatchCmd())
	rootCmd.AddCommand(newHooksCmd())
	rootCmd.AddCommand(newEventsCmd())

	return rootCmd
}

// setup wires the store, ruleset, and dispatcher.
func setup() (*app, error) {
	logger.Init(logger.Options{Verbose: flagVerbose})

	if err := audit.Init(flagAuditLog, flagNoAudit); err != nil {
		// Auditing is best-effort; a broken audit path must not stop
		// the guard from deciding.
		logger.Warn("audit log unavailable", "error", err)
	}

	dir := flagHome
	if dir == "" {
		var err error
		dir, err = hooks.DefaultStateDir()
		if err != nil {
			return nil, err
		}
	}

	persistence, err := hooks.NewFilePersistence(dir)
	if err != nil {
		return nil, err
	}

	ruleset := guard.DefaultRuleset()
	if override := filepath.Join(dir, "ruleset.toml"); fileExists(override) {
		ruleset, err = guard.LoadRuleset(override)
		if err != nil {
			return nil, err
		}
		logger.Debug("loaded ruleset override", "path", override, "version", ruleset.Version)
	}

	store, err := hooks.NewStore(persistence, hooks.BuiltinDefinitions())
	if err != nil {
		return nil, err
	}

	dispatcher := hooks.NewDispatcher(
		store,
		hooks.NewScriptInvoker(command.NewRunner()),
		hooks.NewBuiltinInvoker(ruleset),
	)

	return &app{store: store, dispatcher: dispatcher}, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func newDispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch <event>",
		Short: "Dispatch a lifecycle event through the enabled hooks",
		Long: `Reads the event data as JSON from stdin, runs every enabled hook bound
to the event in order, and prints the aggregate decision envelope.
Exits 0 when the action may continue and 2 when it is blocked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer audit.Close()

			event, err := hooks.ParseEvent(args[0])
			if err != nil {
				return err
			}

			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read event data: %w", err)
			}

			var decision *hooks.Decision
			switch event {
			case hooks.EventPreToolUse, hooks.EventPostToolUse:
				payload, err := hooks.ParsePayload(data)
				if err != nil {
					return err
				}
				decision, err = a.dispatcher.Dispatch(cmd.Context(), event, payload)
				if err != nil {
					return err
				}
			default:
				decision, err = a.dispatcher.DispatchEvent(cmd.Context(), event, data)
				if err != nil {
					return err
				}
			}

			out, err := json.Marshal(decision)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if decision.Blocked() {
				fmt.Fprintf(cmd.ErrOrStderr(), "Blocked by hook %s: %s\n", decision.HookID, decision.Message)
				os.Exit(2)
			}
			return nil
		},
	}
}

func newEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List lifecycle events hooks can bind to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, info := range hooks.Events() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", info.Event, info.Description)
			}
			return nil
		},
	}
}

func newHooksCmd() *cobra.Command {
	hooksCmd := &cobra.Command{
		Use:   "hooks",
		Short: "Manage hook definitions",
	}

	hooksCmd.AddCommand(newHooksListCmd())
	hooksCmd.AddCommand(newHooksCreateCmd())
	hooksCmd.AddCommand(newHooksEnableCmd(true))
	hooksCmd.AddCommand(newHooksEnableCmd(false))
	hooksCmd.AddCommand(newHooksDeleteCmd())
	hooksCmd.AddCommand(newHooksUpdateScriptCmd())
	hooksCmd.AddCommand(newHooksTestCmd())

	return hooksCmd
}

func newHooksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all hooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			for _, def := range a.store.List() {
				state := "disabled"
				if def.Enabled {
					state = "enabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-28s %-8s %-20s %-8s %s\n",
					def.ID, def.Origin, def.Event, state, def.Name)
			}
			return nil
		},
	}
}

func newHooksCreateCmd() *cobra.Command {
	var (
		id          string
		name        string
		description string
		eventName   string
		scriptFile  string
		inline      string
		interpreter string
		timeoutMs   int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a custom hook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}

			event, err := hooks.ParseEvent(eventName)
			if err != nil {
				return err
			}

			def := hooks.HookDefinition{
				ID:          id,
				Name:        name,
				Description: description,
				Event:       event,
				Enabled:     true,
				Script: hooks.ScriptRef{
					Path:        scriptFile,
					Inline:      inline,
					Interpreter: interpreter,
				},
				Timeout: time.Duration(timeoutMs) * time.Millisecond,
			}
			if err := a.store.Create(def); err != nil {
				return err
			}
			if err := a.store.LastPersistError(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: hook saved in memory only: %v\n", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created hook %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "stable hook identifier")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&description, "description", "", "human description")
	cmd.Flags().StringVar(&eventName, "event", "", "lifecycle event to bind to")
	cmd.Flags().StringVar(&scriptFile, "script-file", "", "path to the hook script")
	cmd.Flags().StringVar(&inline, "inline", "", "inline script source")
	cmd.Flags().StringVar(&interpreter, "interpreter", "", "interpreter hint for inline scripts (sh, bash, python, node)")
	cmd.Flags().IntVar(&timeoutMs, "timeout-ms", 0, "per-invocation timeout in milliseconds")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("event")

	return cmd
}

func newHooksEnableCmd(enable bool) *cobra.Command {
	use, short := "enable <id>", "Enable a hook"
	if !enable {
		use, short = "disable <id>", "Disable a hook"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			if err := a.store.SetEnabled(args[0], enable); err != nil {
				return err
			}
			if err := a.store.LastPersistError(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: change saved in memory only: %v\n", err)
			}
			return nil
		},
	}
}

func newHooksDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a custom hook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			return a.store.Delete(args[0])
		},
	}
}

func newHooksUpdateScriptCmd() *cobra.Command {
	var (
		scriptFile  string
		inline      string
		interpreter string
	)

	cmd := &cobra.Command{
		Use:   "update-script <id>",
		Short: "Replace the script of a custom hook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			script := hooks.ScriptRef{
				Path:        scriptFile,
				Inline:      inline,
				Interpreter: interpreter,
			}
			return a.store.Update(args[0], hooks.HookPatch{Script: &script})
		},
	}

	cmd.Flags().StringVar(&scriptFile, "script-file", "", "path to the hook script")
	cmd.Flags().StringVar(&inline, "inline", "", "inline script source")
	cmd.Flags().StringVar(&interpreter, "interpreter", "", "interpreter hint for inline scripts")

	return cmd
}

func newHooksTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <id> <event>",
		Short: "Run a hook once with sample event data",
		Long: `Runs one hook through the execution protocol with sample data for the
given event and prints the raw outcome, outside normal dispatch.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}

			event, err := hooks.ParseEvent(args[1])
			if err != nil {
				return err
			}

			report, err := a.dispatcher.TestHook(cmd.Context(), args[0], event)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if report.Decision != nil {
				fmt.Fprintf(out, "Action:  %s\n", report.Decision.Action)
				if report.Decision.Message != "" {
					fmt.Fprintf(out, "Message: %s\n", report.Decision.Message)
				}
			}
			if report.Run != nil {
				fmt.Fprintf(out, "Exit:    %d\n", report.Run.ExitCode)
				if report.Run.Stdout != "" {
					fmt.Fprintf(out, "Stdout:  %s\n", report.Run.Stdout)
				}
				if report.Run.Stderr != "" {
					fmt.Fprintf(out, "Stderr:  %s\n", report.Run.Stderr)
				}
			}
			if report.Err != "" {
				fmt.Fprintf(out, "Error:   %s\n", report.Err)
			}
			return nil
		},
	}
}
