// Package main is the entrypoint for the dutctl CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/eugenetaranov/dutexec/internal/config"
	"github.com/eugenetaranov/dutexec/internal/connector"
	"github.com/eugenetaranov/dutexec/internal/connector/docker"
	"github.com/eugenetaranov/dutexec/internal/dut"
	"github.com/eugenetaranov/dutexec/internal/output"
	"github.com/eugenetaranov/dutexec/internal/portforward"
	"github.com/eugenetaranov/dutexec/internal/version"
	"github.com/eugenetaranov/dutexec/internal/wait"
)

var (
	buildVersion = "dev"
	commit       = "none"
	date         = "unknown"
)

// Global flags
var (
	configPath string
	debug      bool
	noColor    bool
	mode       string
	host       string
	user       string
	port       int
	keyFile    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dutctl",
	Short: "dutctl - Remote execution against a device under test",
	Long: `dutctl runs commands on, copies files to, and forwards ports into a
device under test, the way an integration-test harness does.

The device is either reached over ssh (a container, VM or board) or is
the local machine itself (image LOCAL or --mode local).`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", buildVersion, commit, date),
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Target config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", "", "Target mode: local or remote")
	rootCmd.PersistentFlags().StringVar(&host, "host", "", "Target host")
	rootCmd.PersistentFlags().StringVarP(&user, "user", "u", "", "Target user")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", 0, "Target SSH port")
	rootCmd.PersistentFlags().StringVarP(&keyFile, "key", "i", "", "Private key file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sudoCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(waitBootCmd)
	rootCmd.AddCommand(forwardCmd)
	rootCmd.AddCommand(versionCheckCmd)
}

func newLogger() *zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}).Level(level).With().Timestamp().Logger()
	return &logger
}

func newOutput() *output.Output {
	out := output.New(os.Stdout)
	out.SetColor(!noColor)
	return out
}

// loadTarget reads --config and applies the target flags on top.
func loadTarget(cmd *cobra.Command) (*config.Target, error) {
	target := &config.Target{}
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		target = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		m, err := config.ParseMode(mode)
		if err != nil {
			return nil, err
		}
		target.Mode = m
	}
	if flags.Changed("host") {
		target.Host = host
	}
	if flags.Changed("user") {
		target.User = user
	}
	if flags.Changed("port") {
		target.Port = port
	}
	if flags.Changed("key") {
		target.KeyFile = keyFile
	}

	if err := target.Normalize(); err != nil {
		return nil, err
	}
	return target, nil
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func connect(ctx context.Context, cmd *cobra.Command) (connector.Connector, error) {
	target, err := loadTarget(cmd)
	if err != nil {
		return nil, err
	}
	return dut.Connect(ctx, target, dut.WithLogger(newLogger()), dut.WithOutput(newOutput()))
}

var (
	runWarn bool
	runEcho bool
	runShow bool
)

func runOptions() []connector.RunOption {
	var opts []connector.RunOption
	if runWarn {
		opts = append(opts, connector.WithWarn())
	}
	if runEcho {
		opts = append(opts, connector.WithEcho())
	}
	if runShow {
		opts = append(opts, connector.ShowOutput())
	}
	return opts
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&runWarn, "warn", "w", false, "Report a failed command instead of erroring")
	cmd.Flags().BoolVarP(&runEcho, "echo", "e", false, "Print the assembled command line")
	cmd.Flags().BoolVarP(&runShow, "show", "s", true, "Print stdout and stderr")
}

// runCmd runs a command on the device under test
var runCmd = &cobra.Command{
	Use:   "run <command>",
	Short: "Run a command on the device under test",
	Long: `Run a command on the device under test and print its output.

Examples:
  dutctl run --port 8822 -i tests/id_rsa 'uname -a'
  dutctl run --mode local 'cat /etc/os-release'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd, args, false)
	},
}

// sudoCmd runs a command with sudo on the device under test
var sudoCmd = &cobra.Command{
	Use:   "sudo <command>",
	Short: "Run a command with sudo on the device under test",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd, args, true)
	},
}

func init() {
	addRunFlags(runCmd)
	addRunFlags(sudoCmd)
}

func execute(cmd *cobra.Command, args []string, sudo bool) error {
	ctx, cancel := signalContext()
	defer cancel()

	conn, err := connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	command := strings.Join(args, " ")
	var result *connector.Result
	if sudo {
		result, err = conn.Sudo(ctx, command, runOptions()...)
	} else {
		result, err = conn.Run(ctx, command, runOptions()...)
	}
	if err != nil {
		return err
	}

	if reportFailure(newOutput(), command, result) {
		os.Exit(result.ExitCode)
	}
	return nil
}

// reportFailure warns about a command that failed under --warn and
// reports whether it did.
func reportFailure(out *output.Output, command string, result *connector.Result) bool {
	if !result.Failed() {
		return false
	}
	out.Warn("%s exited with %d", command, result.ExitCode)
	if result.Stderr != "" {
		out.Warn("stderr: %s", strings.TrimSpace(result.Stderr))
	}
	return true
}

// putCmd copies a file to the device under test
var putCmd = &cobra.Command{
	Use:   "put <file>",
	Short: "Copy a file to the device under test",
	Long: `Copy a local file to the device under test.

Examples:
  dutctl put --port 8822 -i tests/id_rsa artifact.mender --remote-path /data
  dutctl put --local-path build app.conf --remote-path /etc/app`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		conn, err := connect(ctx, cmd)
		if err != nil {
			return err
		}
		defer conn.Close()

		localPath, _ := cmd.Flags().GetString("local-path")
		remotePath, _ := cmd.Flags().GetString("remote-path")
		putKey, _ := cmd.Flags().GetString("put-key")

		opts := []connector.PutOption{
			connector.WithLocalPath(localPath),
			connector.WithRemotePath(remotePath),
		}
		if putKey != "" {
			opts = append(opts, connector.WithKeyFile(putKey))
		}

		if err := conn.Put(ctx, args[0], opts...); err != nil {
			return err
		}
		newOutput().Status(fmt.Sprintf("put %s -> %s", args[0], conn), 0)
		return nil
	},
}

func init() {
	putCmd.Flags().String("local-path", ".", "Directory holding the file")
	putCmd.Flags().String("remote-path", ".", "Destination on the device under test")
	putCmd.Flags().String("put-key", "", "Key file used for this copy only")
}

// probeCmd waits until the device under test accepts commands
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Wait until the device under test accepts ssh commands",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		conn, err := connect(ctx, cmd)
		if err != nil {
			return err
		}
		defer conn.Close()

		newOutput().Status(fmt.Sprintf("%s is ready", conn), 0)
		return nil
	},
}

// waitBootCmd waits for a boot marker in the container logs
var waitBootCmd = &cobra.Command{
	Use:   "wait-boot [container-id]",
	Short: "Wait for the device container to finish booting",
	Long: `Poll the logs of the container running the device under test until a
boot marker (a Yocto console prompt or the OpenSSH start message)
appears near the end of the log.

The container id is taken from the argument or from container_id in
the target config.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		containerID := ""
		if len(args) == 1 {
			containerID = args[0]
		} else {
			target, err := loadTarget(cmd)
			if err != nil {
				return err
			}
			containerID = target.ContainerID
		}

		useAPI, _ := cmd.Flags().GetBool("api")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		var logs wait.LogSource = docker.NewCLI()
		if useAPI {
			api, err := docker.NewAPI()
			if err != nil {
				return err
			}
			defer api.Close()
			logs = api
		}

		booted, err := wait.ForBoot(ctx, logs, containerID,
			wait.WithTimeout(timeout),
			wait.WithLogger(newLogger()))
		if err != nil {
			return err
		}
		if !booted {
			return fmt.Errorf("container %s did not boot within %s", containerID, timeout)
		}

		newOutput().Status(fmt.Sprintf("container %s booted", containerID), 0)
		return nil
	},
}

func init() {
	waitBootCmd.Flags().Bool("api", false, "Read logs from the Docker Engine API instead of the docker CLI")
	waitBootCmd.Flags().Duration("timeout", wait.BootTimeout, "Maximum time to wait")
}

// forwardCmd keeps a port forward open until interrupted
var forwardCmd = &cobra.Command{
	Use:   "forward <local-port>:<remote-port>",
	Short: "Forward a local port to the device under test",
	Long: `Open a backgrounded ssh tunnel from a local port to a port on the
device under test and keep it until interrupted.

Examples:
  dutctl forward --port 8822 -i tests/id_rsa 8080:80`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		localPort, remotePort, err := parsePortPair(args[0])
		if err != nil {
			return err
		}

		target, err := loadTarget(cmd)
		if err != nil {
			return err
		}
		if target.Mode == config.ModeLocal {
			return fmt.Errorf("port forwarding needs a remote target")
		}

		ctx, cancel := signalContext()
		defer cancel()

		fwd := portforward.New(target.Connector(), target.KeyFile, localPort, remotePort,
			portforward.WithLogger(newLogger()))
		if err := fwd.Open(ctx); err != nil {
			return err
		}
		defer fwd.Close()

		out := newOutput()
		out.Info("forwarding %s, press Ctrl-C to stop", fwd)
		<-ctx.Done()
		return nil
	},
}

func parsePortPair(s string) (int, int, error) {
	localStr, remoteStr, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("expected <local-port>:<remote-port>, got %q", s)
	}
	localPort, err := strconv.Atoi(localStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid local port %q: %w", localStr, err)
	}
	remotePort, err := strconv.Atoi(remoteStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid remote port %q: %w", remoteStr, err)
	}
	return localPort, remotePort, nil
}

// versionCheckCmd compares a version against a minimum
var versionCheckCmd = &cobra.Command{
	Use:   "version-check <version> <minimum>",
	Short: "Exit 0 if version is at least minimum",
	Long: `Compare a software version against a minimum. Versions that do not
parse, such as branch names, always pass.

Examples:
  dutctl version-check 3.5.0 3.4.0
  dutctl version-check master 3.4.0`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := version.IsMinimum(args[0], args[1])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("version %s is older than %s", args[0], args[1])
		}
		fmt.Printf("OK: %s >= %s\n", args[0], args[1])
		return nil
	},
}
