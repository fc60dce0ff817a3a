// Command lamportd runs a Lamport clock synchronization node.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"lamportd/internal/config"
	"lamportd/internal/journal"
	"lamportd/internal/logging"
	"lamportd/internal/node"
	"lamportd/internal/transport"
)

const usageLine = "Usage: lamportd [flags]"

// flagValues holds the raw command line. Only flags the user changed are
// applied on top of file and environment settings.
type flagValues struct {
	configPath  string
	envFile     string
	nodeID      string
	group       string
	listen      string
	peers       string
	meanWait    string
	sendTimeout string
	codec       string
	journal     string
	verbose     bool
	local       int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.LookupEnv).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "lamportd: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand(lookupEnv func(string) (string, bool)) *cobra.Command {
	fv := &flagValues{}

	cmd := &cobra.Command{
		Use:   "lamportd",
		Short: "Lamport clock synchronization node",
		Long: `Run a node that keeps a Lamport logical clock in sync with its peer group.

The node emits events at exponentially distributed intervals, multicasts
each one stamped with its clock, and advances its clock on every packet
received from the group. It runs until interrupted.

Settings are applied in order: defaults, --config YAML file, LAMPORT_*
environment (optionally loaded from --env-file), then command line flags.

Example:
  lamportd --node-id n1 --listen 127.0.0.1:7001 --peers n2=127.0.0.1:7002
  lamportd --local 3 --mean-wait 1s`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), usageLine)
				return nil
			}

			cfg, err := loadConfig(cmd, fv, lookupEnv)
			if err != nil {
				return err
			}
			if fv.local > 0 {
				return runLocal(cmd.Context(), cfg, fv.local, cmd.ErrOrStderr())
			}
			return runNode(cmd.Context(), cfg)
		},
	}

	bindFlags(cmd, fv)
	// Unknown flags and malformed flag values get the same one-line usage
	// as positional arguments.
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		fmt.Fprintln(cmd.OutOrStdout(), usageLine)
		return nil
	})
	return cmd
}

// bindFlags registers the command line flags into fv.
func bindFlags(cmd *cobra.Command, fv *flagValues) {
	f := cmd.Flags()
	f.StringVar(&fv.configPath, "config", "", "path to a YAML config file")
	f.StringVar(&fv.envFile, "env-file", "", "path to a .env file (default: ./.env if present)")
	f.StringVar(&fv.nodeID, "node-id", "", "node ID (default: random)")
	f.StringVar(&fv.group, "group", config.DefaultGroup, "peer group to join")
	f.StringVar(&fv.listen, "listen", config.DefaultListenAddr, "gRPC listen address")
	f.StringVar(&fv.peers, "peers", "", "comma-separated list of peers (id=addr,id=addr)")
	f.StringVar(&fv.meanWait, "mean-wait", config.DefaultMeanWait.String(), "mean wait between events (ms or duration)")
	f.StringVar(&fv.sendTimeout, "send-timeout", config.DefaultSendTimeout.String(), "timeout of one multicast")
	f.StringVar(&fv.codec, "codec", "proto", "packet codec (proto|msgpack)")
	f.StringVar(&fv.journal, "journal", "", "path to a SQLite event journal (disabled if empty)")
	f.BoolVarP(&fv.verbose, "verbose", "v", false, "enable debug logging")
	f.IntVar(&fv.local, "local", 0, "run N nodes on an in-process hub instead of gRPC")
}

// loadConfig layers defaults, file, environment and changed flags.
func loadConfig(cmd *cobra.Command, fv *flagValues, lookupEnv func(string) (string, bool)) (config.Config, error) {
	cfg := config.Default()

	if fv.configPath != "" {
		if err := config.LoadFile(fv.configPath, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := config.LoadDotEnv(fv.envFile); err != nil {
		return cfg, err
	}
	if err := config.ApplyEnv(&cfg, lookupEnv); err != nil {
		return cfg, err
	}

	changed := cmd.Flags().Changed
	if changed("node-id") {
		cfg.NodeID = fv.nodeID
	}
	if changed("group") {
		cfg.Group = fv.group
	}
	if changed("listen") {
		cfg.ListenAddr = fv.listen
	}
	if changed("peers") {
		peers, err := config.ParsePeers(fv.peers)
		if err != nil {
			return cfg, fmt.Errorf("invalid --peers: %w", err)
		}
		cfg.Peers = peers
	}
	if changed("mean-wait") {
		d, err := config.ParseDuration(fv.meanWait)
		if err != nil {
			return cfg, fmt.Errorf("invalid --mean-wait: %w", err)
		}
		cfg.MeanWait = d
	}
	if changed("send-timeout") {
		d, err := config.ParseDuration(fv.sendTimeout)
		if err != nil {
			return cfg, fmt.Errorf("invalid --send-timeout: %w", err)
		}
		cfg.SendTimeout = d
	}
	if changed("codec") {
		cfg.Codec = fv.codec
	}
	if changed("journal") {
		cfg.JournalPath = fv.journal
	}
	if changed("verbose") {
		cfg.Debug = fv.verbose
	}
	if fv.local < 0 {
		return cfg, fmt.Errorf("invalid --local: %d", fv.local)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runNode(ctx context.Context, cfg config.Config) error {
	n, err := node.NewGRPC(cfg)
	if err != nil {
		return err
	}
	_, err = n.Run(ctx)
	return err
}

// runLocal runs count nodes joined to one in-process hub. The nodes share
// the configured journal, if any.
func runLocal(ctx context.Context, cfg config.Config, count int, w io.Writer) error {
	hub := transport.NewHub()

	var opts []node.Option
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer j.Close()
		opts = append(opts, node.WithSink(j))
	}

	level := logging.INFO
	if cfg.Debug {
		level = logging.DEBUG
	}
	logger := logging.New(w, "", level)

	nodes := make([]*node.Node, 0, count)
	for i := 1; i <= count; i++ {
		nodeCfg := cfg
		nodeCfg.NodeID = fmt.Sprintf("%s-%d", cfg.NodeID, i)
		nodeOpts := append([]node.Option{node.WithLogger(logger.WithPostfix(nodeCfg.NodeID))}, opts...)
		n, err := node.New(nodeCfg, hub.Join(nodeCfg.NodeID), nodeOpts...)
		if err != nil {
			return err
		}
		nodes = append(nodes, n)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, n := range nodes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := n.Run(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("node %s: %w", n.ID(), err))
				mu.Unlock()
				for _, other := range nodes {
					other.Stop()
				}
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}
