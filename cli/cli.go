package cli

import (
	"github.com/spf13/cobra"

	"github.com/netseam/ipfrag/config"
)

// Parse fills cfg in place from the command line. Unknown flags are rejected
// by the underlying flag set.
func Parse(cfg *config.Config, args []string) error {
	var (
		localAddrs string
		noAlarms   bool
		debug      bool
		trace      bool
	)

	cmd := &cobra.Command{
		Use:           "ipfragd",
		Short:         "IPv4 fragmenter with path MTU discovery",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(*cobra.Command, []string) error { return nil },
	}

	fs := cmd.Flags()
	fs.Uint16Var(&cfg.MTU, "mtu", cfg.MTU,
		"Egress L3 MTU, excluding Ethernet (0 = autodetect from --output)")
	fs.BoolVar(&cfg.PMTUD, "pmtud", cfg.PMTUD, "Enable path MTU discovery")
	fs.Uint32Var(&cfg.PMTUTimeout, "pmtu-timeout", cfg.PMTUTimeout,
		"PMTU cache entry lifetime in seconds")
	fs.StringVar(&localAddrs, "pmtu-local-addresses", "",
		"Comma-separated IPv4 addresses accepted as PTB destinations")
	fs.BoolVar(&noAlarms, "no-alarms", !cfg.UseAlarms,
		"Do not register the outgoing-fragments-rate alarm")
	fs.BoolVar(&cfg.DeterministicID, "deterministic-id", cfg.DeterministicID,
		"Pin the fragment-ID seed for reproducible runs")

	fs.StringVar(&cfg.InputIface, "input", cfg.InputIface, "Ingress interface")
	fs.StringVar(&cfg.OutputIface, "output", cfg.OutputIface, "Egress interface")
	fs.StringVar(&cfg.SouthIface, "south", cfg.SouthIface,
		"Return-path interface (PMTUD only)")
	fs.StringVar(&cfg.NorthIface, "north", cfg.NorthIface,
		"Upstream interface (PMTUD only)")
	fs.StringVar(&cfg.CountersDir, "counters-dir", cfg.CountersDir,
		"Directory for shared-memory counter files")

	fs.BoolVar(&debug, "debug", false, "Verbosity DEBUG")
	fs.BoolVar(&trace, "trace", false, "Verbosity TRACE")
	fs.BoolVar(&cfg.Instaflush, "instaflush", cfg.Instaflush, "Unbuffered logging")
	fs.BoolVar(&cfg.Syslog, "syslog", cfg.Syslog, "Log via syslog")

	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		return err
	}

	addrs, err := config.ParseIPv4List(localAddrs)
	if err != nil {
		return err
	}
	cfg.LocalAddresses = addrs
	cfg.UseAlarms = !noAlarms
	if debug {
		cfg.Verbose = config.VerboseDebug
	}
	if trace {
		cfg.Verbose = config.VerboseTrace
	}
	return nil
}
