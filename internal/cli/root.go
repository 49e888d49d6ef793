// Package cli wires the tftp-load command line: a one shot firmware load
// and an interactive upload shell.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Wa4h1h/go-tftp-loader/internal/config"
	"github.com/Wa4h1h/go-tftp-loader/internal/loader"
	"github.com/Wa4h1h/go-tftp-loader/pkg/client"
	"github.com/Wa4h1h/go-tftp-loader/pkg/metrics"
	"github.com/Wa4h1h/go-tftp-loader/pkg/utils"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const Version = "0.2.0"

type rootOpts struct {
	configPath string
	host       string
	port       int
	timeout    string
	retries    int
	blockSize  int
	tos        int
	target     string
	addr       string
	logLevel   string
	trace      bool
	stats      bool

	plan loader.Plan
}

// app is what PersistentPreRunE resolves for the subcommands.
type app struct {
	l       *zap.SugaredLogger
	level   string
	profile *config.Profile
	metrics *metrics.Collector
}

// NewRootCommand builds the command tree. l logs at level until the
// profile asks for another one.
func NewRootCommand(l *zap.SugaredLogger, level, configPath string) *cobra.Command {
	opts := &rootOpts{configPath: configPath}
	a := &app{l: l, level: level}

	cmd := &cobra.Command{
		Use:           "tftp-load [flags] FILE",
		Short:         "Load a binary image into a target through a YARD-ICE JTAG probe",
		Long:          "tftp-load uploads command scripts and a binary image to a JTAG probe over TFTP, optionally powering, erasing and resetting the target around the load.",
		Version:       Version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd, opts, args[0])
		},
	}

	pf := cmd.PersistentFlags()
	// -h belongs to --host, so help keeps only its long form.
	pf.Bool("help", false, "help for tftp-load")
	pf.StringVar(&opts.configPath, "config", opts.configPath, "Path to the profile file (TOML)")
	pf.StringVarP(&opts.host, "host", "h", "", "Remote host address")
	pf.IntVar(&opts.port, "port", 0, "Remote TFTP port")
	pf.StringVar(&opts.timeout, "timeout", "", "Reply timeout, e.g. 2s")
	pf.IntVar(&opts.retries, "retries", 0, "Retransmissions before giving up")
	pf.IntVar(&opts.tos, "tos", 0, "IPv4 type-of-service byte")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.BoolVar(&opts.trace, "trace", false, "Log every DATA block")
	pf.BoolVar(&opts.stats, "stats", false, "Print packet counters when done")

	f := cmd.Flags()
	f.StringVarP(&opts.addr, "addr", "a", "", "Upload address, e.g. 0x08000000")
	f.StringVarP(&opts.target, "target", "t", "", "Target platform")
	f.IntVar(&opts.blockSize, "blksize", 0, "TFTP block size for the image")
	f.BoolVarP(&opts.plan.Reset, "reset", "r", false, "Run the reset script after loading")
	f.BoolVarP(&opts.plan.NRST, "nrst", "n", false, "Reset using the nRST pin (implies --reset)")
	f.BoolVarP(&opts.plan.Quiet, "quiet", "q", false, "Silent mode, no beeps")
	f.BoolVarP(&opts.plan.Init, "init", "i", false, "Run the target config script instead of connect")
	f.BoolVarP(&opts.plan.Verbose, "verbose", "v", false, "Show the scripts sent to the probe")
	f.BoolVarP(&opts.plan.Erase, "erase", "e", false, "Erase the flash range before loading")
	f.BoolVarP(&opts.plan.Power, "power", "p", false, "Power the target on first")
	f.BoolVar(&opts.plan.PowerOff, "power-off", false, "Power the target off when done")

	cmd.AddCommand(shellCommand(a))

	return cmd
}

// setup loads the profile and applies the flags the user set on top of it.
func (a *app) setup(cmd *cobra.Command, opts *rootOpts) error {
	p, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()

	if flags.Changed("host") {
		p.Host = opts.host
	}

	if flags.Changed("port") {
		p.Port = opts.port
	}

	if flags.Changed("timeout") {
		if p.Timeout, err = config.ParseTimeout(opts.timeout); err != nil {
			return err
		}
	}

	if flags.Changed("retries") {
		p.Retries = opts.retries
	}

	if flags.Changed("tos") {
		p.TOS = opts.tos
	}

	if flags.Changed("log-level") {
		p.LogLevel = opts.logLevel
	}

	if flags.Changed("target") {
		p.Target = opts.target
	}

	if flags.Changed("addr") {
		p.Address = opts.addr
	}

	if flags.Changed("blksize") {
		p.BlockSize = opts.blockSize
	}

	if p.LogLevel != a.level {
		a.l = utils.NewLogger(p.LogLevel).Sugar()
		a.level = p.LogLevel
	}

	a.profile = p
	a.metrics = metrics.NewCollector("")

	return nil
}

func (a *app) newClient(host string, port int, trace bool, extra ...client.Option) (*client.Client, error) {
	opts := append(a.profile.ClientOptions(), client.WithPort(port), client.WithMetrics(a.metrics))
	opts = append(opts, extra...)

	c, err := client.NewClient(a.l, host, opts...)
	if err != nil {
		return nil, err
	}

	if trace {
		c.SetTrace()
	}

	return c, nil
}

func (a *app) load(cmd *cobra.Command, opts *rootOpts, path string) error {
	image, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("can't open file: '%s': %w", path, err)
	}

	addr, err := a.profile.LoadAddress()
	if err != nil {
		return err
	}

	plan := opts.plan
	plan.Host = a.profile.Host
	plan.Target = a.profile.Target
	plan.Address = addr
	plan.BlockSize = a.profile.BlockSize

	if plan.NRST {
		plan.Reset = true
	}

	report := loader.NewTermReporter()

	c, err := a.newClient(a.profile.Host, a.profile.Port, opts.trace, client.WithProgress(report.Progress))
	if err != nil {
		return err
	}

	defer func() {
		if err := c.Close(); err != nil {
			a.l.Error(err.Error())
		}
	}()

	err = loader.New(a.l, c, plan, report).Run(cmd.Context(), filepath.Base(path), image)

	if opts.stats {
		printStats(a.metrics)
	}

	return err
}

func printStats(m *metrics.Collector) {
	s := m.Snapshot()

	_ = pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"packets sent", "retransmissions", "ignored datagrams", "payload bytes"},
		{
			strconv.FormatFloat(s.PacketsSent, 'f', 0, 64),
			strconv.FormatFloat(s.Retransmissions, 'f', 0, 64),
			strconv.FormatFloat(s.Ignored, 'f', 0, 64),
			strconv.FormatFloat(s.BytesSent, 'f', 0, 64),
		},
	}).Render()
}
