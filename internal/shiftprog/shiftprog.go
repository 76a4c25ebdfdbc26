// Public domain.

// Package shiftprog is the cosmo program: the command tree, the logger
// and the order in which the monitor's steps run.
package shiftprog

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/soniakeys/exit"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justincely/cosmo/internal/config"
)

const versionString = "cosmo version 1.0"

// Main runs the program with the process arguments.
func Main() {
	defer exit.Handler()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewCommand(nil).ExecuteContext(ctx); err != nil {
		exit.Log(err)
	}
}

// program carries what every command needs once the persistent flags are
// parsed.
type program struct {
	cfgPath string
	cfg     *config.Config
	log     *zap.Logger
	ownLog  bool
	out     io.Writer
}

// NewCommand builds the command tree.  A nil logger means the logger is
// built from the configuration.
func NewCommand(log *zap.Logger) *cobra.Command {
	p := &program{log: log}
	root := &cobra.Command{
		Use:   "cosmo",
		Short: "COS lamp flash shift and drift monitor",
		Long: `cosmo monitors the wavelength alignment of the COS spectrograph.

Run without a command, it collects shift measurements from the exposure
corpus, fits their trends, writes the FUVA-FUVB difference report, scans
lampflash products for drift within exposures and flags measurements
outside tolerance.  Each step is also available as a command.`,
		Version:       versionString,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return p.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if p.ownLog {
				_ = p.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return p.pipeline(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&p.cfgPath, "config", "c", "",
		"configuration file (YAML); defaults apply when omitted")

	root.AddCommand(
		&cobra.Command{
			Use:   "collect",
			Short: "Extract shifts from the corpus into the shift database",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, err := p.collect(cmd.Context())
				return err
			},
		},
		&cobra.Command{
			Use:   "trends",
			Short: "Fit shift trends and export all_shifts.fits",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, err := p.trends(cmd.Context())
				return err
			},
		},
		&cobra.Command{
			Use:   "diff",
			Short: "Write the FUVA-FUVB difference report",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return p.differences(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "drift",
			Short: "Scan lampflash products for drift and append to the drift log",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, err := p.drift(cmd.Context())
				return err
			},
		},
		&cobra.Command{
			Use:   "flag",
			Short: "Flag drift log rows and shifts outside tolerance",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return p.flagLog(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "import <all_shifts.fits>",
			Short: "Load a legacy shift table into the shift database",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return p.importFITS(cmd.Context(), args[0])
			},
		},
	)
	return root
}

func (p *program) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(p.cfgPath)
	if err != nil {
		return err
	}
	p.cfg = cfg
	p.out = cmd.OutOrStdout()
	if p.log == nil {
		if p.log, err = cfg.Logging.Logger(); err != nil {
			return err
		}
		p.ownLog = true
	}
	if err := os.MkdirAll(cfg.Paths.MonitorDir, 0o755); err != nil {
		return fmt.Errorf("monitor directory: %w", err)
	}
	return nil
}

// pipeline runs every step.  Flagging uses the drift rows of this run
// rather than the whole drift log, and the aggregated records of the
// trend step.
func (p *program) pipeline(ctx context.Context) error {
	if _, err := p.collect(ctx); err != nil {
		return err
	}
	res, err := p.trends(ctx)
	if err != nil {
		return err
	}
	if err := p.differences(ctx); err != nil {
		return err
	}
	rep, err := p.drift(ctx)
	if err != nil {
		return err
	}
	return p.flag(rep.Rows, res)
}
