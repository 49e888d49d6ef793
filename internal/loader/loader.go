// Package loader drives a firmware load on a JTAG probe that accepts
// command scripts and memory images over TFTP.
package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/Wa4h1h/go-tftp-loader/pkg/client"
	"github.com/Wa4h1h/go-tftp-loader/pkg/types"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Plan selects the steps of a load. Connect+halt runs when Init is off.
type Plan struct {
	Host      string
	Target    string
	Address   uint32
	BlockSize int

	Power    bool
	Init     bool
	Erase    bool
	Reset    bool
	NRST     bool
	PowerOff bool
	Quiet    bool
	Verbose  bool
}

// StepError is a failed step together with the script it was running.
type StepError struct {
	Step   string
	Script string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Loader struct {
	l      *zap.SugaredLogger
	conn   client.Connector
	plan   Plan
	report Reporter
}

func New(l *zap.SugaredLogger, conn client.Connector, plan Plan, report Reporter) *Loader {
	if report == nil {
		report = nopReporter{}
	}

	return &Loader{l: l, conn: conn, plan: plan, report: report}
}

// Run loads image and runs the steps around it in order: power on,
// target init or connect, erase, load, reset, power off. Once the probe
// has been powered on, a failure powers it off again.
func (ld *Loader) Run(ctx context.Context, name string, image []byte) (err error) {
	p := ld.plan

	ld.report.Info("File: '%s'", name)
	ld.report.Info("Size: %d bytes", len(image))
	ld.report.Info("Remote host: %s", p.Host)
	ld.report.Info("Target: '%s'", p.Target)
	ld.report.Info("Upload address: %s", RemoteName(p.Address))

	if p.Power {
		if err := ld.script(ctx, "Power on", powerOnScript(p.Quiet)); err != nil {
			return err
		}

		defer func() {
			if err != nil {
				ld.report.Info("Powering off after failure")
				err = multierr.Append(err, ld.script(context.WithoutCancel(ctx), "Error power off", errorPowerOff))
			}
		}()
	}

	if p.Init {
		err = ld.script(ctx, "Configuring remote target", targetConfigScript(p.Target))
	} else {
		err = ld.script(ctx, "Connecting to remote target", connectHalt)
	}

	if err != nil {
		return err
	}

	if p.Erase {
		if err := ld.erase(ctx, len(image)); err != nil {
			return err
		}
	}

	if err := ld.load(ctx, image); err != nil {
		return err
	}

	if p.Reset {
		if err := ld.script(ctx, "Resetting remote target", resetScript(p.Quiet, p.NRST)); err != nil {
			return err
		}
	}

	if p.PowerOff {
		if err := ld.script(ctx, "Power off", powerOff); err != nil {
			return err
		}
	}

	return nil
}

func (ld *Loader) script(ctx context.Context, step, script string) error {
	ld.report.Info("%s", step)

	if ld.plan.Verbose {
		ld.report.Script(script)
	}

	if err := ld.conn.PutScript(ctx, scriptFile, script); err != nil {
		return &StepError{Step: step, Script: script, Err: err}
	}

	return nil
}

// erase runs the erase script with a timeout scaled to size, then puts
// the previous timeout back.
func (ld *Loader) erase(ctx context.Context, size int) error {
	prev := ld.conn.Timeout()
	ld.conn.SetTimeout(EraseTimeout(size))

	defer ld.conn.SetTimeout(prev)

	ld.l.Debugf("erase timeout %s", EraseTimeout(size))

	return ld.script(ctx, fmt.Sprintf("Erasing %s (%d bytes)", RemoteName(ld.plan.Address), size), eraseScript(ld.plan.Address, size))
}

func (ld *Loader) load(ctx context.Context, image []byte) error {
	ld.report.Info("Loading binary file...")
	ld.report.LoadStarted(RemoteName(ld.plan.Address), len(image))

	var opts types.Options
	if ld.plan.BlockSize > 0 {
		opts = opts.Set(types.OptBlockSize, ld.plan.BlockSize)
	}

	// tsize is advisory, the end of the upload is still the short block.
	opts = opts.Set(types.OptTransferSize, 0)

	start := time.Now()
	err := ld.conn.Put(ctx, RemoteName(ld.plan.Address), types.ModeOctet, image, opts)
	elapsed := time.Since(start)

	ld.report.LoadFinished(len(image), elapsed, err)

	if err != nil {
		return &StepError{Step: "Loading binary file", Err: err}
	}

	return nil
}

// Throughput renders the summary line of a finished load.
func Throughput(size int, elapsed time.Duration) string {
	dt := elapsed.Seconds()
	if dt <= 0 {
		return fmt.Sprintf("%d bytes transferred", size)
	}

	return fmt.Sprintf("%d bytes transferred in %.2f seconds (%.0f bytes/sec)", size, dt, float64(size)/dt)
}
