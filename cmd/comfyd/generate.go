package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"comfyd/internal/common/fsutil"
	"comfyd/internal/manager"
	"comfyd/internal/params"
	"comfyd/pkg/types"
)

type generateOptions struct {
	req      types.GenerateRequest
	negative string
	seed     string
	styles   string
	out      string
	session  string
}

func newGenerateCmd(a *app) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run one generation and write the image to a file",
		Example: "  comfyd generate --prompt \"a lighthouse at dusk\" --seed 42 --out lighthouse.png\n" +
			"  comfyd generate --prompt \"portrait\" --size 832x1216 --style film,grain",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := opts.req
			if cmd.Flags().Changed("negative") {
				neg := opts.negative
				req.NegativePrompt = &neg
			}
			if opts.seed != "" {
				req.Seed = json.RawMessage(strconv.Quote(opts.seed))
			}
			req.Styles = splitCSV(opts.styles)
			p, err := params.FromRequest(req)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.generate(ctx, p, opts, cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.req.Prompt, "prompt", "", "Prompt text (required)")
	f.StringVar(&opts.negative, "negative", params.DefaultNegative, "Negative prompt; empty disables it")
	f.StringVar(&opts.seed, "seed", "", "Seed: a non-negative integer or \"random\" (default random)")
	f.IntVar(&opts.req.Steps, "steps", params.DefaultSteps, "Sampling steps")
	f.StringVar(&opts.req.Size, "size", "", "Image size as WIDTHxHEIGHT (default 1024x1024)")
	f.Float64Var(&opts.req.CFG, "cfg", params.DefaultCFG, "Guidance scale")
	f.Float64Var(&opts.req.Shift, "shift", params.DefaultShift, "Shift")
	f.StringVar(&opts.req.Sampler, "sampler", params.DefaultSampler, "Sampler id")
	f.StringVar(&opts.req.Scheduler, "scheduler", params.DefaultScheduler, "Scheduler id")
	f.StringVar(&opts.styles, "style", "", "Comma-separated style tags")
	f.StringVar(&opts.req.Workflow, "workflow", "", "Workflow id (default: configured default)")
	f.StringVarP(&opts.out, "out", "o", "comfyd.png", "Output file")
	f.StringVar(&opts.session, "session", "cli", "Session id used for the job")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

// generate runs a single job. Cancelling ctx cancels the job; the command then
// waits for the cancelled outcome before returning.
func (a *app) generate(ctx context.Context, p params.Parameters, opts *generateOptions, progress io.Writer) error {
	_, client, mgr, err := a.services(nil)
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mgr.Shutdown(sctx)
	}()

	sink := manager.SinkFuncs{OnProgress: func(t manager.Tick) {
		fmt.Fprintf(progress, "\rprogress %5.1f%% (%d/%d)", t.Percent, t.Value, t.Max)
	}}
	job, err := mgr.Start(opts.session, p, sink)
	if err != nil {
		return err
	}
	go func() {
		select {
		case <-ctx.Done():
			mgr.CancelJob(job)
		case <-job.Done():
		}
	}()

	o, err := job.Wait(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintln(progress)
	switch o.State {
	case manager.StateCompleted:
		if err := fsutil.WriteFileAtomic(opts.out, o.Artifact, 0o644); err != nil {
			return fmt.Errorf("write image: %w", err)
		}
		fmt.Fprintf(progress, "wrote %s (seed %d, %s)\n", opts.out, o.Seed, o.Elapsed.Round(time.Millisecond))
		return nil
	case manager.StateCancelled:
		return errors.New("generation cancelled")
	default:
		return fmt.Errorf("generation failed: %w", o.Err)
	}
}
