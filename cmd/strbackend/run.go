package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"strbackend/internal/memhost"
)

func newRunCmd(o *options) *cobra.Command {
	var (
		modelID string
		batch   int
		file    string
	)
	cmd := &cobra.Command{
		Use:   "run [INPUT...]",
		Short: "Run inputs through a model and print one result per line",
		Long: "Each input becomes one request. Requests are grouped into batches of --batch\n" +
			"requests and executed concurrently across the model's instances. Inputs are\n" +
			"read from the arguments, else from --file, else from stdin, one per line.",
		Example: "  strbackend run --model-repository ./models --model reverse hello world\n  strbackend run --model upper --batch 8 --file prompts.txt",
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs := args
			if len(inputs) == 0 {
				var err error
				inputs, err = readInputs(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
			}
			if len(inputs) == 0 {
				return fmt.Errorf("no inputs")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runInputs(ctx, o, cmd.OutOrStdout(), modelID, batch, inputs)
		},
	}
	cmd.Flags().StringVar(&modelID, "model", "", "Model to run (directory name in the repository)")
	cmd.Flags().IntVar(&batch, "batch", 1, "Requests per batch")
	cmd.Flags().StringVar(&file, "file", "", "Read inputs from this file, one per line")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func readInputs(stdin io.Reader, file string) ([]string, error) {
	r := stdin
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func runInputs(ctx context.Context, o *options, out io.Writer, modelID string, batch int, inputs []string) error {
	mgr, err := o.newManager()
	if err != nil {
		return err
	}
	if err := mgr.LoadModel(ctx, modelID); err != nil {
		return err
	}
	defer mgr.Close()

	inName, outName, batching, err := mgr.ModelConfigOf(modelID)
	if err != nil {
		return err
	}
	states := memhost.NewStateStore(o.cfg.StateCacheBytes, 0)
	reqs := make([]*memhost.Request, len(inputs))
	for i, s := range inputs {
		r, err := memhost.NewStringRequest(fmt.Sprintf("req-%d", i), inName, batching, s)
		if err != nil {
			return err
		}
		reqs[i] = r.Configure(func(c *memhost.RequestConfig) {
			c.Requested = []string{outName}
			c.States = states
			c.SequenceID = uint64(i + 1)
		})
	}

	if batch <= 0 {
		batch = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxQueueDepth)
	for start := 0; start < len(reqs); start += batch {
		chunk := reqs[start:min(start+batch, len(reqs))]
		g.Go(func() error {
			return mgr.Execute(gctx, modelID, memhost.Requests(chunk...))
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for i, r := range reqs {
		line, err := result(r, outName)
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s\terror: %v\n", inputs[i], err)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", inputs[i], line)
	}
	o.log.Debug().Int("requests", len(reqs)).Int("failed", failed).Int("state_entries", int(states.Entries())).Msg("run finished")
	if failed > 0 {
		return fmt.Errorf("%d of %d requests failed", failed, len(reqs))
	}
	return nil
}

func result(r *memhost.Request, output string) (string, error) {
	resp := r.Response()
	if resp == nil || !resp.Sent() {
		return "", fmt.Errorf("no response")
	}
	if err := resp.Err(); err != nil {
		return "", err
	}
	tn, ok := resp.Tensor(output)
	if !ok {
		return "", fmt.Errorf("output %s missing", output)
	}
	vals, err := tn.Strings()
	if err != nil {
		return "", err
	}
	return strings.Join(vals, " "), nil
}
