package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"strbackend/internal/model"
	"strbackend/internal/modelconfig"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "validate PATH...",
		Short:   "Validate model configuration files or model directories",
		Example: "  strbackend validate ./models/reverse ./models/upper/config.json",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			bad := 0
			for _, p := range args {
				if err := validatePath(out, p); err != nil {
					bad++
					fmt.Fprintf(out, "%s: INVALID: %v\n", p, err)
				}
			}
			if bad > 0 {
				return fmt.Errorf("%d of %d model configurations invalid", bad, len(args))
			}
			return nil
		},
	}
}

func validatePath(out io.Writer, p string) error {
	path := p
	if fi, err := os.Stat(p); err == nil && fi.IsDir() {
		cp, ok := modelconfig.FindConfig(p)
		if !ok {
			return fmt.Errorf("no model configuration in %s", p)
		}
		path = cp
	}
	cfg, err := modelconfig.Load(path)
	if err != nil {
		return err
	}
	lib := cfg.Parameters[modelconfig.ModelLibPathKey]
	if _, err := model.Default.Resolve(lib); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: ok name=%s model=%s shape=%s states=%d\n",
		path, cfg.Name, model.LibName(lib), modelconfig.ShapeString(cfg.TensorShape()), len(cfg.StateNames()))
	return nil
}
