package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zephyrtronium/mathexpr"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command.
func newRootCmd() *cobra.Command {
	v := newViper()
	var path string
	root := &cobra.Command{
		Use:           "mathexpr",
		Short:         "Interpret and evaluate mathematical expressions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&path, "config", "", "config file (yaml, json, or toml)")
	root.PersistentFlags().String("style", "", "operator precedence style: mathematical or cstyle")
	root.PersistentFlags().String("log-level", "", "log level (default warning)")
	v.BindPFlag("style", root.PersistentFlags().Lookup("style"))
	v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))

	load := func() (*Config, *logrus.Logger, error) {
		cfg, err := loadConfig(v, path)
		if err != nil {
			return nil, nil, err
		}
		log, err := cfg.logger()
		if err != nil {
			return nil, nil, err
		}
		return cfg, log, nil
	}
	root.AddCommand(newEvalCmd(load), newFunctionsCmd(load))
	return root
}

type loader func() (*Config, *logrus.Logger, error)

// newEvalCmd creates the eval command.
func newEvalCmd(load loader) *cobra.Command {
	var (
		given    []string
		nl, echo bool
		cached   bool
	)
	cmd := &cobra.Command{
		Use:   "eval [expr...]",
		Short: "Evaluate expressions given as arguments, or read from stdin if none are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			interpreter, closeFn, err := cfg.interpreter(log, cached)
			if err != nil {
				return err
			}
			defer closeFn()
			ctx := cmd.Context()
			vars, err := givens(ctx, interpreter, given)
			if err != nil {
				return err
			}
			exprs := args
			if len(exprs) == 0 {
				exprs, err = readExprs(cmd.InOrStdin(), nl)
				if err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			for _, text := range exprs {
				e, err := interpreter.Interpret(ctx, text)
				if err != nil {
					if errors.Is(err, mathexpr.ErrEmptyExpression) {
						continue
					}
					return err
				}
				if echo {
					fmt.Fprintf(out, "%v : ", e)
				}
				r, err := e.EvaluateWith(vars)
				if err != nil {
					log.WithError(err).WithField("expression", text).Debug("evaluation failed")
					fmt.Fprintln(out, err)
					continue
				}
				fmt.Fprintln(out, show(r))
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&given, "given", nil, "name=value variable definition (any number of times)")
	cmd.Flags().BoolVarP(&nl, "lines", "n", false, "interpret separate input lines as separate expressions")
	cmd.Flags().BoolVar(&echo, "echo", false, "print parse trees")
	cmd.Flags().BoolVar(&cached, "cache", false, "interpret through a cache, so repeated expressions are parsed once")
	return cmd
}

// givens evaluates name=value definitions. Each value is an expression of no
// parameters.
func givens(ctx context.Context, in mathexpr.Interpreter, defs []string) (mathexpr.MapFinder, error) {
	vars := make(mathexpr.MapFinder, len(defs))
	for _, d := range defs {
		name, val, ok := strings.Cut(d, "=")
		if !ok {
			return nil, fmt.Errorf(`variable definitions must be "name=value", not %q`, d)
		}
		name = strings.TrimSpace(name)
		e, err := in.Interpret(ctx, val)
		if err != nil {
			return nil, fmt.Errorf("setting %s: %w", name, err)
		}
		r, err := e.Evaluate()
		if err != nil {
			return nil, fmt.Errorf("setting %s: %w", name, err)
		}
		vars[name] = r
	}
	return vars, nil
}

// readExprs reads expressions from r, either one per line or all of r as one.
func readExprs(r io.Reader, lines bool) ([]string, error) {
	if !lines {
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return []string{string(b)}, nil
	}
	var exprs []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		exprs = append(exprs, sc.Text())
	}
	return exprs, sc.Err()
}

// show formats a result for printing.
func show(v any) string {
	if b, ok := v.([]byte); ok {
		var s strings.Builder
		s.WriteString("0b")
		for _, c := range b {
			fmt.Fprintf(&s, "%08b", c)
		}
		return s.String()
	}
	return fmt.Sprint(v)
}

// newFunctionsCmd creates the functions command.
func newFunctionsCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List the functions expressions may call",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			svc, err := mathexpr.NewService(mathexpr.WithDefinition(cfg.Definition), mathexpr.WithLogger(log))
			if err != nil {
				return err
			}
			defer svc.Close()
			for _, p := range svc.RegisteredFunctions() {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}
