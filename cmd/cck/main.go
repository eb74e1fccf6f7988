package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/edp1096/cck-mna/pkg/analysis"
	"github.com/edp1096/cck-mna/pkg/circuit"
	"github.com/edp1096/cck-mna/pkg/config"
	"github.com/edp1096/cck-mna/pkg/netlist"
)

var (
	configFile string
	backend    string
	method     string
	dt         float64
	duration   float64
	start      float64
	verbose    bool
	nodes      []string
	outFile    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "cck",
		Short:         "modified nodal analysis circuit solver",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", config.DefaultBackend, "matrix backend (sparse, dense)")
	rootCmd.PersistentFlags().StringVar(&method, "method", config.DefaultMethod, "integration method (be, tr)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	opCmd := &cobra.Command{
		Use:   "op [netlist]",
		Short: "solve the operating point",
		Args:  cobra.ExactArgs(1),
		RunE:  runOP,
	}

	runCmd := &cobra.Command{
		Use:   "run [netlist]",
		Short: "run a transient analysis and print the table",
		Args:  cobra.ExactArgs(1),
		RunE:  runTransient,
	}
	addTimeFlags(runCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep [netlist]",
		Short: "run the .dc sweep of the netlist",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [netlist]",
		Short: "plot node voltages in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotTransient,
	}
	addTimeFlags(plotCmd)
	plotCmd.Flags().StringSliceVarP(&nodes, "node", "n", nil, "endpoint to plot (repeatable)")
	_ = plotCmd.MarkFlagRequired("node")

	exportCmd := &cobra.Command{
		Use:   "export-png [netlist]",
		Short: "render node voltages to a PNG file",
		Args:  cobra.ExactArgs(1),
		RunE:  exportPNG,
	}
	addTimeFlags(exportCmd)
	exportCmd.Flags().StringSliceVarP(&nodes, "node", "n", nil, "endpoint to plot, all when empty")
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "transient.png", "output file")

	rootCmd.AddCommand(opCmd, runCmd, sweepCmd, plotCmd, exportCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addTimeFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&dt, "dt", 0, "timestep (overrides .tran and config)")
	cmd.Flags().Float64Var(&duration, "time", 0, "stop time (overrides .tran and config)")
	cmd.Flags().Float64Var(&start, "start", 0, "first recorded time")
}

// settings merges the config file, then command line flags.
func settings(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = backend
	}
	if flags.Changed("method") {
		cfg.Method = method
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}

func load(path string, logger *slog.Logger) (*netlist.NetlistData, *circuit.Circuit, error) {
	data, err := netlist.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	ckt, err := netlist.BuildCircuit(data)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("circuit loaded", "title", data.Title, "elements", len(data.Elements), "analysis", data.Analysis)
	return data, ckt, nil
}

func runOP(cmd *cobra.Command, args []string) error {
	cfg, logger, err := settings(cmd)
	if err != nil {
		return err
	}
	_, ckt, err := load(args[0], logger)
	if err != nil {
		return err
	}

	op := analysis.NewOP(analysis.NewSolver(cfg.SolverOptions(logger)...))
	if err := op.Setup(ckt); err != nil {
		return err
	}
	if err := op.Execute(cmd.Context()); err != nil {
		return err
	}

	printOperatingPoint(cmd.OutOrStdout(), op.GetResults())
	return nil
}

// transient runs the circuit at path. Time flags win over the netlist's
// .tran line, which wins over the config file.
func transient(cmd *cobra.Command, path string) (map[string][]float64, error) {
	cfg, logger, err := settings(cmd)
	if err != nil {
		return nil, err
	}
	data, ckt, err := load(path, logger)
	if err != nil {
		return nil, err
	}

	tStep, tStop, tStart := cfg.Dt, cfg.Duration, cfg.Start
	if data.Analysis == netlist.AnalysisTRAN {
		tStep, tStop, tStart = data.TranParam.TStep, data.TranParam.TStop, data.TranParam.TStart
	}
	flags := cmd.Flags()
	if flags.Changed("dt") {
		tStep = dt
	}
	if flags.Changed("time") {
		tStop = duration
	}
	if flags.Changed("start") {
		tStart = start
	}

	tran := analysis.NewTransient(analysis.NewSolver(cfg.SolverOptions(logger)...), tStep, tStop, tStart)
	if err := tran.Setup(ckt); err != nil {
		return nil, err
	}
	if err := tran.Execute(cmd.Context()); err != nil {
		return nil, err
	}

	for _, f := range tran.Faults() {
		logger.Warn("tick kept last good state", "time", f.Time, "err", f.Err)
	}
	if n := len(tran.Faults()); n > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d of the ticks could not be solved\n", n)
	}
	return tran.GetResults(), nil
}

func runTransient(cmd *cobra.Command, args []string) error {
	results, err := transient(cmd, args[0])
	if err != nil {
		return err
	}
	printTable(cmd.OutOrStdout(), results)
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, logger, err := settings(cmd)
	if err != nil {
		return err
	}
	data, ckt, err := load(args[0], logger)
	if err != nil {
		return err
	}
	if data.Analysis != netlist.AnalysisDC {
		return fmt.Errorf("%s has no .dc line", args[0])
	}

	p := data.DCParam
	dc := analysis.NewDCSweep(analysis.NewSolver(cfg.SolverOptions(logger)...), p.Source, p.Start, p.Stop, p.Increment)
	if err := dc.Setup(ckt); err != nil {
		return err
	}
	if err := dc.Execute(cmd.Context()); err != nil {
		return err
	}

	printTable(cmd.OutOrStdout(), dc.GetResults())
	return nil
}

func plotTransient(cmd *cobra.Command, args []string) error {
	results, err := transient(cmd, args[0])
	if err != nil {
		return err
	}
	charts, err := asciiCharts(results, nodes)
	if err != nil {
		return err
	}
	for _, chart := range charts {
		fmt.Fprintln(cmd.OutOrStdout(), chart)
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}

func exportPNG(cmd *cobra.Command, args []string) error {
	results, err := transient(cmd, args[0])
	if err != nil {
		return err
	}
	if err := savePNG(outFile, args[0], results, nodes); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", outFile)
	return nil
}
