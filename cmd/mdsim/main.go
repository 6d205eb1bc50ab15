package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/mdsim/internal/analysis"
	"github.com/san-kum/mdsim/internal/automation"
	"github.com/san-kum/mdsim/internal/compute"
	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/experiment"
	"github.com/san-kum/mdsim/internal/export"
	"github.com/san-kum/mdsim/internal/geom"
	"github.com/san-kum/mdsim/internal/optim"
	"github.com/san-kum/mdsim/internal/sim"
	"github.com/san-kum/mdsim/internal/storage"
	"github.com/san-kum/mdsim/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	verbose    bool
	configFile string
	preset     string

	// run overrides
	particles   int
	boxSide     float64
	temperature float64
	cutoff      float64
	skin        float64
	dt          float64
	steps       int
	reportEvery int
	seed        int64
	potential   string
	integrator  string
	evaluator   string
	workers     int
	thermalQ    float64
	trajEvery   int
	validate    bool
	replicas    int
	snapshot    string

	// analysis
	columns  string
	column   string
	trajFile string
	wrapped  bool
	frameDt  float64
	skipFrac float64

	svgPrefix string

	// sweep
	grid   []string
	metric string

	// bench
	sizes      string
	evaluators string
	benchSteps int
	bruteMax   int
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "mdsim",
		Short:         "molecular dynamics with cell lists, NVE and Nose-Hoover NVT",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunPicker()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultOutputDir, "run storage directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation and store its record",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().IntVar(&replicas, "replicas", 1, "run this many thermal replicas concurrently (not stored)")
	runCmd.Flags().StringVar(&snapshot, "snapshot", "", "write the final configuration to this svg file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot thermo columns of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&columns, "columns", "ke,pe,total,temp", "comma separated thermo columns")
	plotCmd.Flags().StringVar(&svgPrefix, "svg", "", "also write <prefix>-<column>.svg per column")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "power spectrum of a thermo column",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&column, "column", "temp", "thermo column")

	msdCmd := &cobra.Command{
		Use:   "msd [run_id]",
		Short: "mean squared displacement and diffusion coefficient",
		Args:  cobra.MaximumNArgs(1),
		RunE:  msdRun,
	}
	msdCmd.Flags().StringVar(&trajFile, "file", "", "read this xyz file instead of a stored run")
	msdCmd.Flags().BoolVar(&wrapped, "wrapped", false, "positions are wrapped into the box")
	msdCmd.Flags().Float64Var(&boxSide, "box", 0, "cubic box side for --wrapped with --file")
	msdCmd.Flags().Float64Var(&frameDt, "frame-dt", 0, "time between frames (default from the run record)")
	msdCmd.Flags().Float64Var(&skipFrac, "skip", 0.2, "fraction of early frames left out of the fit")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run record and its samples as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "write a config file from the defaults or a preset",
		Args:  cobra.ExactArgs(1),
		RunE:  writeConfig,
	}
	configCmd.Flags().StringVar(&preset, "preset", "", "start from this preset")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "time force evaluators across system sizes",
		Args:  cobra.NoArgs,
		RunE:  benchEvaluators,
	}
	benchCmd.Flags().StringVar(&sizes, "sizes", "500,1000,2000,4000", "particle counts")
	benchCmd.Flags().StringVar(&evaluators, "evaluators", "cells,neighbors,brute", "evaluators to compare")
	benchCmd.Flags().IntVar(&benchSteps, "steps", 50, "steps per measurement")
	benchCmd.Flags().IntVar(&bruteMax, "brute-max", 2000, "skip brute force above this many particles")
	benchCmd.Flags().IntVar(&workers, "workers", 0, "force workers (0 = GOMAXPROCS)")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "grid search run parameters for the smallest metric value",
		Example: `  mdsim sweep --preset nve-lj --steps 500 --grid dt=0.001:0.01:4 --grid skin=0,0.3
  mdsim sweep --preset nvt-lj --grid q=0.1,1,10 --metric temperature`,
		Args: cobra.NoArgs,
		RunE: sweepRun,
	}
	addConfigFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&grid, "grid", nil, "name=v1,v2,... or name=min:max:n (repeatable)")
	sweepCmd.Flags().StringVar(&metric, "metric", "energy_drift", "metric to minimize")
	_ = sweepCmd.MarkFlagRequired("grid")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run the stages of a yaml scenario on one system and store each",
		Args:  cobra.ExactArgs(1),
		RunE:  scenarioRun,
	}

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "watch a simulation in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	liveCmd.Flags().IntVar(&steps, "steps", 0, "stop after this many steps")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, analyzeCmd, msdCmd, exportCmd, presetsCmd, configCmd, benchCmd, sweepCmd, scenarioCmd, liveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.IntVarP(&particles, "particles", "n", config.DefaultParticles, "number of particles")
	f.Float64Var(&boxSide, "box", 0, "cubic box side (0 = from density)")
	f.Float64VarP(&temperature, "temp", "T", config.DefaultTemperature, "initial and target temperature")
	f.Float64Var(&cutoff, "cutoff", config.DefaultCutoff, "potential cutoff")
	f.Float64Var(&skin, "skin", config.DefaultSkin, "neighbor skin")
	f.Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	f.IntVar(&steps, "steps", config.DefaultSteps, "number of steps")
	f.IntVar(&reportEvery, "report", config.DefaultReportEvery, "steps between thermo samples")
	f.Int64Var(&seed, "seed", 1, "random seed")
	f.StringVar(&potential, "potential", "slj", "pair potential")
	f.StringVar(&integrator, "integrator", "nve", "integrator (nve, nvt)")
	f.StringVar(&evaluator, "evaluator", "cells", "force evaluator (cells, neighbors, brute)")
	f.IntVar(&workers, "workers", 0, "force workers (0 = GOMAXPROCS)")
	f.Float64Var(&thermalQ, "q", config.DefaultThermalMass, "Nose-Hoover thermal mass")
	f.IntVar(&trajEvery, "traj", 0, "write a trajectory frame every this many samples (0 = off)")
	f.BoolVar(&validate, "validate", false, "check every particle for NaN after each step")
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig layers defaults, a preset, a config file, MDSIM_* variables and
// explicitly set flags, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("particles") {
		cfg.System.Particles = particles
	}
	if flags.Changed("box") {
		cfg.System.Box = boxSide
	}
	if flags.Changed("temp") {
		cfg.System.Temperature = temperature
	}
	if flags.Changed("cutoff") {
		cfg.System.Cutoff = cutoff
	}
	if flags.Changed("skin") {
		cfg.System.Skin = skin
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("steps") {
		cfg.Steps = steps
	}
	if flags.Changed("report") {
		cfg.ReportEvery = reportEvery
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("potential") {
		cfg.Potential = potential
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("evaluator") {
		cfg.Evaluator = evaluator
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("q") {
		cfg.Thermostat.Q = thermalQ
	}
	if flags.Changed("traj") {
		cfg.Output.TrajectoryEvery = trajEvery
	}
	if flags.Changed("validate") {
		cfg.Output.Validate = validate
	}
	if flags.Changed("data") {
		cfg.Output.Dir = dataDir
	} else {
		dataDir = cfg.Output.Dir
	}

	return cfg, cfg.Validate()
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if replicas > 1 {
		return runReplicas(ctx, cfg, logger)
	}

	exp, err := experiment.New(cfg, logger)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	meta := exp.Metadata()
	meta.ID = storage.NewRunID(cfg.Name)

	if cfg.Output.TrajectoryEvery > 0 {
		runDir := st.RunDir(meta.ID)
		if err := os.MkdirAll(runDir, 0755); err != nil {
			return err
		}
		f, err := os.Create(filepath.Join(runDir, storage.TrajectoryFile))
		if err != nil {
			return err
		}
		defer f.Close()

		tw := storage.NewTrajectoryWriter(f)
		if err := tw.WriteFrame(exp.System()); err != nil {
			return err
		}
		exp.Simulator().AddObserver(experiment.TrajectoryObserver(tw, cfg.Output.TrajectoryEvery))
		meta.Trajectory = storage.TrajectoryFile
		meta.FrameInterval = frameInterval(cfg)
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("running %s: %d particles, %s/%s, %d steps",
		cfg.Name, exp.System().NumParticles(), cfg.Integrator, cfg.Evaluator, cfg.Steps)))

	result, err := exp.Run(ctx)
	if err != nil {
		var simErr *dynamo.SimulationError
		if !errors.As(err, &simErr) && !errors.Is(err, context.Canceled) {
			return err
		}
		if result == nil || len(result.Samples) == 0 {
			return err
		}
		logger.Error("run stopped early, saving partial record", "err", err)
	}

	runID, saveErr := st.Save(meta, result)
	if saveErr != nil {
		return saveErr
	}

	fmt.Printf("completed in %v\n", result.Elapsed.Round(time.Millisecond))
	fmt.Printf("run id: %s\n", okStyle.Render(runID))
	fmt.Printf("steps: %d  rebuilds: %d\n", result.StepsTaken, result.Builds)
	printMetrics(result.Metrics)

	if snapshot != "" {
		if serr := writeSnapshot(snapshot, exp.System()); serr != nil {
			return serr
		}
		fmt.Printf("snapshot: %s\n", snapshot)
	}
	return err
}

func writeSnapshot(path string, sys *dynamo.System) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteSnapshot(f, sys, viz.NewCamera(), 60, 30, 4); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// frameInterval is the simulated time between trajectory frames.
func frameInterval(cfg *config.Config) float64 {
	every := cfg.ReportEvery
	if every <= 0 {
		every = cfg.Steps
	}
	return cfg.Dt * float64(every*cfg.Output.TrajectoryEvery)
}

func runReplicas(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	fmt.Println(headerStyle.Render(fmt.Sprintf("running %d replicas of %s", replicas, cfg.Name)))
	results, err := experiment.RunEnsemble(ctx, cfg, replicas, logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REPLICA\tSEED\tSTEPS\tMEAN T\tDRIFT\tELAPSED")
	for i, r := range results {
		fmt.Fprintf(w, "%d\t%d\t%d\t%.4f\t%.3e\t%v\n",
			i, cfg.Seed+int64(i), r.StepsTaken, r.Metrics["temperature"], r.EnergyDrift, r.Elapsed.Round(time.Millisecond))
	}
	return w.Flush()
}

func printMetrics(metrics map[string]float64) {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %-18s %s\n", name, strconv.FormatFloat(metrics[name], 'g', 6, 64))
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tN\tSTEPS\tDT\tINTEG\tEVAL\tDRIFT")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.4g\t%s\t%s\t%.2e\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Particles,
			run.Steps,
			run.Dt,
			run.Integrator,
			run.Evaluator,
			run.Metrics["energy_drift"],
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadThermo(runID)
	if err != nil {
		return err
	}
	if len(samples) < 2 {
		return fmt.Errorf("run %s has %d samples, need at least 2 to plot", runID, len(samples))
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("system: %d particles, %s/%s\n", meta.Particles, meta.Integrator, meta.Potential)
	fmt.Printf("samples: %d\n\n", len(samples))

	for _, name := range strings.Split(columns, ",") {
		name = strings.TrimSpace(name)
		data, err := storage.Column(samples, name)
		if err != nil {
			return err
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(columnCaption(name)),
		)
		fmt.Println(graph)
		fmt.Println()

		if svgPrefix != "" {
			path := fmt.Sprintf("%s-%s.svg", svgPrefix, name)
			if err := os.WriteFile(path, []byte(export.SeriesToSVG(data, 800, 300, "#00ff88")), 0644); err != nil {
				return err
			}
			fmt.Println(dimStyle.Render("wrote " + path))
		}
	}
	return nil
}

func columnCaption(name string) string {
	switch name {
	case "ke":
		return "kinetic energy"
	case "pe":
		return "potential energy"
	case "total":
		return "total energy"
	case "temp":
		return "temperature"
	case "builds":
		return "neighbor rebuilds"
	}
	return name
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	samples, err := st.LoadThermo(runID)
	if err != nil {
		return err
	}
	if len(samples) < 4 {
		return fmt.Errorf("run %s has too few samples for a spectrum", runID)
	}

	data, err := storage.Column(samples, column)
	if err != nil {
		return err
	}
	sampleDt := samples[1].Time - samples[0].Time

	freqs, power := analysis.PowerSpectrum(data, sampleDt)
	graph := asciigraph.Plot(power[1:],
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("power spectrum (%s), up to %.3g per time unit", column, freqs[len(freqs)-1])),
	)
	fmt.Println(graph)
	fmt.Println()

	freq := analysis.DominantFrequency(data, sampleDt)
	fmt.Printf("dominant frequency: %.4g\n", freq)
	if freq > 0 {
		fmt.Printf("period: %.4g\n", 1.0/freq)
	}
	return nil
}

func msdRun(cmd *cobra.Command, args []string) error {
	path := trajFile
	var box geom.Box
	interval := frameDt

	if path == "" {
		if len(args) == 0 {
			return fmt.Errorf("need a run id or --file")
		}
		st := storage.New(dataDir)
		meta, err := st.Load(args[0])
		if err != nil {
			return err
		}
		if meta.Trajectory == "" {
			return fmt.Errorf("run %s has no trajectory (rerun with --traj)", meta.ID)
		}
		path = filepath.Join(st.RunDir(meta.ID), meta.Trajectory)
		box = geom.Box{X: meta.Box[0], Y: meta.Box[1], Z: meta.Box[2]}
		if interval == 0 {
			interval = meta.FrameInterval
		}
	} else {
		box = geom.Box{X: boxSide, Y: boxSide, Z: boxSide}
	}
	if interval <= 0 {
		return fmt.Errorf("unknown frame spacing, pass --frame-dt")
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	frames, err := storage.ReadTrajectory(f)
	if err != nil {
		return err
	}
	if wrapped {
		if err := box.Validate(); err != nil {
			return fmt.Errorf("--wrapped needs the box: %w", err)
		}
		if frames, err = analysis.Unwrap(frames, box); err != nil {
			return err
		}
	}

	msd, err := analysis.MSD(frames)
	if err != nil {
		return err
	}
	times := make([]float64, len(msd))
	for i := range times {
		times[i] = float64(i) * interval
	}

	fmt.Println(asciigraph.Plot(msd, asciigraph.Height(12), asciigraph.Width(80), asciigraph.Caption("mean squared displacement")))
	fmt.Println()

	fit, err := analysis.Diffusion(times, msd, skipFrac)
	if err != nil {
		return err
	}
	fmt.Printf("frames: %d  particles: %d\n", len(frames), len(frames[0]))
	fmt.Printf("D = %.5g  (slope %.5g, R^2 %.4f over %d points)\n", fit.D, fit.Slope, fit.RSquared, fit.Points)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadThermo(runID)
	if err != nil {
		return err
	}
	elapsed, _ := time.ParseDuration(meta.Elapsed)

	return storage.ExportJSON(os.Stdout, *meta, &sim.Result{
		Samples: samples,
		Metrics: meta.Metrics,
		Builds:  meta.Builds,
		Elapsed: elapsed,
	})
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tINTEG\tPOTENTIAL\tN\tBOX\tT\tDT\tCUTOFF\tSKIN\tSTEPS")
	for _, name := range config.ListPresets() {
		cfg := config.Presets[name]
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.4g\t%.3g\t%.3g\t%.3g\t%.3g\t%d\n",
			name, cfg.Integrator, cfg.Potential, cfg.System.Particles, cfg.BoxSide(),
			cfg.System.Temperature, cfg.Dt, cfg.System.Cutoff, cfg.System.Skin, cfg.Steps)
	}
	return w.Flush()
}

func writeConfig(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if preset != "" {
		if cfg = config.GetPreset(preset); cfg == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if err := config.Save(args[0], cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[0])
	return nil
}

func benchEvaluators(cmd *cobra.Command, args []string) error {
	ns, err := parseInts(sizes)
	if err != nil {
		return fmt.Errorf("--sizes: %w", err)
	}
	evals := strings.Split(evaluators, ",")
	for _, e := range evals {
		if _, err := compute.Lookup(strings.TrimSpace(e), workers); err != nil {
			return err
		}
	}

	base := config.GetPreset("scaling")
	base.Steps = benchSteps
	base.Workers = workers

	fmt.Println(headerStyle.Render(fmt.Sprintf("scaling study: L = (2N)^(1/3), %d steps, GOMAXPROCS=%d", benchSteps, runtime.GOMAXPROCS(0))))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "N\tBOX\tEVALUATOR\tTIME\tUS/STEP\tSTEPS/SEC\tREBUILDS")

	for _, n := range ns {
		for _, name := range evals {
			name = strings.TrimSpace(name)
			if name == "brute" && n > bruteMax {
				fmt.Fprintf(w, "%d\t\t%s\t%s\t\t\t\n", n, name, dimStyle.Render("skipped"))
				continue
			}

			cfg := base.Clone()
			cfg.System.Particles = n
			cfg.Evaluator = name

			exp, err := experiment.New(cfg, newQuietLogger())
			if err != nil {
				return fmt.Errorf("N=%d %s: %w", n, name, err)
			}
			start := time.Now()
			result, err := exp.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("N=%d %s: %w", n, name, err)
			}
			elapsed := time.Since(start)

			perStep := elapsed / time.Duration(result.StepsTaken)
			fmt.Fprintf(w, "%d\t%.3f\t%s\t%v\t%.1f\t%.0f\t%d\n",
				n, cfg.BoxSide(), name, elapsed.Round(time.Millisecond),
				float64(perStep.Nanoseconds())/1e3,
				float64(result.StepsTaken)/elapsed.Seconds(),
				result.Builds)
		}
	}
	return w.Flush()
}

func sweepRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	names, ranges, err := optim.ParseGrid(grid)
	if err != nil {
		return err
	}
	g, err := optim.NewGridSearch(names, ranges, newQuietLogger())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	total := 1
	for _, r := range ranges {
		total *= len(r)
	}
	fmt.Println(headerStyle.Render(fmt.Sprintf("sweeping %s over %d points, minimizing %s", cfg.Name, total, metric)))

	best, points, err := g.Search(ctx, cfg, metric)
	if len(points) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t"))+"\t"+strings.ToUpper(metric))
		for _, p := range points {
			row := make([]string, 0, len(names)+1)
			for _, name := range names {
				row = append(row, strconv.FormatFloat(p.Params[name], 'g', 6, 64))
			}
			if p.Err != nil {
				row = append(row, dimStyle.Render("failed: "+p.Err.Error()))
			} else {
				row = append(row, strconv.FormatFloat(p.Value, 'g', 6, 64))
			}
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		if ferr := w.Flush(); ferr != nil {
			return ferr
		}
	}
	if err != nil {
		return err
	}

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%g", name, best.Params[name]))
	}
	fmt.Printf("\nbest: %s  %s=%s\n", okStyle.Render(strings.Join(parts, " ")), metric, strconv.FormatFloat(best.Value, 'g', 6, 64))
	return nil
}

func scenarioRun(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	logger := newLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	if sc.Description != "" {
		fmt.Println(dimStyle.Render(sc.Description))
	}
	results, runErr := automation.RunScenario(ctx, sc, logger)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tINTEGRATOR\tSTEPS\tMEAN T\tDRIFT\tRUN ID")
	for i, r := range results {
		if len(r.Result.Samples) == 0 {
			continue
		}
		runID, err := st.Save(experiment.Metadata(r.Config), r.Result)
		if err != nil {
			return err
		}
		name := r.Stage.Name
		if name == "" {
			name = strconv.Itoa(i + 1)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.4f\t%.3e\t%s\n",
			name, r.Config.Integrator, r.Result.StepsTaken, r.Result.Metrics["temperature"], r.Result.EnergyDrift, runID)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func newQuietLogger() *slog.Logger {
	if verbose {
		return newLogger()
	}
	return slog.New(slog.DiscardHandler)
}

func runLive(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && configFile == "" {
		return viz.RunPicker()
	}

	var cfg *config.Config
	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	default:
		if cfg = config.GetPreset(args[0]); cfg == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if cmd.Flags().Changed("steps") {
		cfg.Steps = steps
	}
	return viz.RunLive(cfg)
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if v < 1 {
			return nil, fmt.Errorf("size must be >= 1, got %d", v)
		}
		out = append(out, v)
	}
	return out, nil
}
