package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/tethermap/internal/config"
	"github.com/san-kum/tethermap/internal/logging"
	"github.com/san-kum/tethermap/internal/mapping"
	"github.com/san-kum/tethermap/internal/metrics"
	"github.com/san-kum/tethermap/internal/optim"
	"github.com/san-kum/tethermap/internal/scenario"
	"github.com/san-kum/tethermap/internal/session"
	"github.com/san-kum/tethermap/internal/sim"
	"github.com/san-kum/tethermap/internal/storage"
	"github.com/san-kum/tethermap/internal/viz"
	"github.com/spf13/cobra"
)

var (
	configFile   string
	dataDir      string
	preset       string
	dt           float64
	duration     float64
	integrator   string
	realTime     float64
	scenarioFile string
	method       string
	resolution   float64
	workers      int
	skipGradient bool
	logLevel     string
	save         bool
	// slice view
	axisName  string
	layer     int
	themeName string
	// export
	format string
	output string
	svgFile string
	// tune
	params []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "tethermap",
		Short:         "voxel distance maps and tethered link control",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "map store directory (default from config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "simulate the tethered link with map requests from a scenario",
		RunE:  runSession,
	}
	addSimFlags(runCmd)
	addMapFlags(runCmd)
	runCmd.Flags().StringVarP(&scenarioFile, "scenario", "s", "", "scenario file (yaml)")
	runCmd.Flags().BoolVar(&save, "save", false, "store every successful map")
	runCmd.Flags().StringVar(&svgFile, "svg", "", "write the top-down link trail as SVG")

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "build a single map of the configured world",
		RunE:  buildMap,
	}
	addMapFlags(buildCmd)
	buildCmd.Flags().StringVarP(&preset, "preset", "p", "", "world preset")
	buildCmd.Flags().BoolVar(&save, "save", false, "store the map")
	buildCmd.Flags().StringVar(&axisName, "axis", "z", "slice axis (x, y, z)")
	buildCmd.Flags().StringVar(&themeName, "theme", "thermal", "color theme")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "run with a live map and link view",
		RunE:  watchSession,
	}
	addSimFlags(watchCmd)
	addMapFlags(watchCmd)
	watchCmd.Flags().StringVarP(&scenarioFile, "scenario", "s", "", "scenario file (yaml)")
	watchCmd.Flags().StringVar(&themeName, "theme", "thermal", "color theme")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored maps",
		RunE:  listMaps,
	}

	showCmd := &cobra.Command{
		Use:   "show [map_id]",
		Short: "render a slice and distance profile of a stored map",
		Args:  cobra.ExactArgs(1),
		RunE:  showMap,
	}
	showCmd.Flags().StringVar(&axisName, "axis", "z", "slice axis (x, y, z)")
	showCmd.Flags().IntVar(&layer, "layer", -1, "slice layer (default middle)")
	showCmd.Flags().StringVar(&themeName, "theme", "thermal", "color theme")

	exportCmd := &cobra.Command{
		Use:   "export [map_id]",
		Short: "export a stored map",
		Args:  cobra.ExactArgs(1),
		RunE:  exportMap,
	}
	exportCmd.Flags().StringVarP(&format, "format", "f", "json", "output format (json, csv, wire, svg)")
	exportCmd.Flags().StringVar(&axisName, "axis", "z", "slice axis for svg")
	exportCmd.Flags().IntVar(&layer, "layer", -1, "slice layer for svg (default middle)")
	exportCmd.Flags().StringVar(&themeName, "theme", "thermal", "color theme for svg")
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search tether gains for the lowest tracking error",
		RunE:  tuneGains,
	}
	addSimFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&params, "param", nil, "gain range as stage.param=lo:hi:n (repeatable)")
	tuneCmd.Flags().StringVarP(&scenarioFile, "scenario", "s", "", "scenario file (yaml)")
	_ = tuneCmd.MarkFlagRequired("param")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list world presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSHAPES\tBOUNDS")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%d\t%v\n", name, len(p.Shapes), p.Bounds.Size)
			}
			return w.Flush()
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write the default config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Save(args[0], config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, buildCmd, watchCmd, tuneCmd, listCmd, showCmd, exportCmd, presetsCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "time step")
	cmd.Flags().Float64VarP(&duration, "time", "t", config.DefaultDuration, "duration")
	cmd.Flags().StringVarP(&integrator, "integrator", "i", "rk4", "integrator")
	cmd.Flags().Float64Var(&realTime, "rt", 0, "real-time factor (0 runs unpaced)")
	cmd.Flags().StringVarP(&preset, "preset", "p", "", "world preset")
}

func addMapFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&method, "method", "m", "exact", "distance transform (exact, wavefront)")
	cmd.Flags().Float64VarP(&resolution, "resolution", "r", config.DefaultResolution, "cell size")
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "probe workers")
	cmd.Flags().BoolVar(&skipGradient, "no-gradient", false, "skip the gradient field")
}

// loadConfig reads the config file, if any, and applies the flags the user
// set explicitly on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Sim.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Sim.Duration = duration
	}
	if flags.Changed("integrator") {
		cfg.Sim.Integrator = integrator
	}
	if flags.Changed("rt") {
		cfg.Sim.RealTimeFactor = realTime
	}
	if flags.Changed("preset") {
		cfg.World.Preset = preset
	}
	if flags.Changed("method") {
		cfg.Map.Method = method
	}
	if flags.Changed("resolution") {
		cfg.Map.Resolution = resolution
	}
	if flags.Changed("workers") {
		cfg.Map.Workers = workers
	}
	if flags.Changed("no-gradient") {
		cfg.Map.SkipGradient = skipGradient
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if dataDir != "" {
		cfg.Map.StoreDir = dataDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func store() (*storage.Store, error) {
	dir := dataDir
	if dir == "" {
		cfg := config.DefaultConfig()
		if configFile != "" {
			loaded, err := config.Load(configFile)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
		dir = cfg.Map.StoreDir
	}
	return storage.New(dir), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var sc *scenario.Scenario
	if scenarioFile != "" {
		if sc, err = scenario.LoadScenario(scenarioFile); err != nil {
			return fmt.Errorf("failed to load scenario: %w", err)
		}
	}

	trail := &distanceTrail{}
	s, err := session.New(cfg, session.WithLogger(logger), session.WithObserver(trail))
	if err != nil {
		return err
	}
	trail.target = func() [3]float64 { return s.Controller().Target().Pose.Position }

	ctx, cancel := signalContext()
	defer cancel()

	name := cfg.World.Preset
	if name == "" {
		name = "custom"
	}
	fmt.Printf("running %s world for %.2fs (dt %.4f, %s)...\n", name, cfg.Sim.Duration, cfg.Sim.Dt, cfg.Sim.Integrator)
	report, err := s.Run(ctx, sc)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", report.Elapsed)
	fmt.Printf("steps: %d\n", report.Sim.StepsTaken)
	if len(report.Sim.Errors) > 0 {
		fmt.Printf("step errors: %d (first: %v)\n", len(report.Sim.Errors), report.Sim.Errors[0])
	}
	if report.Scenario != nil {
		fmt.Printf("scenario events: %d fired, %d failed\n", report.Scenario.Fired, len(report.Scenario.Errors))
	}

	fmt.Println("\nmetrics:")
	printMetrics(report.Sim.Metrics)
	printMetrics(report.Builds)

	if len(report.Maps) > 0 {
		fmt.Println()
		if err := printMaps(report.Maps, cfg); err != nil {
			return err
		}
	}

	if len(trail.values) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(downsample(trail.values, 80),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("distance to target"),
		))
		if hz, ok := metrics.DominantFrequency(trail.values, cfg.Sim.Dt); ok {
			fmt.Printf("dominant oscillation: %.3f hz\n", hz)
		}
	}

	if svgFile != "" {
		svg := viz.TrailSVG(trail.path, 600, 600, "#00ffff")
		if err := os.WriteFile(svgFile, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("\ntrail written to %s\n", svgFile)
	}
	return nil
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, m[name])
	}
}

func printMaps(results []mapping.Result, cfg *config.Config) error {
	var st *storage.Store
	if save {
		st = storage.New(cfg.Map.StoreDir)
		if err := st.Init(); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REQUEST\tSTATUS\tCELLS\tOCCUPIED\tQUEUED\tBUILD\tSTORED")
	for i := range results {
		res := &results[i]
		stored := "-"
		if st != nil && res.OK() {
			id, err := st.Save(res)
			if err != nil {
				return err
			}
			stored = id
		}
		detail := res.Status.String()
		if res.Err != nil {
			detail = fmt.Sprintf("%s (%v)", detail, res.Err)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%v\t%v\t%s\n",
			res.RequestID,
			detail,
			res.Region.Len(),
			res.Stats.Occupied,
			res.QueuedFor.Round(time.Microsecond),
			res.Elapsed.Round(time.Microsecond),
			stored,
		)
	}
	return w.Flush()
}

func buildMap(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	axis, err := viz.ParseAxis(axisName)
	if err != nil {
		return err
	}
	scene, err := cfg.World.BuildScene()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	res, err := session.Build(ctx, cfg, scene, mapping.Request{
		ID:           "build",
		Region:       cfg.Region(),
		SkipGradient: cfg.Map.SkipGradient,
	}, logger)
	if err != nil {
		return err
	}
	if !res.OK() {
		return res.Err
	}

	fmt.Printf("map: %s (%s)\n", res.RequestID, res.Method)
	fmt.Printf("cells: %d (%d free, %d occupied, %d out of bounds)\n",
		res.Region.Len(), res.Stats.Free, res.Stats.Occupied, res.Stats.OutOfBounds)
	if res.Stats.QueryErrors > 0 {
		fmt.Printf("query errors: %d\n", res.Stats.QueryErrors)
	}
	fmt.Printf("build: %v\n\n", res.Elapsed)

	theme := viz.GetTheme(themeName)
	slice, err := viz.RenderSlice(res.SDF, axis, viz.Layers(res.SDF, axis)/2, theme)
	if err != nil {
		return err
	}
	fmt.Println(slice)
	fmt.Println(viz.Legend(res.SDF, theme))

	if save {
		st := storage.New(cfg.Map.StoreDir)
		if err := st.Init(); err != nil {
			return err
		}
		id, err := st.Save(res)
		if err != nil {
			return err
		}
		fmt.Printf("\nmap id: %s\n", id)
	}
	return nil
}

func watchSession(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// The terminal belongs to the viewer; logs go to the file only.
	if cfg.Log.File == "" {
		cfg.Log.Level = "error"
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var sc *scenario.Scenario
	if scenarioFile != "" {
		if sc, err = scenario.LoadScenario(scenarioFile); err != nil {
			return fmt.Errorf("failed to load scenario: %w", err)
		}
	}
	if cfg.Sim.RealTimeFactor == 0 {
		cfg.Sim.RealTimeFactor = 1
	}

	p := tea.NewProgram(viz.NewViewer(viz.GetTheme(themeName)), tea.WithAltScreen())
	sink := viz.NewTeaSink(p, 256)
	defer sink.Close()

	s, err := session.New(cfg, session.WithLogger(logger), session.WithSink(sink))
	if err != nil {
		return err
	}
	every := int(math.Max(1, math.Round(1.0/30/cfg.Sim.Dt)))
	s.Simulator().AddHook(sim.HookFunc(func(step sim.Step) error {
		if step.Index%every == 0 {
			sink.Send(viz.LinkMsg{
				Time:   step.Time,
				State:  s.Link().LinkState(),
				Target: s.Controller().Target(),
			})
		}
		return nil
	}))

	ctx, cancel := signalContext()
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(ctx, sc)
		sink.Send(viz.DoneMsg{Err: err})
		done <- err
	}()

	_, uiErr := p.Run()
	cancel()
	runErr := <-done
	if uiErr != nil {
		return uiErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func listMaps(cmd *cobra.Command, args []string) error {
	st, err := store()
	if err != nil {
		return err
	}
	maps, err := st.List()
	if err != nil {
		return err
	}

	if len(maps) == 0 {
		fmt.Println("no maps found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREQUEST\tTIME\tEXTENTS\tRES\tMETHOD\tOCCUPIED\tBUILD")
	for _, m := range maps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%dx%dx%d\t%.3f\t%s\t%d\t%.2fms\n",
			m.ID,
			m.RequestID,
			m.Timestamp.Format("2006-01-02 15:04:05"),
			m.Extents[0], m.Extents[1], m.Extents[2],
			m.Resolution,
			m.Method,
			m.Occupied,
			m.BuildMillis,
		)
	}
	return w.Flush()
}

func showMap(cmd *cobra.Command, args []string) error {
	mapID := args[0]

	st, err := store()
	if err != nil {
		return err
	}
	meta, err := st.Load(mapID)
	if err != nil {
		return err
	}
	msg, err := st.LoadMessage(mapID)
	if err != nil {
		return err
	}
	field, err := msg.Field()
	if err != nil {
		return err
	}
	axis, err := viz.ParseAxis(axisName)
	if err != nil {
		return err
	}
	if layer < 0 {
		layer = viz.Layers(field, axis) / 2
	}

	fmt.Printf("map: %s\n", meta.ID)
	fmt.Printf("request: %s\n", meta.RequestID)
	fmt.Printf("method: %s\n", meta.Method)
	fmt.Printf("distance: %.3f .. %.3f\n\n", meta.MinDistance, meta.MaxDistance)

	theme := viz.GetTheme(themeName)
	slice, err := viz.RenderSlice(field, axis, layer, theme)
	if err != nil {
		return err
	}
	fmt.Printf("%s = %d\n", axis, layer)
	fmt.Println(slice)
	fmt.Println(viz.Legend(field, theme))

	// Profile along the first in-plane axis through the middle of the slice.
	along := (axis + 1) % 3
	across := (axis + 2) % 3
	a, b := layer, field.Region().Extents[across]/2
	if axis > across {
		a, b = b, a
	}
	values, err := viz.Profile(field, along, a, b)
	if errors.Is(err, viz.ErrEmptyProfile) {
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(viz.PlotProfile(values, fmt.Sprintf("distance along %s", along), 80, 10))
	return nil
}

func exportMap(cmd *cobra.Command, args []string) error {
	mapID := args[0]

	st, err := store()
	if err != nil {
		return err
	}

	out := os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	switch strings.ToLower(format) {
	case "json":
		meta, err := st.Load(mapID)
		if err != nil {
			return err
		}
		return storage.ExportJSON(out, *meta)
	case "csv":
		cells, err := st.LoadCells(mapID)
		if err != nil {
			return err
		}
		return storage.WriteCells(out, cells)
	case "wire", "pb":
		data, err := st.LoadWire(mapID)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	case "svg":
		msg, err := st.LoadMessage(mapID)
		if err != nil {
			return err
		}
		field, err := msg.Field()
		if err != nil {
			return err
		}
		axis, err := viz.ParseAxis(axisName)
		if err != nil {
			return err
		}
		if layer < 0 {
			layer = viz.Layers(field, axis) / 2
		}
		svg, err := viz.SliceSVG(field, axis, layer, viz.GetTheme(themeName), 8)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, svg)
		return err
	default:
		return fmt.Errorf("unknown format: %s (available: json, csv, wire, svg)", format)
	}
}

func tuneGains(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var sc *scenario.Scenario
	if scenarioFile != "" {
		if sc, err = scenario.LoadScenario(scenarioFile); err != nil {
			return fmt.Errorf("failed to load scenario: %w", err)
		}
	}

	names := make([]string, 0, len(params))
	ranges := make([][]float64, 0, len(params))
	for _, p := range params {
		name, values, err := optim.ParseRange(p)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}
	search, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("tuning %s over %d trials...\n\n", strings.Join(names, ", "), search.Size())
	best, trials, err := session.Tune(ctx, cfg, sc, search, logger)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(session.TuneMetric))
	for _, t := range trials {
		row := make([]string, len(names))
		for i, n := range names {
			row[i] = fmt.Sprintf("%.4g", t.Params[n])
		}
		score := fmt.Sprintf("%.6f", t.Score)
		if t.Err != nil {
			score = "error: " + t.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\n", strings.Join(row, "\t"), score)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	if err != nil {
		return err
	}

	fmt.Println("\nbest:")
	for _, n := range names {
		fmt.Printf("  %s: %.4g\n", n, best.Params[n])
	}
	fmt.Printf("  %s: %.6f\n", session.TuneMetric, best.Score)
	return nil
}

// distanceTrail samples the link's distance to its commanded target.
type distanceTrail struct {
	target func() [3]float64
	values []float64
	path   [][2]float64
}

func (d *distanceTrail) OnStep(x sim.State, u sim.Control, t float64) {
	if d.target == nil || len(x) < 3 {
		return
	}
	d.path = append(d.path, [2]float64{x[0], x[1]})
	p := d.target()
	d.values = append(d.values, math.Sqrt(sq(x[0]-p[0])+sq(x[1]-p[1])+sq(x[2]-p[2])))
}

func sq(v float64) float64 { return v * v }

func downsample(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = values[i*len(values)/n]
	}
	return out
}
