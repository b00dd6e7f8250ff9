// Command planner plans cylinder collection routes from map files, tunes the
// cost weights over a set of maps and animates plans in the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"cylroute/internal/config"
	"cylroute/internal/integrations"
	"cylroute/internal/integrations/textfile"
	"cylroute/internal/model"
	"cylroute/internal/opt"
	"cylroute/internal/store"
	"cylroute/internal/tune"
	"cylroute/internal/viz"
)

const usage = `usage:
  planner plan  -map f.txt [-out dir] [-name script.txt] [-config cfg.yaml] [-ox 0 -oy 0]
  planner tune  -maps a.txt,b.txt [-trials 1000] [-workers 8] [-seed 1] [-sqlite runs.db]
  planner show  -map f.txt [-delay 300ms] [-config cfg.yaml]`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "planner:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return flag.ErrHelp
	}
	switch args[0] {
	case "plan":
		return runPlan(ctx, args[1:], stdout)
	case "tune":
		return runTune(ctx, args[1:], stdout)
	case "show":
		return runShow(ctx, args[1:], stdout)
	case "-h", "-help", "--help", "help":
		fmt.Fprintln(stdout, usage)
		return nil
	}
	fmt.Fprintln(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", args[0])
}

// loadPlanner reads the config file, if any, and applies origin overrides.
func loadPlanner(path string) (opt.Planner, opt.Point, config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return opt.Planner{}, opt.Point{}, config.Config{}, err
	}
	return cfg.Planner(), cfg.Origin, cfg, nil
}

func runPlan(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	mapPath := fs.String("map", "", "map file with one \"x y category\" row per cylinder")
	outDir := fs.String("out", "", "directory the command script is appended to (empty: print only)")
	name := fs.String("name", "", "script file name (default <map>.cmd)")
	cfgPath := fs.String("config", "", "YAML config file")
	ox := fs.Float64("ox", 0, "origin x (overrides config)")
	oy := fs.Float64("oy", 0, "origin y (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *mapPath == "" {
		return errors.New("plan: -map is required")
	}
	planner, origin, _, err := loadPlanner(*cfgPath)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ox":
			origin.X = *ox
		case "oy":
			origin.Y = *oy
		}
	})

	src := textfile.Source{Path: *mapPath}
	cyls, err := src.Load(ctx)
	if err != nil {
		return err
	}
	res, err := planner.Plan(cyls, origin)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "map:    %s (%d cylinders)\n", src.Name(), len(cyls))
	fmt.Fprintf(stdout, "order:  %v\n", []int(res.Order))
	fmt.Fprintf(stdout, "cost:   %.4f\n", res.Cost)
	fmt.Fprintf(stdout, "score:  %.0f\n", res.Score)
	fmt.Fprintf(stdout, "length: %.3f\n", res.Path.Length())
	fmt.Fprintf(stdout, "passes: %d (%d improvements, %d route calls)\n",
		res.Stats.RefinePasses, res.Stats.Improvements, res.Stats.RouteCalls)

	if *outDir == "" {
		for _, l := range opt.CommandLines(res.Commands) {
			fmt.Fprintln(stdout, l)
		}
		return nil
	}
	script := *name
	if script == "" {
		script = strings.TrimSuffix(src.Name(), filepath.Ext(src.Name())) + ".cmd"
	}
	var sink integrations.CommandSink = textfile.Sink{Dir: *outDir}
	if err := sink.Write(ctx, script, res.Commands); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "script: %s\n", filepath.Join(*outDir, script))
	return nil
}

func runTune(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("tune", flag.ContinueOnError)
	maps := fs.String("maps", "", "comma separated map files")
	cfgPath := fs.String("config", "", "YAML config file")
	trials := fs.Int("trials", 0, "number of weight samples (default from config)")
	workers := fs.Int("workers", 0, "concurrent trials (default from config)")
	seed := fs.Int64("seed", 0, "base seed; trial i uses seed+i (default from config)")
	sqlitePath := fs.String("sqlite", "", "SQLite file the run is recorded in")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*maps) == "" {
		return errors.New("tune: -maps is required")
	}
	planner, origin, cfg, err := loadPlanner(*cfgPath)
	if err != nil {
		return err
	}
	if *trials == 0 {
		*trials = cfg.Tune.Trials
	}
	if *workers == 0 {
		*workers = cfg.Tune.Workers
	}
	if *seed == 0 {
		*seed = cfg.Tune.Seed
	}

	var srcs []integrations.MapSource
	for _, p := range strings.Split(*maps, ",") {
		if p = strings.TrimSpace(p); p != "" {
			srcs = append(srcs, textfile.Source{Path: p})
		}
	}
	cylMaps, err := integrations.LoadAll(ctx, srcs)
	if err != nil {
		return err
	}

	var st *store.SQLite
	if *sqlitePath != "" {
		if st, err = store.NewSQLite(ctx, *sqlitePath); err != nil {
			return err
		}
		defer st.Close()
	}

	started := time.Now().UTC()
	res, err := tune.Search(ctx, cylMaps, tune.Options{
		Trials:    *trials,
		Workers:   *workers,
		Seed:      *seed,
		Origin:    origin,
		Profile:   planner.Profile,
		Policy:    planner.Policy,
		MaxPasses: planner.MaxPasses,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "trials: %d run, %d failed\n", len(res.Trials), res.Failed())
	best, ok := res.Best()
	if ok {
		fmt.Fprintf(stdout, "best:   trial %d  fuel=%.4f time=%.4f value=%.4f  avg score %.3f\n",
			best.Index, best.Weights.Fuel, best.Weights.Time, best.Weights.Value, best.AvgScore)
	} else {
		fmt.Fprintln(stdout, "best:   none (every trial failed)")
	}

	if st != nil {
		run := tuneRecord(res, *seed, *trials, started)
		// a canceled ctx must not prevent recording the partial run
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.SaveTuneRun(saveCtx, run); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "run:    %s saved to %s\n", run.ID, *sqlitePath)
	}
	if res.Canceled {
		return ctx.Err()
	}
	return nil
}

func tuneRecord(res tune.Result, seed int64, trials int, started time.Time) model.TuneRun {
	now := time.Now().UTC()
	run := model.TuneRun{
		ID:         store.NewID(),
		Status:     model.TuneCompleted,
		CreatedAt:  started,
		FinishedAt: &now,
		Seed:       seed,
		Trials:     trials,
		Completed:  len(res.Trials),
		Failed:     res.Failed(),
		Results:    make([]model.TuneTrial, len(res.Trials)),
	}
	if res.Canceled {
		run.Status = model.TuneCanceled
	}
	for i, t := range res.Trials {
		run.Results[i] = model.TuneTrial{Index: t.Index, Weights: t.Weights, AvgScore: t.AvgScore}
		if t.Err != nil {
			run.Results[i].Error = t.Err.Error()
		}
	}
	if best, ok := res.Best(); ok {
		b := run.Results[best.Index]
		run.Best = &b
	}
	return run
}

func runShow(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	mapPath := fs.String("map", "", "map file")
	cfgPath := fs.String("config", "", "YAML config file")
	delay := fs.Duration("delay", 300*time.Millisecond, "pause between frames")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *mapPath == "" {
		return errors.New("show: -map is required")
	}
	planner, origin, _, err := loadPlanner(*cfgPath)
	if err != nil {
		return err
	}
	cyls, err := textfile.Source{Path: *mapPath}.Load(ctx)
	if err != nil {
		return err
	}
	res, err := planner.Plan(cyls, origin)
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	a := viz.NewAnimator(screen, cyls, res.Path, planner.Profile)
	a.Delay = *delay
	a.Hold = true
	err = a.Run(ctx)
	screen.Fini()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Fprintf(stdout, "score %.0f, cost %.4f\n", res.Score, res.Cost)
	return nil
}
