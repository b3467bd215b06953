// diag is an offline sanity-check tool: it loads a scenario payload from a
// JSON file and prints the reconstructed orbit estimates against the
// authoritative metadata.
package main

import (
	"flag"
	"fmt"
	"os"

	"log/slog"

	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/diagnostics"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/engine"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/scenario"
)

func main() {
	var (
		file        = flag.String("file", "", "path to a scenario payload JSON file")
		scaleFactor = flag.Float64("scale", 1e-6, "display units per kilometer")
	)
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: diag -file scenario.json [-scale 1e-6]")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	f, err := os.Open(*file)
	if err != nil {
		fatal("opening payload: %v", err)
	}
	defer f.Close()

	sc, err := scenario.Parse(f, logger)
	if err != nil {
		fatal("parsing payload: %v", err)
	}
	sc.Source = *file

	eng, err := engine.New(engine.Config{
		ScaleFactor:     *scaleFactor,
		OrbitPathPoints: 512,
		DurationMs:      20000,
	}, scenario.NewStore(), logger)
	if err != nil {
		fatal("engine init: %v", err)
	}

	sim, err := eng.Load(sc)
	if err != nil {
		fatal("loading scenario: %v", err)
	}

	fmt.Printf("asteroid: %s\n", sc.AsteroidID)
	fmt.Printf("  samples: asteroid=%d earth=%d timestamped=%v\n",
		sim.Asteroid.Len(), sim.Earth.Len(), sim.Asteroid.Timestamped())
	if sim.Span.Valid {
		fmt.Printf("  span: %.1f .. %.1f (%.2f days)\n",
			sim.Span.Start, sim.Span.End, (sim.Span.End-sim.Span.Start)/86400)
	} else {
		fmt.Println("  span: none (index-ordered samples)")
	}

	report, ok := eng.Diagnostics()
	if !ok {
		fatal("too few samples for diagnostics")
	}

	printBody("asteroid", report.Asteroid)
	printBody("earth", report.Earth)

	if report.Approach != nil {
		fmt.Printf("closest approach: %.0f km at sample %d (progress %.3f)\n",
			report.Approach.DistanceKm, report.Approach.Index, report.Approach.Progress)
	}
}

func printBody(name string, r *diagnostics.Report) {
	if r == nil {
		return
	}
	fmt.Printf("%s orbit estimate (%d points):\n", name, r.PointCount)
	fmt.Printf("  r_min=%.0f km  r_max=%.0f km\n", r.RMinKm, r.RMaxKm)
	fmt.Printf("  a=%.0f km  e=%.5f\n", r.SemiMajorAxisKm, r.Eccentricity)
	if r.Comparison != nil {
		printDelta("a", r.Comparison.SemiMajorAxis)
		printDelta("e", r.Comparison.Eccentricity)
		printDelta("q", r.Comparison.Perihelion)
		printDelta("Q", r.Comparison.Aphelion)
	}
}

func printDelta(name string, d diagnostics.Delta) {
	if d.PercentValid {
		fmt.Printf("  Δ%s = %.4g (%.2f%%)\n", name, d.Absolute, d.Percent)
		return
	}
	fmt.Printf("  Δ%s = %.4g\n", name, d.Absolute)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
