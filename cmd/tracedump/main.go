// Command tracedump prints a summary of a trace bundle written by contactdemo.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/setanarut/cm3d/trace"
)

func main() {
	events := flag.Bool("events", false, "print every contact event")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-events] <bundle dir>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	t, err := trace.Load(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "tracedump:", err)
		os.Exit(1)
	}
	summarize(os.Stdout, t, *events)
}

func summarize(w io.Writer, t *trace.Trace, events bool) {
	fmt.Fprintf(w, "trace %s (version %d, created %s)\n", t.Manifest.Name, t.Manifest.Version, t.Manifest.CreatedAt)
	fmt.Fprintf(w, "frames: %d\n", len(t.Frames))
	if n := len(t.Frames); n > 0 {
		fmt.Fprintf(w, "steps: %d..%d, simulated %.3fs\n", t.Frames[0].Step, t.Frames[n-1].Step, t.Frames[n-1].Time)
	}

	counts := t.KindCounts()
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	fmt.Fprintf(w, "events: %d\n", len(t.Events))
	for _, kind := range kinds {
		fmt.Fprintf(w, "  %-10s %d\n", kind, counts[kind])
	}

	if events {
		for _, e := range t.Events {
			fmt.Fprintf(w, "%6d %-10s %d-%d points=%d", e.Step, e.Kind, e.BodyA, e.BodyB, e.Points)
			if e.Estimate != nil {
				total := 0.0
				for _, j := range e.Estimate.Impulses {
					total += j
				}
				fmt.Fprintf(w, " restitution=%g impulse=%.4f", e.Restitution, total)
			}
			fmt.Fprintln(w)
		}
	}

	if n := len(t.Frames); n > 0 {
		fmt.Fprintln(w, "final state:")
		for _, b := range t.Frames[n-1].Bodies {
			fmt.Fprintf(w, "  body %d p=(%.3f, %.3f, %.3f) v=(%.3f, %.3f, %.3f)\n",
				b.ID, b.Position[0], b.Position[1], b.Position[2], b.Velocity[0], b.Velocity[1], b.Velocity[2])
		}
	}
}
