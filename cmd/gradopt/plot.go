package main

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// plotConvergence draws log10 ‖∇f‖∞ against the iteration for every run and
// saves the plot to path. The image format follows the file extension.
func plotConvergence(path, title string, runs []comparison) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "log10 gradient norm"
	p.Add(plotter.NewGrid())

	lines := make([]interface{}, 0, 2*len(runs))
	for _, run := range runs {
		pts := make(plotter.XYs, 0, len(run.History))
		for _, it := range run.History {
			// log10 is undefined at an exact zero gradient
			if !(it.GradientNorm > 0) || math.IsInf(it.GradientNorm, 1) {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(it.Iteration), Y: math.Log10(it.GradientNorm)})
		}
		if len(pts) == 0 {
			continue
		}
		lines = append(lines, run.title(), pts)
	}

	if err := plotutil.AddLines(p, lines...); err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	return nil
}
