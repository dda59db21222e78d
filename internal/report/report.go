// Package report renders search outcomes as text and as a trial plot.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/randsearch/internal/experiment"
	"github.com/YuminosukeSato/randsearch/pkg/errors"
)

// Summary writes, per outcome, the selected combination, its
// cross-validated score, the test accuracy and the classification report.
func Summary(w io.Writer, outcomes []experiment.Outcome) error {
	for i, o := range outcomes {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		var b strings.Builder
		if o.Rejected != nil {
			fmt.Fprintf(&b, "== %s (%s search rejected) ==\n%v\n", o.Model, o.Strategy, o.Rejected)
			if _, err := io.WriteString(w, b.String()); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(&b, "== %s (%s search, %d trials over %d distinct combinations) ==\n",
			o.Model, o.Strategy, len(o.Trials), o.Space.DistinctSize())
		fmt.Fprintf(&b, "best params:   %s\n", o.BestParams)
		fmt.Fprintf(&b, "cv accuracy:   %.4f\n", o.BestScore)
		fmt.Fprintf(&b, "test accuracy: %.4f\n", o.TestAccuracy)
		fmt.Fprintf(&b, "elapsed:       %s\n\n", o.Duration.Round(1e6))
		if o.Report != nil {
			b.WriteString(o.Report.String())
		}
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}

// PlotTrials saves the mean cross-validated score of every trial, one
// line per outcome. Rejected outcomes are left out. The format follows the
// file extension (png, svg, pdf).
func PlotTrials(outcomes []experiment.Outcome, path string) error {
	if len(outcomes) == 0 {
		return errors.NewValueError("PlotTrials", "no outcomes to plot")
	}

	p := plot.New()
	p.Title.Text = "Cross-validated accuracy per trial"
	p.X.Label.Text = "trial"
	p.Y.Label.Text = "mean CV accuracy"
	p.Add(plotter.NewGrid())

	for i, o := range outcomes {
		if o.Rejected != nil {
			continue
		}
		pts := make(plotter.XYs, len(o.Trials))
		for j, tr := range o.Trials {
			pts[j].X = float64(tr.Trial)
			pts[j].Y = tr.MeanScore
		}
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return errors.Wrapf(err, "plot %s %s", o.Model, o.Strategy)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i)
		points.Color = plotutil.Color(i)
		points.Shape = plotutil.Shape(i)
		p.Add(line, points)
		p.Legend.Add(o.Model+" ("+o.Strategy+")", line, points)
	}
	p.Legend.Top = false
	p.Legend.Left = false

	if filepath.Ext(path) == "" {
		return errors.NewValidationError("plot_path", "needs a file extension such as .png or .svg", path)
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save plot to %s", path)
	}
	return nil
}
