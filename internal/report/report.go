// Package report summarises district populations and draws them as a bar
// chart.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	_ "gonum.org/v1/plot/vg/vgimg" // png writer

	"falcomplot/internal/app"
	"falcomplot/pkg/colorutil"
)

// ErrNoDistricts is returned when there is nothing to chart.
var ErrNoDistricts = errors.New("no districts")

// District is one row of the summary.
type District struct {
	ID         int
	Blocks     int
	Population float64
	Color      string

	// FromMetadata is true when Population came from the district document
	// rather than a sum over member blocks.
	FromMetadata bool
	Within       bool
}

// Summary describes every assigned district.
type Summary struct {
	Districts []District

	Mean, StdDev float64
	Min, Max     float64
	Total        float64

	// Ideal is the tree's ideal population, when known.
	Ideal   *float64
	Epsilon *float64
	Within  int
}

// Summarize builds a summary in ascending district order.
func Summarize(snap app.Snapshot) Summary {
	members := snap.DistrictMembers()
	ids := make([]int, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var meta *app.TreeMetadata
	if snap.Tree != nil {
		meta = snap.Tree.Metadata
	}

	var sum Summary
	if meta != nil {
		sum.Ideal, sum.Epsilon = meta.IdealPop, meta.Epsilon
	}
	for _, id := range ids {
		blockIDs := members[id]
		d := District{ID: id, Blocks: len(blockIDs)}
		if c, ok := snap.DistrictColorOf(id); ok {
			d.Color = c
		}
		if v, ok := snap.DistrictMetadata[id]["population"].(float64); ok {
			d.Population, d.FromMetadata = v, true
		} else {
			for _, b := range blockIDs {
				if blk, ok := snap.Blocks.Get(b); ok && blk.Population != nil {
					d.Population += *blk.Population
				}
			}
		}
		pop := d.Population
		d.Within = app.WithinTolerance(app.TreeNode{Population: &pop}, meta)
		if d.Within {
			sum.Within++
		}
		sum.Districts = append(sum.Districts, d)
	}

	if len(sum.Districts) == 0 {
		return sum
	}
	pops := sum.Populations()
	sum.Total = floats.Sum(pops)
	sum.Min, sum.Max = floats.Min(pops), floats.Max(pops)
	sum.Mean, sum.StdDev = stat.MeanStdDev(pops, nil)
	return sum
}

// Populations returns district populations in row order.
func (s Summary) Populations() []float64 {
	out := make([]float64, len(s.Districts))
	for i, d := range s.Districts {
		out[i] = d.Population
	}
	return out
}

var (
	withinColor  = colorutil.MustParse("#00e676")
	outsideColor = colorutil.MustParse("#ff5252")
	idealColor   = colorutil.MustParse("#ffd54f")
)

// Chart draws populations as bars, green when within tolerance, with the
// ideal population as a horizontal line.
func Chart(s Summary, title string) (*plot.Plot, error) {
	if len(s.Districts) == 0 {
		return nil, ErrNoDistricts
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "District (iteration)"
	p.Y.Label.Text = "Population"

	width := vg.Points(12)
	within := make(plotter.Values, len(s.Districts))
	outside := make(plotter.Values, len(s.Districts))
	labels := make([]string, len(s.Districts))
	for i, d := range s.Districts {
		labels[i] = strconv.Itoa(d.ID)
		if d.Within {
			within[i] = d.Population
		} else {
			outside[i] = d.Population
		}
	}

	for _, series := range []struct {
		name   string
		values plotter.Values
		color  color.Color
	}{
		{"within tolerance", within, withinColor},
		{"outside tolerance", outside, outsideColor},
	} {
		bars, err := plotter.NewBarChart(series.values, width)
		if err != nil {
			return nil, fmt.Errorf("bar chart: %w", err)
		}
		bars.Color = series.color
		bars.LineStyle.Width = vg.Length(0)
		p.Add(bars)
		p.Legend.Add(series.name, bars)
	}

	if s.Ideal != nil {
		line, err := plotter.NewLine(plotter.XYs{
			{X: -0.5, Y: *s.Ideal},
			{X: float64(len(s.Districts)) - 0.5, Y: *s.Ideal},
		})
		if err != nil {
			return nil, fmt.Errorf("ideal line: %w", err)
		}
		line.Color = idealColor
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add("ideal", line)
	}

	p.NominalX(labels...)
	p.Legend.Top = true
	return p, nil
}

// WritePNG renders the chart for s to w.
func WritePNG(w io.Writer, s Summary, title string, width, height vg.Length) error {
	p, err := Chart(s, title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}
