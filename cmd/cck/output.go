package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/edp1096/cck-mna/pkg/analysis"
	"github.com/edp1096/cck-mna/pkg/util"
)

func unitOf(name string) string {
	switch {
	case name == "TIME":
		return "s"
	case strings.HasPrefix(name, "I("):
		return "A"
	}
	return "V"
}

func printOperatingPoint(w io.Writer, results map[string][]float64) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVALUE")
	for _, name := range analysis.Variables(results) {
		values := results[name]
		if len(values) == 0 {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", name, util.FormatValueFactor(values[0], unitOf(name)))
	}
	tw.Flush()
}

// printTable writes one row per axis point, axis column first.
func printTable(w io.Writer, results map[string][]float64) {
	names := analysis.Variables(results)
	if len(names) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(names, "\t"))
	rows := len(results[names[0]])
	cells := make([]string, len(names))
	for i := 0; i < rows; i++ {
		for j, name := range names {
			cells[j] = util.FormatValueFactor(results[name][i], unitOf(name))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}

func voltageKey(node string) string {
	if strings.HasPrefix(node, "V(") {
		return node
	}
	return fmt.Sprintf("V(%s)", node)
}

func asciiCharts(results map[string][]float64, nodes []string) ([]string, error) {
	var charts []string
	for _, node := range nodes {
		key := voltageKey(node)
		data, ok := results[key]
		if !ok {
			return nil, fmt.Errorf("no endpoint %q in results", node)
		}
		if len(data) == 0 {
			continue
		}
		charts = append(charts, asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(key),
		))
	}
	return charts, nil
}

// savePNG draws the selected voltages over time; every V(...) when nodes
// is empty.
func savePNG(path, title string, results map[string][]float64, nodes []string) error {
	times, ok := results["TIME"]
	if !ok || len(times) == 0 {
		return fmt.Errorf("no transient results to plot")
	}

	var keys []string
	if len(nodes) == 0 {
		for _, name := range analysis.Variables(results) {
			if strings.HasPrefix(name, "V(") {
				keys = append(keys, name)
			}
		}
	} else {
		for _, node := range nodes {
			key := voltageKey(node)
			if _, ok := results[key]; !ok {
				return fmt.Errorf("no endpoint %q in results", node)
			}
			keys = append(keys, key)
		}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "voltage (V)"
	p.Add(plotter.NewGrid())

	var lines []any
	for _, key := range keys {
		xys := make(plotter.XYs, len(times))
		for i, t := range times {
			xys[i].X = t
			xys[i].Y = results[key][i]
		}
		lines = append(lines, key, xys)
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return err
	}

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
