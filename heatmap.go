package main

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"softmaxgo/metrics"
)

// renderHeatmap draws the confusion matrix as a heatmap PNG, predicted label
// on the x axis and true label on the y axis.
func renderHeatmap(cm *metrics.ConfusionMatrix, path string) error {
	pal := moreland.Kindlmann().Palette(255)
	hm := plotter.NewHeatMap(cm, pal)

	p := plot.New()
	p.Title.Text = "Confusion matrix"
	p.X.Label.Text = "predicted label"
	p.Y.Label.Text = "true label"
	p.Add(hm)

	return p.Save(6*vg.Inch, 6*vg.Inch, path)
}
