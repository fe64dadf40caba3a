package charts

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/i474232898/weather-pipeline/internal/weather"
)

var (
	skyBlue  = color.RGBA{R: 135, G: 206, B: 235, A: 255}
	trendRed = color.RGBA{R: 220, G: 20, B: 60, A: 255}
)

// Chart builds one figure from the processed records.
type Chart struct {
	Name   string
	Width  vg.Length
	Height vg.Length
	Build  func(records []weather.CleanRecord) (*plot.Plot, error)
}

// Default is the fixed set of charts produced for every analysis.
var Default = []Chart{
	{Name: "city_temperature_comparison", Width: 12 * vg.Inch, Height: 6 * vg.Inch, Build: CityTemperatureComparison},
	{Name: "temperature_trends", Width: 14 * vg.Inch, Height: 7 * vg.Inch, Build: TemperatureTrends},
	{Name: "weather_condition_distribution", Width: 10 * vg.Inch, Height: 6 * vg.Inch, Build: ConditionDistribution},
	{Name: "temperature_humidity_correlation", Width: 10 * vg.Inch, Height: 6 * vg.Inch, Build: TemperatureHumidity},
	{Name: "wind_speed_comparison", Width: 12 * vg.Inch, Height: 6 * vg.Inch, Build: WindSpeedComparison},
}

// Render saves every chart as {name}_{stamp}.png in dir and returns the
// written paths. A failing chart is logged and does not stop the others.
func Render(charts []Chart, dir, stamp string, records []weather.CleanRecord) []string {
	var written []string
	for _, c := range charts {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", c.Name, stamp))
		if err := renderOne(c, path, records); err != nil {
			log.WithField("chart", c.Name).Errorf("charts: error generating %s plot: %v", c.Name, err)
			continue
		}
		log.Infof("charts: saved %s plot to %s", c.Name, path)
		written = append(written, path)
	}
	return written
}

func renderOne(c Chart, path string, records []weather.CleanRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	p, err := c.Build(records)
	if err != nil {
		return err
	}
	return p.Save(c.Width, c.Height, path)
}

// CityTemperatureComparison is a bar chart of the mean temperature per
// city, warmest first.
func CityTemperatureComparison(records []weather.CleanRecord) (*plot.Plot, error) {
	type cityMean struct {
		city string
		mean float64
	}

	var means []cityMean
	for city, values := range valuesByCity(records, "temperature") {
		if len(values) > 0 {
			means = append(means, cityMean{city: city, mean: stat.Mean(values, nil)})
		}
	}
	if len(means) == 0 {
		return nil, fmt.Errorf("no temperatures")
	}
	sort.Slice(means, func(i, j int) bool {
		if means[i].mean != means[j].mean {
			return means[i].mean > means[j].mean
		}
		return means[i].city < means[j].city
	})

	values := make(plotter.Values, len(means))
	names := make([]string, len(means))
	for i, m := range means {
		values[i] = m.mean
		names[i] = m.city
	}

	p := plot.New()
	p.Title.Text = "Average Temperature by City"
	p.X.Label.Text = "City"
	p.Y.Label.Text = "Temperature (°C)"

	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return nil, err
	}
	bars.Color = skyBlue
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)
	rotateXTicks(p)
	return p, nil
}

// TemperatureTrends draws one line of daily mean temperature per city.
func TemperatureTrends(records []weather.CleanRecord) (*plot.Plot, error) {
	dateSet := make(map[string]struct{})
	sums := make(map[string]map[string][2]float64)
	for _, r := range records {
		if r.Temperature == nil {
			continue
		}
		dateSet[r.Date] = struct{}{}
		if sums[r.City] == nil {
			sums[r.City] = make(map[string][2]float64)
		}
		acc := sums[r.City][r.Date]
		sums[r.City][r.Date] = [2]float64{acc[0] + *r.Temperature, acc[1] + 1}
	}
	if len(dateSet) == 0 {
		return nil, fmt.Errorf("no dated temperatures")
	}

	dates := sortedKeys(dateSet)
	position := make(map[string]int, len(dates))
	for i, d := range dates {
		position[d] = i
	}

	p := plot.New()
	p.Title.Text = "Temperature Trends by City"
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Temperature (°C)"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	var lines []interface{}
	for _, city := range sortedKeys(sums) {
		pts := make(plotter.XYs, 0, len(sums[city]))
		for _, d := range dates {
			if acc, ok := sums[city][d]; ok {
				pts = append(pts, plotter.XY{X: float64(position[d]), Y: acc[0] / acc[1]})
			}
		}
		lines = append(lines, city, pts)
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return nil, err
	}
	p.NominalX(dates...)
	return p, nil
}

// ConditionDistribution is a pie chart of the weather condition counts.
func ConditionDistribution(records []weather.CleanRecord) (*plot.Plot, error) {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.WeatherCondition]++
	}
	if len(counts) == 0 {
		return nil, fmt.Errorf("no weather conditions")
	}

	labels := sortedKeys(counts)
	sort.SliceStable(labels, func(i, j int) bool { return counts[labels[i]] > counts[labels[j]] })

	pie := &Pie{}
	for i, label := range labels {
		pie.Slices = append(pie.Slices, Slice{
			Label: label,
			Value: float64(counts[label]),
			Color: plotutil.Color(i),
		})
	}

	p := plot.New()
	p.Title.Text = "Distribution of Weather Conditions"
	p.HideAxes()
	p.Add(pie)
	p.Legend.Top = true
	for _, s := range pie.Slices {
		p.Legend.Add(fmt.Sprintf("%s (%.1f%%)", s.Label, 100*s.Value/pie.total()), s)
	}
	return p, nil
}

// TemperatureHumidity scatters humidity against temperature per city and
// adds a least-squares trend line over all points.
func TemperatureHumidity(records []weather.CleanRecord) (*plot.Plot, error) {
	byCity := make(map[string]plotter.XYs)
	var xs, ys []float64
	for _, r := range records {
		if r.Temperature == nil || r.Humidity == nil {
			continue
		}
		byCity[r.City] = append(byCity[r.City], plotter.XY{X: *r.Temperature, Y: *r.Humidity})
		xs = append(xs, *r.Temperature)
		ys = append(ys, *r.Humidity)
	}
	if len(xs) == 0 {
		return nil, fmt.Errorf("no temperature and humidity pairs")
	}

	p := plot.New()
	p.Title.Text = "Temperature vs. Humidity"
	p.X.Label.Text = "Temperature (°C)"
	p.Y.Label.Text = "Humidity (%)"
	p.Add(plotter.NewGrid())

	for i, city := range sortedKeys(byCity) {
		s, err := plotter.NewScatter(byCity[city])
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Color = plotutil.Color(i)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(4)
		p.Add(s)
		p.Legend.Add(city, s)
	}

	if line, ok := trendLine(xs, ys); ok {
		p.Add(line)
		p.Legend.Add("Trend Line", line)
	}
	return p, nil
}

// trendLine fits y = alpha + beta*x. It needs at least two distinct x.
func trendLine(xs, ys []float64) (*plotter.Line, bool) {
	if len(xs) < 2 {
		return nil, false
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return nil, false
	}

	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		lo, hi = math.Min(lo, x), math.Max(hi, x)
	}
	if lo == hi {
		return nil, false
	}

	line, err := plotter.NewLine(plotter.XYs{
		{X: lo, Y: alpha + beta*lo},
		{X: hi, Y: alpha + beta*hi},
	})
	if err != nil {
		return nil, false
	}
	line.LineStyle.Color = trendRed
	line.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
	return line, true
}

// WindSpeedComparison is a box plot of wind speed per city.
func WindSpeedComparison(records []weather.CleanRecord) (*plot.Plot, error) {
	groups := valuesByCity(records, "wind_speed")

	p := plot.New()
	p.Title.Text = "Wind Speed Distribution by City"
	p.X.Label.Text = "City"
	p.Y.Label.Text = "Wind Speed (m/s)"

	var names []string
	for _, city := range sortedKeys(groups) {
		values := groups[city]
		if len(values) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(40), float64(len(names)), plotter.Values(values))
		if err != nil {
			return nil, err
		}
		box.FillColor = skyBlue
		p.Add(box)
		names = append(names, city)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no wind speeds")
	}
	p.NominalX(names...)
	rotateXTicks(p)
	return p, nil
}

func rotateXTicks(p *plot.Plot) {
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YCenter
}

func valuesByCity(records []weather.CleanRecord, column string) map[string][]float64 {
	out := make(map[string][]float64)
	for i := range records {
		r := &records[i]
		if _, ok := out[r.City]; !ok {
			out[r.City] = nil
		}
		if v := *r.Numeric(column); v != nil {
			out[r.City] = append(out[r.City], *v)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
