package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	lwekem "github.com/BackendStack21/lwe-kem-go"
	"github.com/BackendStack21/lwe-kem-go/kem"
)

// benchResult holds the average duration of each operation for one
// parameter set.
type benchResult struct {
	Params      lwekem.LWEParams
	Iterations  int
	KeyGen      time.Duration
	Encapsulate time.Duration
	Decapsulate time.Duration
	Reject      time.Duration
	Encrypt     time.Duration
	Decrypt     time.Duration
}

func benchmarkCommand() *cli.Command {
	return &cli.Command{
		Name:  "benchmark",
		Usage: "Run performance benchmarks",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "iterations",
				Aliases: []string{"n"},
				Value:   10,
				Usage:   "iterations per operation",
			},
			&cli.StringFlag{
				Name:  "html",
				Usage: "write a bar chart of the results to `FILE`",
			},
		},
		Action: withErrorHandler(runBenchmark),
	}
}

func runBenchmark(c *cli.Context) error {
	log := newLogger(c)
	params, err := resolveParams(c)
	if err != nil {
		return err
	}
	iterations := c.Int("iterations")
	if iterations < 1 {
		iterations = 1
	}

	log.Info().Str("set", string(params.Set)).Int("iterations", iterations).Msg("Running benchmark")
	res, err := benchmark(params, iterations)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "LWE-KEM Benchmark Results\n")
	fmt.Fprintf(w, "=========================\n")
	fmt.Fprintf(w, "Parameters: %s (n=%d q=%d m=%d sigma=%.1f)\n", params.Set, params.N, params.Q, params.M, params.Sigma)
	fmt.Fprintf(w, "Iterations: %d\n\n", iterations)
	for _, row := range res.rows() {
		fmt.Fprintf(w, "  %-12s %v (avg)\n", row.name+":", row.d)
	}

	if path := c.String("html"); path != "" {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return errors.Wrap(err, "error creating chart file")
		}
		defer f.Close()
		if err := renderChart(f, res); err != nil {
			return errors.Wrap(err, "error rendering chart")
		}
		log.Info().Str("file", path).Msg("Wrote benchmark chart")
	}
	return nil
}

type benchRow struct {
	name string
	d    time.Duration
}

func (r *benchResult) rows() []benchRow {
	return []benchRow{
		{"KeyGen", r.KeyGen},
		{"Encapsulate", r.Encapsulate},
		{"Decapsulate", r.Decapsulate},
		{"Reject", r.Reject},
		{"Encrypt", r.Encrypt},
		{"Decrypt", r.Decrypt},
	}
}

// timeOp runs op iterations times and returns the average duration.
func timeOp(iterations int, op func() error) (time.Duration, error) {
	var total time.Duration
	for i := 0; i < iterations; i++ {
		start := time.Now()
		err := op()
		total += time.Since(start)
		if err != nil {
			return 0, err
		}
	}
	return total / time.Duration(iterations), nil
}

func benchmark(params lwekem.LWEParams, iterations int) (*benchResult, error) {
	res := &benchResult{Params: params, Iterations: iterations}
	ad := []byte("benchmark")
	var err error

	var bundle *lwekem.KEMBundle
	if res.KeyGen, err = timeOp(iterations, func() (err error) {
		bundle, err = kem.GenerateKeyPairWithParams(params)
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "keygen")
	}

	var encap *lwekem.EncapsulationResult
	if res.Encapsulate, err = timeOp(iterations, func() (err error) {
		encap, err = kem.Encapsulate(&bundle.PublicKey, ad)
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "encapsulate")
	}

	if res.Decapsulate, err = timeOp(iterations, func() error {
		_, err := kem.Decapsulate(bundle, &encap.Ciphertext, ad)
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "decapsulate")
	}

	tampered := encap.Ciphertext.Clone()
	tampered.Components[0].V ^= 1
	if res.Reject, err = timeOp(iterations, func() error {
		_, err := kem.Decapsulate(bundle, tampered, ad)
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "decapsulate (reject)")
	}

	msg := bytes.Repeat([]byte("Hello, LWE-KEM!"), 10)
	var encrypted *lwekem.EncryptedMessage
	if res.Encrypt, err = timeOp(iterations, func() (err error) {
		encrypted, err = kem.Encrypt(bundle, msg, ad)
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "encrypt")
	}

	if res.Decrypt, err = timeOp(iterations, func() error {
		_, err := kem.Decrypt(bundle, encrypted, ad)
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "decrypt")
	}
	return res, nil
}

// renderChart writes an HTML page with one bar per operation in
// milliseconds.
func renderChart(w io.Writer, res *benchResult) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "LWE-KEM operation cost",
			Subtitle: fmt.Sprintf("%s, n=%d m=%d, %d iterations", res.Params.Set, res.Params.N, res.Params.M, res.Iterations),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)

	rows := res.rows()
	labels := make([]string, 0, len(rows))
	items := make([]opts.BarData, 0, len(rows))
	for _, row := range rows {
		labels = append(labels, row.name)
		items = append(items, opts.BarData{Value: float64(row.d.Microseconds()) / 1000})
	}
	bar.SetXAxis(labels).AddSeries("average", items)

	page := components.NewPage().SetPageTitle("LWE-KEM Benchmark")
	page.AddCharts(bar)
	return page.Render(w)
}
