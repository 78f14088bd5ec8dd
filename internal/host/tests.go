package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"blockengine/internal/scheduler"
)

// TestResult is the outcome of one script test file.
type TestResult struct {
	File     string
	Failures []error
	Duration time.Duration
}

func (r TestResult) Passed() bool {
	return len(r.Failures) == 0
}

type Report struct {
	Results []TestResult
}

func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.Passed() {
			n++
		}
	}
	return n
}

// RunTests runs every file in dir matching pattern in its own fresh host,
// on a virtual clock so waits cost no real time. A test fails when any of
// its tasks raises an error or it never settles.
func RunTests(ctx context.Context, opts Options, dir, pattern string, out io.Writer) (Report, error) {
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return Report{}, fmt.Errorf("list tests: %w", err)
	}
	sort.Strings(files)

	var report Report
	for _, file := range files {
		res := runTest(ctx, opts, file)
		report.Results = append(report.Results, res)
		if res.Passed() {
			fmt.Fprintf(out, "PASS %s (%s)\n", file, res.Duration.Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(out, "FAIL %s\n", file)
		for _, f := range res.Failures {
			fmt.Fprintf(out, "    %v\n", f)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			break
		}
	}
	fmt.Fprintf(out, "%d passed, %d failed\n", len(report.Results)-report.Failed(), report.Failed())
	return report, nil
}

func runTest(ctx context.Context, opts Options, file string) TestResult {
	start := time.Now()
	res := TestResult{File: file}
	opts.Clock = scheduler.NewVirtualClock()
	h, err := New(opts)
	if err != nil {
		res.Failures = []error{err}
		return res
	}
	defer h.Close()

	if err := h.RunFile(file); err != nil {
		res.Failures = []error{err}
		return res
	}
	if err := h.RunToIdle(ctx); err != nil {
		res.Failures = append(res.Failures, err)
	}
	res.Failures = append(res.Failures, h.Failures()...)
	res.Duration = time.Since(start)
	return res
}
