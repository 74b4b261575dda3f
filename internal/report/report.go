// Package report writes stress run results as JSON, optionally compressed
// according to the output file's extension (.zst, .lz4, .gz, .sz, .s2).
package report

import (
	"io"
	"os"
	"runtime"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/memsched/internal/stress"
	"github.com/ajitpratap0/memsched/pkg/compression"
	"github.com/ajitpratap0/memsched/pkg/errors"
	"github.com/ajitpratap0/memsched/pkg/performance"
)

// Report is the document produced by `memsched stress --report`.
type Report struct {
	Version   string               `json:"version"`
	GoVersion string               `json:"go_version"`
	OS        string               `json:"os"`
	Arch      string               `json:"arch"`
	CPUs      int                  `json:"cpus"`
	Started   time.Time            `json:"started"`
	Duration  time.Duration        `json:"duration"`
	Config    stress.Config        `json:"config"`
	Results   []stress.Result      `json:"results"`
	Resources *performance.Summary `json:"resources,omitempty"`
}

// New starts a report for a run beginning now.
func New(version string, cfg stress.Config) *Report {
	return &Report{
		Version:   version,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		CPUs:      runtime.NumCPU(),
		Started:   time.Now(),
		Config:    cfg,
	}
}

// Finish records the results and the elapsed time.
func (r *Report) Finish(results []stress.Result, resources *performance.Summary) {
	r.Results = results
	r.Resources = resources
	r.Duration = time.Since(r.Started)
}

// Passed reports whether every result passed.
func (r *Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}
	return true
}

// Encode writes r as indented JSON to w, compressed with alg.
func (r *Report) Encode(w io.Writer, alg compression.Algorithm) error {
	comp, err := compression.NewCompressor(&compression.Config{Algorithm: alg, Level: compression.Default})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "unsupported report compression")
	}
	cw, err := comp.NewWriter(w)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to open compressor")
	}
	enc := gojson.NewEncoder(cw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		_ = cw.Close()
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to encode report")
	}
	if err := cw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to flush report")
	}
	return nil
}

// WriteFile writes r to path, choosing the compression from its extension.
func (r *Report) WriteFile(path string) (err error) {
	f, err := os.Create(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to create report file").
			WithDetail("path", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, errors.ErrorTypeIO, "failed to close report file").
				WithDetail("path", path)
		}
	}()
	return r.Encode(f, compression.FromPath(path))
}

// Decode reads a report written by Encode with the same algorithm.
func Decode(rd io.Reader, alg compression.Algorithm) (*Report, error) {
	comp, err := compression.NewCompressor(&compression.Config{Algorithm: alg})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "unsupported report compression")
	}
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(comp.DecompressStream(pw, rd))
	}()
	defer pr.Close()

	var r Report
	if err := gojson.NewDecoder(pr).Decode(&r); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to decode report")
	}
	return &r, nil
}

// ReadFile reads a report from path, choosing the compression from its
// extension.
func ReadFile(path string) (*Report, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to open report file").
			WithDetail("path", path)
	}
	defer f.Close()
	return Decode(f, compression.FromPath(path))
}
