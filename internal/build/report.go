package build

import (
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/klauspost/compress/gzip"

	kerrors "github.com/conneroisu/kiln/internal/errors"
)

// OutputFile describes one file written by a production build.
type OutputFile struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	GzipSize int64  `json:"gzip_size"`
	Hash     string `json:"hash"`
}

// Report summarises a production build.
type Report struct {
	Files     []OutputFile         `json:"files"`
	TotalSize int64                `json:"total_size"`
	TotalGzip int64                `json:"total_gzip"`
	Duration  time.Duration        `json:"duration"`
	Warnings  []kerrors.BuildError `json:"warnings,omitempty"`
	// Analysis is esbuild's bundle breakdown, set when build.metafile is on.
	Analysis string `json:"analysis,omitempty"`
}

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// NewReport measures the outputs of a completed build.
func NewReport(opts Options, result Result) (*Report, error) {
	report := &Report{
		Duration: result.Duration,
		Warnings: result.Warnings,
	}

	for _, out := range result.Outputs {
		path := out
		if !filepath.IsAbs(path) {
			path = filepath.Join(opts.WorkingDir, path)
		}
		file, err := measure(path)
		if err != nil {
			return nil, kerrors.NewIOError(kerrors.ErrCodeFileNotFound, "cannot read build output", err).
				WithLocation(out, 0, 0)
		}
		file.Path = filepath.ToSlash(out)
		report.Files = append(report.Files, file)
		report.TotalSize += file.Size
		report.TotalGzip += file.GzipSize
	}

	if opts.Metafile && result.Metafile != "" {
		report.Analysis = api.AnalyzeMetafile(result.Metafile, api.AnalyzeMetafileOptions{})
	}

	return report, nil
}

func measure(path string) (OutputFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return OutputFile{}, err
	}
	defer f.Close()

	var gz countingWriter
	zw, err := gzip.NewWriterLevel(&gz, gzip.BestCompression)
	if err != nil {
		return OutputFile{}, err
	}
	hash := crc32.New(crcTable)

	size, err := io.Copy(io.MultiWriter(zw, hash), f)
	if err != nil {
		return OutputFile{}, err
	}
	if err := zw.Close(); err != nil {
		return OutputFile{}, err
	}

	return OutputFile{
		Size:     size,
		GzipSize: gz.n,
		Hash:     fmt.Sprintf("%08x", hash.Sum32()),
	}, nil
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

var (
	reportTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	reportPathStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	reportSizeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Align(lipgloss.Right)
	reportDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	reportWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Render formats the report for a terminal.
func (r *Report) Render() string {
	var b strings.Builder

	b.WriteString(reportTitleStyle.Render(fmt.Sprintf("Built %d file(s) in %s",
		len(r.Files), r.Duration.Round(time.Millisecond))))
	b.WriteString("\n\n")

	width := 0
	for _, f := range r.Files {
		if len(f.Path) > width {
			width = len(f.Path)
		}
	}

	for _, f := range r.Files {
		b.WriteString("  ")
		b.WriteString(reportPathStyle.Width(width + 2).Render(f.Path))
		b.WriteString(reportSizeStyle.Width(10).Render(humanize.IBytes(uint64(f.Size))))
		b.WriteString(reportDimStyle.Render(fmt.Sprintf("  gzip %s  %s",
			humanize.IBytes(uint64(f.GzipSize)), f.Hash)))
		b.WriteString("\n")
	}

	b.WriteString("\n  ")
	b.WriteString(reportDimStyle.Render(fmt.Sprintf("total %s (gzip %s)",
		humanize.IBytes(uint64(r.TotalSize)), humanize.IBytes(uint64(r.TotalGzip)))))
	b.WriteString("\n")

	for _, w := range r.Warnings {
		b.WriteString(reportWarnStyle.Render("  " + w.Error()))
		b.WriteString("\n")
	}

	if r.Analysis != "" {
		b.WriteString(r.Analysis)
		b.WriteString("\n")
	}

	return b.String()
}
