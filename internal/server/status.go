package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"

	"github.com/conneroisu/kiln/internal/build"
	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/version"
)

type statusView struct {
	Listeners int
	Metrics   build.MetricsSnapshot
	Errors    []kerrors.BuildError
	Version   string
	Now       time.Time
}

func (s *Server) snapshot() statusView {
	view := statusView{
		Listeners: s.hub.Len(),
		Version:   version.GetShortVersion(),
		Now:       time.Now(),
	}
	if s.status != nil {
		view.Metrics = s.status.Metrics()
		view.Errors = s.status.Errors()
	}
	return view
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	templ.Handler(statusPage(s.snapshot())).ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	view := s.snapshot()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": view.Now.UTC(),
		"version":   view.Version,
		"checks": map[string]interface{}{
			"livereload": map[string]interface{}{"status": "healthy", "clients": view.Listeners},
			"build": map[string]interface{}{
				"total":        view.Metrics.TotalBuilds,
				"failed":       view.Metrics.FailedBuilds,
				"success_rate": view.Metrics.SuccessRate(),
				"errors":       len(view.Errors),
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Error(r.Context(), err, "Failed to encode health response")
	}
}

const statusStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2937}
table{border-collapse:collapse}td,th{padding:.25rem .75rem;text-align:left}
.ok{color:#15803d}.fail{color:#b91c1c}code{background:#f3f4f6;padding:0 .25rem}`

// statusPage renders the session summary. Every dynamic string is escaped.
func statusPage(v statusView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		b.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>kiln status</title><style>")
		b.WriteString(statusStyle)
		b.WriteString("</style></head><body><h1>kiln</h1>")

		fmt.Fprintf(&b, "<p>Version <code>%s</code></p>", templ.EscapeString(v.Version))
		b.WriteString("<table>")
		row(&b, "Live-reload clients", fmt.Sprint(v.Listeners))
		row(&b, "Builds", fmt.Sprint(v.Metrics.TotalBuilds))
		row(&b, "Failed", fmt.Sprint(v.Metrics.FailedBuilds))
		if v.Metrics.TotalBuilds > 0 {
			row(&b, "Success rate", fmt.Sprintf("%.0f%%", v.Metrics.SuccessRate()))
			row(&b, "Average", v.Metrics.AverageDuration.Round(time.Millisecond).String())
			row(&b, "Last build", humanize.RelTime(v.Metrics.LastBuild, v.Now, "ago", "from now"))
		}
		b.WriteString("</table>")

		if len(v.Errors) == 0 {
			b.WriteString(`<h2 class="ok">No diagnostics</h2>`)
		} else {
			fmt.Fprintf(&b, `<h2 class="fail">%d diagnostic(s)</h2><ul>`, len(v.Errors))
			for _, e := range v.Errors {
				fmt.Fprintf(&b, "<li><code>%s</code></li>", templ.EscapeString(e.Error()))
			}
			b.WriteString("</ul>")
		}

		b.WriteString("</body></html>")
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "<tr><th>%s</th><td>%s</td></tr>", templ.EscapeString(label), templ.EscapeString(value))
}
