package metrics

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMux serves gatherer's metrics on /metrics. The index page lists the
// join metric families (simjoin_*) currently registered, with their help
// text.
func NewMux(gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		families, err := gatherer.Gather()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var b strings.Builder
		b.WriteString(`<html><body><h1>Similarity Join Metrics</h1><p><a href="/metrics">/metrics</a></p><ul>`)
		for _, f := range families {
			if !strings.HasPrefix(f.GetName(), namespace+"_") {
				continue
			}
			fmt.Fprintf(&b, "<li><code>%s</code> %s</li>", html.EscapeString(f.GetName()), html.EscapeString(f.GetHelp()))
		}
		b.WriteString(`</ul></body></html>`)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, b.String())
	})
	return mux
}

// StartServer serves NewMux(gatherer) on its own port and returns the
// server's Shutdown func.
func StartServer(port int, gatherer prometheus.Gatherer) (shutdown func(context.Context) error) {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      NewMux(gatherer),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	return server.Shutdown
}
