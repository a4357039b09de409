package httpapi

import (
	"net/http"

	"github.com/rs/zerolog"
)

// Options configures the admin mux.
type Options struct {
	// CORSOrigins enables CORS for the listed origins; empty disables it.
	CORSOrigins []string
	// Logger receives one line per request. Nil disables request logging.
	Logger *zerolog.Logger
	// Metrics serves the Prometheus registry on /metrics. Nil uses the default one.
	Metrics http.Handler
}

var (
	corsAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsAllowedHeaders = []string{"Accept", "Content-Type", "X-Request-Id"}
)
