package runtime

import (
	"net/http"
	"strings"

	"github.com/drblury/eventpub/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/eventpub/internal/runtime/logging"
)

// StatsHandler serves Stats as JSON. Requests from allowedOrigins get CORS
// headers; "*" allows any origin.
func (p *Publisher) StatsHandler(allowedOrigins ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if allowed := allowedCORSOrigin(allowedOrigins, r.Header.Get("Origin")); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
			return
		case http.MethodGet, http.MethodHead:
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := jsoncodec.Encode(w, p.Stats()); err != nil {
			p.logger.Error("Failed to encode publisher stats", err, loggingpkg.LogFields{"path": r.URL.Path})
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	})
}

// allowedCORSOrigin returns the Access-Control-Allow-Origin value for
// requestOrigin, or "" when it is not allowed.
func allowedCORSOrigin(allowed []string, requestOrigin string) string {
	for _, origin := range allowed {
		if origin == "*" {
			return "*"
		}
		if requestOrigin != "" && strings.EqualFold(origin, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
