package audit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/meridian-admin/meridian-admin/internal/rbac"
)

// Middleware records every request into the operation trail after the
// handler finishes. The recorder is fire-and-forget so response latency is
// unaffected beyond the enqueue call.
func Middleware(recorder *Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			username := ""
			if p := rbac.PrincipalFromContext(r.Context()); p != nil {
				username = p.Username
			}
			recorder.RecordOpera(r.Context(), OperaLog{
				Username:  username,
				Method:    r.Method,
				Path:      r.URL.Path,
				Status:    ww.status,
				IP:        remoteIP(r),
				UserAgent: r.UserAgent(),
				CostMs:    float64(time.Since(start).Microseconds()) / 1000,
			})
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wrote {
		w.status = status
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
