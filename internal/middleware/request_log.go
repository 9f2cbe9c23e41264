package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"objectsguesser/internal/model"
)

// RecordSink receives one record per finished request.
type RecordSink interface {
	Add(rec model.RequestRecord)
}

// statusRecorder captures the response status. It forwards Hijack so WebSocket
// upgrades keep working behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return hijacker.Hijack()
}

// RequestLogMiddleware reports method, path, status and duration of API calls to
// sink. Static assets and log pages are not recorded; bodies never are.
func RequestLogMiddleware(sink RecordSink, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !shouldRecord(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}

		sink.Add(model.RequestRecord{
			Method:     r.Method,
			Path:       r.URL.Path,
			Status:     status,
			DurationMs: time.Since(start).Milliseconds(),
			RemoteAddr: remoteHost(r.RemoteAddr),
			Timestamp:  start,
		})
	})
}

func shouldRecord(path string) bool {
	return strings.HasPrefix(path, "/api/") || path == "/predict"
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
