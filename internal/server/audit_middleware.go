package server

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

func (s *Server) auditLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType := r.Header.Get("Content-Type")
		skipRequestBody := strings.Contains(contentType, "multipart/form-data")

		entry := AuditLogEntry{
			Timestamp: s.timeNow(),
			Method:    r.Method,
			Path:      r.URL.Path,
		}
		if route := mux.CurrentRoute(r); route != nil {
			entry.Handler = route.GetName()
		}

		if username, _, ok := r.BasicAuth(); ok {
			entry.AdminUser = username
		}

		vars := mux.Vars(r)
		entry.Collection = vars["collection"]
		entry.TargetID = vars["id"]

		if !skipRequestBody && r.Body != nil {
			requestBody, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(requestBody))
			entry.Request = string(requestBody)
		}

		wrw := newResponseWriterWrapper(w)

		next.ServeHTTP(wrw, r)

		entry.StatusCode = wrw.GetStatusCode()
		entry.Response = string(wrw.GetBody())

		s.AuditManager.LogEntry(r.Context(), entry)
	})
}
