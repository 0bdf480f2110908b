package middleware

import (
	"net/http"
	"strings"
)

// MaxRequestSize caps request bodies. Multipart uploads get uploadLimit, which
// is expected to be larger than the JSON limit.
func MaxRequestSize(limit, uploadLimit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			maxBytes := limit
			if strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), contentTypeMultipart) && uploadLimit > maxBytes {
				maxBytes = uploadLimit
			}
			if r.Body != nil && maxBytes > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
