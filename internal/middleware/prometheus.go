package middleware

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"illust_nest/internal/metrics"
)

var numericSegment = regexp.MustCompile(`/\d+(/|$)`)

// PrometheusMetrics instruments an outgoing transport. Routes are labelled
// with numeric ids collapsed so label cardinality stays bounded; image paths
// are reduced to their variant.
func PrometheusMetrics(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}

	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(req)
		duration := time.Since(start).Seconds()

		route := Route(req.URL.Path)
		status := "error"
		if resp != nil {
			status = strconv.Itoa(resp.StatusCode)
		}

		metrics.HTTPRequestsTotal.WithLabelValues(req.Method, route, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(req.Method, route).Observe(duration)

		return resp, err
	})
}

func Route(path string) string {
	for _, prefix := range []string{"/api/images/", "/api/public/images/"} {
		if len(path) > len(prefix) && path[:len(prefix)] == prefix {
			rest := path[len(prefix):]
			for i := 0; i < len(rest); i++ {
				if rest[i] == '/' {
					return prefix + rest[:i] + "/*"
				}
			}
			return prefix + rest
		}
	}

	for numericSegment.MatchString(path) {
		path = numericSegment.ReplaceAllString(path, "/:id$1")
	}
	return path
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
