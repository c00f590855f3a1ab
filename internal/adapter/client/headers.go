package client

import (
	"net/http"
	"slices"
	"strings"

	"github.com/corral-proxy/corral/internal/core/constants"
	"github.com/corral-proxy/corral/internal/core/domain"
	"github.com/corral-proxy/corral/internal/version"
)

var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"TE",
	"Trailer",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

// inbound credentials and controls that belong to the proxy, not the backend
var strippedHeaders = []string{
	constants.HeaderAuthorization,
	constants.HeaderAzureAPIKey,
	constants.HeaderLocalOnly,
	"Cookie",
	"X-Api-Key",
	"Host",
	"Content-Length",
	"Accept-Encoding",
}

// IsHopByHopHeader reports connection-scoped headers that must not be
// forwarded in either direction
func IsHopByHopHeader(header string) bool {
	return slices.ContainsFunc(hopByHopHeaders, func(h string) bool {
		return strings.EqualFold(h, header)
	})
}

func isStripped(header string) bool {
	return slices.ContainsFunc(strippedHeaders, func(h string) bool {
		return strings.EqualFold(h, header)
	})
}

// outboundHeaders copies the caller's headers minus anything connection
// scoped or credential bearing, then stamps our own
func outboundHeaders(req *domain.Request) http.Header {
	out := make(http.Header, len(req.Headers)+4)
	for header, values := range req.Headers {
		if IsHopByHopHeader(header) || isStripped(header) {
			continue
		}
		out[header] = slices.Clone(values)
	}

	out.Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	out.Set("User-Agent", version.UserAgent())
	out.Set(constants.HeaderXRequestID, req.ID)
	if via := req.Headers.Get("Via"); via != "" {
		out.Set("Via", via+", 1.1 "+version.ShortName)
	} else {
		out.Set("Via", "1.1 "+version.ShortName)
	}
	return out
}

// CopyResponseHeaders drops hop-by-hop headers from a backend response
func CopyResponseHeaders(src http.Header) http.Header {
	out := make(http.Header, len(src))
	for header, values := range src {
		if IsHopByHopHeader(header) {
			continue
		}
		out[header] = slices.Clone(values)
	}
	return out
}
