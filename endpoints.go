package xclient

import "strings"

const (
	// APIBaseURL is prefixed to request paths that start with "/".
	APIBaseURL = "https://x.com/i/api"
)

// bearerTokens is the list of known X web-app bearer tokens.
var bearerTokens = []string{
	"AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA",
	"AAAAAAAAAAAAAAAAAAAAAFQODgEAAAAAVHTp76lzh3rFzcHbmHVvQxYYpTw%3DckAlMINMjmCwxUcaXbAN4XqJVdgMJaHqNOFgPMK0zN1qLqLQCF",
}

// BearerToken is the active bearer token (first in list).
var BearerToken = bearerTokens[0]

// ResolveURL expands an API path such as /graphql/<id>/UserByScreenName into a full URL.
// Absolute URLs are returned unchanged.
func ResolveURL(ref string) string {
	if strings.HasPrefix(ref, "/") {
		return APIBaseURL + ref
	}
	return ref
}
