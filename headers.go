package xclient

import (
	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-xclient/xtid"
)

// defaultUserAgent is the fallback User-Agent when neither UserAgent nor Profile is set.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// apiHeaders returns the base headers required by the web API.
// Session cookies and the csrf header are only sent when set.
func apiHeaders(authToken, ct0, userAgent, language string) map[string]string {
	h := map[string]string{
		"authorization":             "Bearer " + BearerToken,
		"x-twitter-active-user":     "yes",
		"x-twitter-client-language": language,
		"content-type":              "application/json",
		"user-agent":                userAgent,
		"accept":                    "*/*",
		"accept-language":           "en-US,en;q=0.9",
		"accept-encoding":           "gzip, deflate, br",
		"referer":                   "https://x.com/",
		"origin":                    "https://x.com",
		"sec-fetch-dest":            "empty",
		"sec-fetch-mode":            "cors",
		"sec-fetch-site":            "same-origin",
	}
	switch {
	case authToken != "":
		h["x-twitter-auth-type"] = "OAuth2Session"
		h["x-csrf-token"] = ct0
		h["cookie"] = "auth_token=" + authToken + "; ct0=" + ct0
	case ct0 != "":
		h["x-csrf-token"] = ct0
		h["cookie"] = "ct0=" + ct0
	}
	withClientHints(h, userAgent)
	return h
}

// pageHeaders returns navigation headers for the signer's home page and bundle fetches.
func pageHeaders(userAgent string) map[string]string {
	h := xtid.DefaultHeaders()
	h["user-agent"] = userAgent
	withClientHints(h, userAgent)
	return h
}

func withClientHints(h map[string]string, userAgent string) {
	if ch := stealth.ClientHintsHeaders(userAgent); ch != nil {
		for k, v := range ch {
			h[k] = v
		}
	}
}

// apiHeaderOrder is the header order for TLS fingerprint consistency.
var apiHeaderOrder = []string{
	"authorization",
	"content-type",
	"x-csrf-token",
	"x-twitter-auth-type",
	"x-twitter-active-user",
	"x-twitter-client-language",
	xtid.HeaderName,
	"sec-ch-ua",
	"sec-ch-ua-mobile",
	"sec-ch-ua-platform",
	"sec-fetch-dest",
	"sec-fetch-mode",
	"sec-fetch-site",
	"cookie",
	"user-agent",
	"accept",
	"accept-language",
	"accept-encoding",
	"referer",
	"origin",
}

// pageHeaderOrder is the header order for document navigations.
var pageHeaderOrder = []string{
	"sec-ch-ua",
	"sec-ch-ua-mobile",
	"sec-ch-ua-platform",
	"user-agent",
	"accept",
	"content-type",
	"accept-language",
}
