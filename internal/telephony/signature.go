package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"voice-relay/pkg/logger"

	"github.com/gin-gonic/gin"
)

const signatureHeader = "X-Twilio-Signature"

// Signature computes the X-Twilio-Signature value for a request to fullURL.
// POST parameters are appended sorted by key, each as key followed by value.
// Ref: https://www.twilio.com/docs/usage/security#validating-requests
func Signature(authToken, fullURL string, params url.Values) string {
	var b strings.Builder
	b.WriteString(fullURL)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vals := append([]string(nil), params[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidSignature reports whether r carries a signature matching authToken.
// The URL is rebuilt from the canonical baseURL, never from request headers.
func ValidSignature(r *http.Request, authToken, baseURL string) bool {
	got := r.Header.Get(signatureHeader)
	if got == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	var params url.Values
	if r.Method == http.MethodPost {
		params = r.PostForm
	}
	want := Signature(authToken, strings.TrimRight(baseURL, "/")+r.URL.RequestURI(), params)
	return hmac.Equal([]byte(got), []byte(want))
}

// RequireSignature rejects webhook requests that were not signed by Twilio.
func RequireSignature(authToken, baseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ValidSignature(c.Request, authToken, baseURL) {
			logger.FromGin(c).Warn("twilio signature rejected", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
		c.Next()
	}
}
