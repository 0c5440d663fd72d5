package telephony

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func signedRequest(token, base, path string, form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set(signatureHeader, Signature(token, base+path, form))
	return r
}

func TestValidSignature(t *testing.T) {
	form := url.Values{"CallSid": {"CA1"}, "CallStatus": {"completed"}}
	r := signedRequest("tok", "https://calls.example.com", "/api/call-status?messageId=m1", form)
	if !ValidSignature(r, "tok", "https://calls.example.com/") {
		t.Fatalf("expected valid signature")
	}

	r = signedRequest("tok", "https://calls.example.com", "/api/call-status?messageId=m1", form)
	if ValidSignature(r, "other", "https://calls.example.com") {
		t.Fatalf("expected invalid signature with wrong token")
	}
}

func TestRequireSignature(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/call-status", RequireSignature("tok", "https://calls.example.com"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/call-status", strings.NewReader("CallStatus=completed"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without signature, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest("tok", "https://calls.example.com", "/api/call-status", url.Values{"CallStatus": {"completed"}}))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with signature, got %d", w.Code)
	}
}
