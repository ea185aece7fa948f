package fingerprint

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func headers(ua, lang, enc string) http.Header {
	h := http.Header{}
	if ua != "" {
		h.Set("User-Agent", ua)
	}
	if lang != "" {
		h.Set("Accept-Language", lang)
	}
	if enc != "" {
		h.Set("Accept-Encoding", enc)
	}
	return h
}

func TestDeviceIsStable(t *testing.T) {
	a := Device(headers("Mozilla/5.0", "en-US", "gzip"))
	b := Device(headers("Mozilla/5.0", "en-US", "gzip"))

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestDeviceChangesWithUserAgent(t *testing.T) {
	a := Device(headers("Mozilla/5.0 (X11)", "en-US", "gzip"))
	b := Device(headers("Mozilla/5.0 (iPhone)", "en-US", "gzip"))

	assert.NotEqual(t, a, b)
}

func TestDeviceMissingHeadersHashAsEmpty(t *testing.T) {
	assert.Equal(t, digest("", "", ""), Device(http.Header{}))
}

func TestRequestIncludesIP(t *testing.T) {
	h := headers("Mozilla/5.0", "en-US", "")
	assert.NotEqual(t, Request(h, "10.0.0.1"), Request(h, "10.0.0.2"))
}

func TestDetectAutomation(t *testing.T) {
	tests := []struct {
		ua   string
		kind string
		ok   bool
	}{
		{"curl/8.4.0", KindTool, true},
		{"python-requests/2.31", KindTool, true},
		{"Scrapy/2.11 (+https://scrapy.org)", KindTool, true},
		{"Googlebot/2.1", KindBot, true},
		{"Mozilla/5.0 HeadlessChrome/120.0", KindHeadless, true},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.ua, func(t *testing.T) {
			sig, ok := DetectAutomation(tt.ua)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.kind, sig.Kind)
		})
	}
}
