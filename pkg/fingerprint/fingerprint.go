// Package fingerprint derives stable client identifiers from request headers
// and recognises user agents of automated tooling.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"regexp"
)

// Device hashes the headers a browser keeps stable for the life of a session.
// Missing headers hash as empty strings.
func Device(h http.Header) string {
	return digest(h.Get("User-Agent"), h.Get("Accept-Language"), h.Get("Accept-Encoding"))
}

// Request hashes the caller address together with its browser headers.
func Request(h http.Header, ip string) string {
	return digest(ip, h.Get("User-Agent"), h.Get("Accept-Language"))
}

func digest(parts ...string) string {
	sum := sha256.New()
	for _, p := range parts {
		sum.Write([]byte(p))
	}
	return hex.EncodeToString(sum.Sum(nil))
}

// Signature describes an automation match.
type Signature struct {
	Kind   string
	Reason string
}

const (
	KindTool     = "automated_tool"
	KindBot      = "bot"
	KindHeadless = "headless_browser"
)

type pattern struct {
	re  *regexp.Regexp
	sig Signature
}

var patterns = []pattern{
	{regexp.MustCompile(`(?i)curl|wget|python|scrapy|go-http-client|httpclient|postman`), Signature{KindTool, "Automated tool detected"}},
	{regexp.MustCompile(`(?i)bot|crawler|spider`), Signature{KindBot, "Bot detected"}},
	{regexp.MustCompile(`(?i)headless|phantomjs|selenium|webdriver|puppeteer|playwright`), Signature{KindHeadless, "Headless browser detected"}},
}

// DetectAutomation matches ua against known tool, bot and headless-browser signatures.
func DetectAutomation(ua string) (Signature, bool) {
	for _, p := range patterns {
		if p.re.MatchString(ua) {
			return p.sig, true
		}
	}
	return Signature{}, false
}
