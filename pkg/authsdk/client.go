package authsdk

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// Cookie names set by the service.
const (
	AccessCookieName  = "__Host-ve_access"
	RefreshCookieName = "__Host-ve_refresh"
	CSRFCookieName    = "g_csrf_token"
)

// SDKClient is a cookie-holding client for the session API.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// Origin is sent on every request. The service rejects state-changing
	// requests whose Origin is not allow-listed.
	Origin string

	base *url.URL
}

// NewSDKClient creates a client with its own cookie jar.
func NewSDKClient(baseURL, origin string) (*SDKClient, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &SDKClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
		Origin: origin,
		base:   base,
	}, nil
}

// Cookie returns the current value of a cookie held for the service, or
// "" when there is none.
func (c *SDKClient) Cookie(name string) string {
	if c.HTTPClient.Jar == nil {
		return ""
	}
	for _, ck := range c.HTTPClient.Jar.Cookies(c.base) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// SetCookie stores a cookie for the service, replacing any with the same
// name. Pass an empty value to drop it.
func (c *SDKClient) SetCookie(name, value string) {
	ck := &http.Cookie{Name: name, Value: value, Path: "/"}
	if value == "" {
		ck.MaxAge = -1
	}
	c.HTTPClient.Jar.SetCookies(c.base, []*http.Cookie{ck})
}
