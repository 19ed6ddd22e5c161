package session

import (
	"context"
	"strings"
)

// Cookie is a single browser cookie as seen after login.
type Cookie struct {
	Name  string
	Value string
}

// RequestObserver receives the headers of every outgoing request, with
// lowercased names. It is called from the browser's event goroutine and
// must not block.
type RequestObserver func(headers map[string]string)

type Browser interface {
	// Open starts an isolated browser session bound to ctx.
	Open(ctx context.Context) (Page, error)
}

type Page interface {
	OnRequest(fn RequestObserver)
	Navigate(url string) error
	Fill(selector, value string) error
	Click(selector string) error
	Cookies() ([]Cookie, error)
	Close() error
}

// CookieHeader joins cookies into a single Cookie header value.
func CookieHeader(cookies []Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
