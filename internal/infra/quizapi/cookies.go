package quizapi

import (
	"context"
	"net/http"
)

type cookiesKey struct{}

// WithCookies attaches the browser's upstream credentials to ctx so calls made on its behalf carry them.
// Cookies named in skip (e.g. the gateway's own tab cookie) are not forwarded.
func WithCookies(ctx context.Context, cookies []*http.Cookie, skip ...string) context.Context {
	out := make([]*http.Cookie, 0, len(cookies))
next:
	for _, c := range cookies {
		for _, name := range skip {
			if c.Name == name {
				continue next
			}
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return context.WithValue(ctx, cookiesKey{}, out)
}

// ForwardedCookies returns the cookies attached by WithCookies.
func ForwardedCookies(ctx context.Context) []*http.Cookie {
	cookies, _ := ctx.Value(cookiesKey{}).([]*http.Cookie)
	return cookies
}
