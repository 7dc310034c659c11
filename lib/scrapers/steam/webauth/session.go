package webauth

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
)

// a session cookie observed on the login response, remembered so its
// value and secure flag can be replayed onto every content domain
type capturedCookie struct {
	Name   string
	Value  string
	Secure bool
}

func (c *Client) captureSessionCookies(cookies []*http.Cookie) {
	c.sessionCookies = c.sessionCookies[:0]
	for _, cookie := range cookies {
		c.sessionCookies = append(c.sessionCookies, capturedCookie{
			Name:   cookie.Name,
			Value:  cookie.Value,
			Secure: cookie.Secure,
		})
	}
}

// assertSessionCookies re-asserts the session cookies plus the three
// mandatory cookies (language preference, the age-gate birthtime
// placeholder and the session id) on every content domain. The provider
// can silently drop any of them, so this runs before every authorized
// request rather than once at login.
func (c *Client) assertSessionCookies() {
	jar := c.Http.GetClient().Jar
	if jar == nil {
		return
	}

	for _, domain := range c.Domains {
		u := &url.URL{Scheme: "https", Host: domain, Path: "/"}

		cookies := make([]*http.Cookie, 0, len(c.sessionCookies)+3)
		for _, captured := range c.sessionCookies {
			cookies = append(cookies, &http.Cookie{
				Name:   captured.Name,
				Value:  captured.Value,
				Secure: captured.Secure,
			})
		}
		cookies = append(cookies,
			&http.Cookie{Name: "Steam_Language", Value: c.Language},
			&http.Cookie{Name: "birthtime", Value: "-3333"},
			&http.Cookie{Name: "sessionid", Value: c.SessionID},
		)

		jar.SetCookies(u, cookies)
	}
}

// Request returns a request with the session cookies freshly asserted
// on all content domains. This is the only path to the network for
// every component that consumes the authorized session.
func (c *Client) Request(ctx context.Context) *resty.Request {
	c.assertSessionCookies()
	return c.Http.R().SetContext(ctx)
}

func (c *Client) Get(ctx context.Context, link string, query map[string]string) (*resty.Response, error) {
	req := c.Request(ctx)
	if query != nil {
		req.SetQueryParams(query)
	}
	return req.Get(link)
}

func (c *Client) PostForm(ctx context.Context, link string, form map[string]string) (*resty.Response, error) {
	return c.Request(ctx).SetFormData(form).Post(link)
}
