package api

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"evalprof/internal/store"
)

// deviceCookieAge keeps the device id for as long as browsers allow.
const deviceCookieAge = 400 * 24 * time.Hour

// cookieStore is the browser's persistent storage as seen from one
// request: reads come from the request cookies, writes go to the response.
type cookieStore struct {
	r       *http.Request
	w       http.ResponseWriter
	secure  bool
	pending map[string]*string // nil value marks a removal
}

var _ store.Store = (*cookieStore)(nil)

func newCookieStore(w http.ResponseWriter, r *http.Request, secure bool) *cookieStore {
	return &cookieStore{r: r, w: w, secure: secure, pending: make(map[string]*string)}
}

func (c *cookieStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := c.pending[key]; ok {
		if v == nil {
			return "", store.ErrNotFound
		}
		return *v, nil
	}
	cookie, err := c.r.Cookie(key)
	if err != nil {
		return "", store.ErrNotFound
	}
	return cookie.Value, nil
}

func (c *cookieStore) Set(_ context.Context, key, value string) error {
	cookie := c.cookie(key, value)
	cookie.MaxAge = int(deviceCookieAge / time.Second)
	if err := cookie.Valid(); err != nil {
		return err
	}
	http.SetCookie(c.w, cookie)
	c.pending[key] = &value
	return nil
}

func (c *cookieStore) Remove(_ context.Context, key string) error {
	cookie := c.cookie(key, "")
	cookie.MaxAge = -1
	http.SetCookie(c.w, cookie)
	c.pending[key] = nil
	return nil
}

func (c *cookieStore) Keys(_ context.Context, prefix string) ([]string, error) {
	seen := make(map[string]bool)
	for _, cookie := range c.r.Cookies() {
		if strings.HasPrefix(cookie.Name, prefix) {
			seen[cookie.Name] = true
		}
	}
	for key, v := range c.pending {
		if strings.HasPrefix(key, prefix) {
			seen[key] = v != nil
		}
	}

	keys := make([]string, 0, len(seen))
	for key, present := range seen {
		if present {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *cookieStore) cookie(key, value string) *http.Cookie {
	return &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
