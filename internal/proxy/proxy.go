// Package proxy прокидывает запросы дашборда на бэкенд Uppership,
// подставляя серверный API-ключ. Ключ в браузер не попадает.
package proxy

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

type Proxy struct {
	rp     *httputil.ReverseProxy
	prefix string
}

// New строит прокси на target (например https://go.uppership.com/public).
// Запрос /api/packages?shop=x уходит на target/packages?shop=x
// с заголовком x-api-key.
func New(target, prefix, apiKey string) (*Proxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, errors.Wrap(err, "parse proxy target")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("proxy target %q: scheme and host required", target)
	}

	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(u)
			pr.Out.URL.Path = joinPath(u.Path, strings.TrimPrefix(pr.In.URL.Path, prefix))
			pr.Out.Header.Set("x-api-key", apiKey)
			pr.Out.Host = u.Host
			// Служебные заголовки клиента наружу не отдаём.
			pr.Out.Header.Del("Cookie")
			pr.Out.Header.Del("Authorization")
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slog.Error("proxy upstream", "path", r.URL.Path, "error", err.Error())
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"upstream unavailable"}`))
		},
	}

	return &Proxy{rp: rp, prefix: prefix}, nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.rp.ServeHTTP(w, r)
}

func joinPath(base, rest string) string {
	base = strings.TrimSuffix(base, "/")
	if rest == "" {
		return base + "/"
	}
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	return base + rest
}
