package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
)

// forwardedHeaders are stripped by httputil before Rewrite runs; they are
// copied back so the backend sees the request as the client sent it.
var forwardedHeaders = []string{"X-Forwarded-For", "X-Forwarded-Host", "X-Forwarded-Proto"}

func newReverseProxy(rule *Rule) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL = rule.forwardURL(pr.In.URL)

			for _, h := range forwardedHeaders {
				if v, ok := pr.In.Header[h]; ok {
					pr.Out.Header[h] = v
				}
			}

			if rule.PreserveHost {
				pr.Out.Host = pr.In.Host
			} else {
				pr.Out.Host = ""
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			if rec, ok := w.(*statusRecorder); ok {
				rec.proxyErr = err
			}

			status := http.StatusBadGateway
			if errors.Is(err, context.Canceled) {
				// client went away; nobody reads this
				status = 499
			}

			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(status)
			fmt.Fprintf(w, "dev proxy: %s %s -> %s failed: %v\n", r.Method, r.URL.Path, rule.Upstream.Origin(), err)
		},
	}
}

// forwardURL maps an incoming request URL onto the rule's upstream. The path
// and query are kept verbatim.
func (r *Rule) forwardURL(in *url.URL) *url.URL {
	target := r.Upstream.URL()

	out := *in
	out.Scheme = target.Scheme
	out.Host = target.Host
	out.User = nil

	base := strings.TrimRight(target.Path, "/")
	if base != "" {
		out.Path = base + in.Path
		if in.RawPath != "" {
			out.RawPath = strings.TrimRight(target.EscapedPath(), "/") + in.RawPath
		}
	}

	switch {
	case target.RawQuery == "":
	case in.RawQuery == "":
		out.RawQuery = target.RawQuery
	default:
		out.RawQuery = target.RawQuery + "&" + in.RawQuery
	}

	return &out
}
