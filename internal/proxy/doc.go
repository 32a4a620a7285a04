// Package proxy forwards the terminal page's API calls from the dev server to
// the backend.
//
// A Table holds the ordered rules loaded from configuration; the first rule
// whose prefix starts the request path wins. Requests are forwarded with
// method, path, query, headers and body untouched. Each distinct target
// origin is an Upstream that tracks reachability, in-flight requests and
// response times, and is guarded by a circuit breaker.
package proxy
