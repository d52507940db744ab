// Package model defines shared types for the proxy.
package model

import (
	"net/url"
	"strings"
)

// QueryParam is a single outbound query key/value pair.
type QueryParam struct {
	Key   string
	Value string
}

// QueryParams is an ordered set of query parameters. Unlike url.Values it
// keeps insertion order when encoded.
type QueryParams []QueryParam

// Add appends a key/value pair.
func (q *QueryParams) Add(key, value string) {
	*q = append(*q, QueryParam{Key: key, Value: value})
}

// Get returns the first value for key and whether it was present.
func (q QueryParams) Get(key string) (string, bool) {
	for _, p := range q {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Encode serializes the pairs in insertion order using form encoding.
func (q QueryParams) Encode() string {
	var sb strings.Builder
	for i, p := range q {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.Value))
	}
	return sb.String()
}

// UpstreamResponse is a backend response whose body has been fully read.
type UpstreamResponse struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the status code is 2xx.
func (r *UpstreamResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
