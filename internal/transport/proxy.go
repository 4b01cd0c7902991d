package transport

import "errors"

type ProxyKind string

const (
	Residential ProxyKind = "residential"
	Datacenter  ProxyKind = "datacenter"
)

// ErrNoProxy means the source needs a proxy and none is configured.
var ErrNoProxy = errors.New("no proxy configured")

// ProxyProvider selects a proxy URL for a kind of traffic.
type ProxyProvider interface {
	Proxy(kind ProxyKind) (string, bool)
}

// StaticProxies serves fixed proxy URLs loaded from configuration.
type StaticProxies struct {
	Residential string
	Datacenter  string
}

func (s StaticProxies) Proxy(kind ProxyKind) (string, bool) {
	switch kind {
	case Residential:
		return s.Residential, s.Residential != ""
	case Datacenter:
		return s.Datacenter, s.Datacenter != ""
	}
	return "", false
}
