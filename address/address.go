// Package address converts bus host addresses (rabbitmq://host[:port]/[vhost])
// into AMQP URLs and derives queue addresses from them.
package address

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Supported host address schemes.
const (
	SchemeRabbitMQ  = "rabbitmq"
	SchemeRabbitMQS = "rabbitmqs"
	SchemeAMQP      = "amqp"
	SchemeAMQPS     = "amqps"
)

const (
	defaultPort    = 5672
	defaultTLSPort = 5671
	defaultVHost   = "/"
)

var (
	// ErrScheme is returned for host addresses with an unknown scheme.
	ErrScheme = errors.New("unsupported scheme")
	// ErrNoHost is returned for host addresses without a host name.
	ErrNoHost = errors.New("missing host")
)

// Host is a broker host address.
type Host struct {
	Scheme      string
	Host        string
	Port        int
	VirtualHost string
}

// Parse parses a host address like rabbitmq://localhost/ or rabbitmqs://broker:5671/test.
// An empty or "/" path means the default virtual host "/".
func Parse(raw string) (Host, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Host{}, fmt.Errorf("parse host address: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case SchemeRabbitMQ, SchemeRabbitMQS, SchemeAMQP, SchemeAMQPS:
	default:
		return Host{}, fmt.Errorf("%w %q", ErrScheme, u.Scheme)
	}

	if u.Hostname() == "" {
		return Host{}, fmt.Errorf("%q: %w", raw, ErrNoHost)
	}

	h := Host{
		Scheme:      scheme,
		Host:        u.Hostname(),
		Port:        defaultPortFor(scheme),
		VirtualHost: defaultVHost,
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return Host{}, fmt.Errorf("parse port: %w", err)
		}
		h.Port = port
	}

	if vhost := strings.Trim(u.Path, "/"); vhost != "" {
		h.VirtualHost = vhost
	}

	return h, nil
}

// MustParse is like Parse but panics on error.
func MustParse(raw string) Host {
	h, err := Parse(raw)
	if err != nil {
		panic(err)
	}

	return h
}

// TLS reports whether the address requires a TLS connection.
func (h Host) TLS() bool {
	return h.Scheme == SchemeRabbitMQS || h.Scheme == SchemeAMQPS
}

// WithNode returns a copy of the address pointing to another cluster node.
// The node may carry its own port, otherwise the current port is kept.
// IPv6 nodes are given in brackets when they carry a port, e.g. [::1]:5673.
func (h Host) WithNode(node string) Host {
	if host, port, err := net.SplitHostPort(node); err == nil {
		if p, err := strconv.Atoi(port); err == nil {
			h.Host = host
			h.Port = p

			return h
		}
	}

	h.Host = strings.TrimSuffix(strings.TrimPrefix(node, "["), "]")

	return h
}

// URL returns the address in its canonical form, always ending with a slash.
func (h Host) URL() *url.URL {
	path := "/"
	if h.VirtualHost != defaultVHost && h.VirtualHost != "" {
		path = "/" + h.VirtualHost + "/"
	}

	return &url.URL{
		Scheme: h.Scheme,
		Host:   h.hostPort(),
		Path:   path,
	}
}

// String implements fmt.Stringer.
func (h Host) String() string {
	return h.URL().String()
}

// QueueAddress derives the address of a queue on this host,
// e.g. rabbitmq://localhost/orders.
func (h Host) QueueAddress(queue string) *url.URL {
	u := h.URL()
	u.Path += queue

	return u
}

// AMQPURL builds the URL accepted by amqp091.Dial.
func (h Host) AMQPURL(username, password string) string {
	scheme := SchemeAMQP
	if h.TLS() {
		scheme = SchemeAMQPS
	}

	vhost := ""
	if h.VirtualHost != defaultVHost {
		vhost = url.PathEscape(h.VirtualHost)
	}

	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(username, password),
		Host:   net.JoinHostPort(h.Host, strconv.Itoa(h.Port)),
		Path:   "/",
	}
	if vhost != "" {
		u.Path = "/" + h.VirtualHost
		u.RawPath = "/" + vhost
	}

	return u.String()
}

func (h Host) hostPort() string {
	if h.Port == 0 || h.Port == defaultPortFor(h.Scheme) {
		if strings.Contains(h.Host, ":") {
			return "[" + h.Host + "]"
		}

		return h.Host
	}

	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

func defaultPortFor(scheme string) int {
	if scheme == SchemeRabbitMQS || scheme == SchemeAMQPS {
		return defaultTLSPort
	}

	return defaultPort
}
