package rabbittest

import (
	"fmt"

	rh "github.com/michaelklishin/rabbit-hole/v2"

	"github.com/bigchange/busharness/vhost"
)

// Management inspects a virtual host through the RabbitMQ management API.
type Management struct {
	client *rh.Client
	vhost  string
}

// NewManagement creates a management API client for the configured virtual host.
func NewManagement(cfg Config) (*Management, error) {
	client, err := rh.NewClient(cfg.ManagementURL, cfg.Username, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("management client: %w", err)
	}

	return &Management{
		client: client,
		vhost:  cfg.Host.VirtualHost,
	}, nil
}

// Queues returns names of all queues in the virtual host.
func (m *Management) Queues() ([]string, error) {
	queues, err := m.client.ListQueuesIn(m.vhost)
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}

	names := make([]string, 0, len(queues))
	for _, q := range queues {
		names = append(names, q.Name)
	}

	return names, nil
}

// Exchanges returns names of all exchanges in the virtual host, including the default ones.
func (m *Management) Exchanges() ([]string, error) {
	exchanges, err := m.client.ListExchangesIn(m.vhost)
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}

	names := make([]string, 0, len(exchanges))
	for _, e := range exchanges {
		names = append(names, e.Name)
	}

	return names, nil
}

// Remaining returns which of the named resources exist, by kind.
func (m *Management) Remaining(names []string) (map[vhost.Kind][]string, error) {
	queues, err := m.Queues()
	if err != nil {
		return nil, err
	}

	exchanges, err := m.Exchanges()
	if err != nil {
		return nil, err
	}

	return map[vhost.Kind][]string{
		vhost.KindExchange: intersect(names, exchanges),
		vhost.KindQueue:    intersect(names, queues),
	}, nil
}

func intersect(wanted, existing []string) []string {
	set := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		set[e] = struct{}{}
	}

	var found []string
	for _, w := range wanted {
		if _, ok := set[w]; ok {
			found = append(found, w)
		}
	}

	return found
}
