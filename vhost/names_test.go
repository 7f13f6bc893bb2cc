package vhost_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bigchange/busharness/vhost"
)

func TestUnitResources(t *testing.T) {
	tests := map[string]struct {
		base string
		want []string
	}{
		"configured name": {
			base: "orders",
			want: []string{"orders", "orders_skipped", "orders_error", "orders_delay"},
		},
		"legacy name": {
			base: vhost.LegacyBase,
			want: []string{"input_queue", "input_queue_skipped", "input_queue_error", "input_queue_delay"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, vhost.Resources(tt.base), "should derive all resource names")
		})
	}
}

func TestUnitUnion(t *testing.T) {
	tests := map[string]struct {
		bases []string
		want  []string
	}{
		"different bases": {
			bases: []string{vhost.LegacyBase, "orders"},
			want: []string{
				"input_queue", "input_queue_skipped", "input_queue_error", "input_queue_delay",
				"orders", "orders_skipped", "orders_error", "orders_delay",
			},
		},
		"same bases": {
			bases: []string{vhost.LegacyBase, vhost.LegacyBase},
			want:  []string{"input_queue", "input_queue_skipped", "input_queue_error", "input_queue_delay"},
		},
		"overlapping bases": {
			bases: []string{"orders", "orders_error"},
			want: []string{
				"orders", "orders_skipped", "orders_error", "orders_delay",
				"orders_error_skipped", "orders_error_error", "orders_error_delay",
			},
		},
		"no bases": {
			bases: nil,
			want:  []string{},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, vhost.Union(tt.bases...), "should return ordered union")
		})
	}
}
