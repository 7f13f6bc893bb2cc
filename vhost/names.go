package vhost

// LegacyBase is the queue name earlier fixtures used unconditionally.
// Cleanup always covers it so leftovers from those runs cannot leak into new ones.
const LegacyBase = "input_queue"

// Suffixes of the resources the bus derives from an endpoint name.
const (
	SkippedSuffix = "_skipped"
	ErrorSuffix   = "_error"
	DelaySuffix   = "_delay"
)

// Resources returns names of all resources derived from the base name:
// the base itself and its skipped, error and delay variants.
// Each name denotes both a queue and an exchange.
func Resources(base string) []string {
	return []string{
		base,
		base + SkippedSuffix,
		base + ErrorSuffix,
		base + DelaySuffix,
	}
}

// Union returns resources of all bases in the given order, without duplicates.
func Union(bases ...string) []string {
	seen := make(map[string]struct{}, len(bases)*4)
	names := make([]string, 0, len(bases)*4)

	for _, base := range bases {
		for _, name := range Resources(base) {
			if _, ok := seen[name]; ok {
				continue
			}

			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	return names
}
