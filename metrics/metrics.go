// Package metrics defines the StatsD-shaped sink providers emit counters and
// histograms through, grounded on the original Remote Settings suggester's
// metrics_client.histogram_with_tags(...).with_tag(...).send() usage. No
// concrete backend ships here; NewNop is what providers default to when the
// caller does not wire a real one.
package metrics

// Sink is the ambient interface providers emit metrics through.
type Sink interface {
	// Count adds delta to the named counter, tagged by the given key/value pairs.
	Count(name string, delta int64, tags map[string]string)

	// Histogram records value under the named histogram, tagged by the given
	// key/value pairs.
	Histogram(name string, value float64, tags map[string]string)
}

type nopSink struct{}

// NewNop returns a Sink that discards everything. Safe as a zero-config
// default for tests and for components that don't care about metrics.
func NewNop() Sink {
	return nopSink{}
}

func (nopSink) Count(string, int64, map[string]string)     {}
func (nopSink) Histogram(string, float64, map[string]string) {}
