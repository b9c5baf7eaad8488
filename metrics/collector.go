package metrics

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
)

// Collector records server and replication metrics into a private
// VictoriaMetrics set and renders them in Prometheus text format
type Collector struct {
	set *vm.Set

	keys atomic.Int64

	evictions    *vm.Counter
	errors       *vm.Counter
	syncDuration *vm.Histogram
	networkBytes *vm.Counter
	reconnects   *vm.Counter
}

// NewCollector creates a collector with its own metric set
func NewCollector() *Collector {
	c := &Collector{set: vm.NewSet()}

	c.evictions = c.set.NewCounter("inmemdb_evicted_keys_total")
	c.errors = c.set.NewCounter("inmemdb_errors_total")
	c.syncDuration = c.set.NewHistogram("inmemdb_replica_sync_duration_seconds")
	c.networkBytes = c.set.NewCounter("inmemdb_replica_sync_bytes_total")
	c.reconnects = c.set.NewCounter("inmemdb_replica_reconnections_total")
	c.set.NewGauge("inmemdb_keys", func() float64 {
		return float64(c.keys.Load())
	})
	return c
}

// RecordCommandProcessed counts a command and records how long it ran
func (c *Collector) RecordCommandProcessed(cmd string, duration time.Duration) {
	name := strings.ToLower(cmd)
	c.set.GetOrCreateCounter(fmt.Sprintf(`inmemdb_commands_total{command=%q}`, name)).Inc()
	c.set.GetOrCreateHistogram(fmt.Sprintf(`inmemdb_command_duration_seconds{command=%q}`, name)).Update(duration.Seconds())
}

// RecordError counts an error by type
func (c *Collector) RecordError(errorType string) {
	c.errors.Inc()
	c.set.GetOrCreateCounter(fmt.Sprintf(`inmemdb_errors_by_type_total{type=%q}`, errorType)).Inc()
}

// RecordKeyCount sets the number of keys across all keyspaces
func (c *Collector) RecordKeyCount(count int64) {
	c.keys.Store(count)
}

// RecordEviction counts keys removed by the eviction sweep
func (c *Collector) RecordEviction(count int64) {
	if count > 0 {
		c.evictions.Add(int(count))
	}
}

// RecordSyncDuration records a full sync of a replica
func (c *Collector) RecordSyncDuration(duration time.Duration) {
	c.syncDuration.Update(duration.Seconds())
}

// RecordNetworkBytes counts snapshot bytes received by a replica
func (c *Collector) RecordNetworkBytes(bytes int64) {
	if bytes > 0 {
		c.networkBytes.Add(int(bytes))
	}
}

// RecordReconnection counts a replica reconnecting to its primary
func (c *Collector) RecordReconnection() {
	c.reconnects.Inc()
}

// KeyCount returns the last recorded key count
func (c *Collector) KeyCount() int64 {
	return c.keys.Load()
}

// WritePrometheus writes every metric in Prometheus text exposition format
func (c *Collector) WritePrometheus(w io.Writer) {
	c.set.WritePrometheus(w)
}
