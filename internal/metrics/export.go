package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// ExportConfig selects where metrics go when a run ends. Both are optional.
type ExportConfig struct {
	// TextfilePath is written in the node_exporter textfile format.
	TextfilePath string
	// PushgatewayURL receives the metrics under job "poolkit".
	PushgatewayURL string
	// Grouping labels for the push, e.g. command and chain id.
	Grouping map[string]string
}

// Export writes or pushes the collected metrics per cfg.
func (m *PrometheusMetrics) Export(cfg ExportConfig) error {
	if m == nil {
		return nil
	}
	if cfg.TextfilePath != "" {
		if err := prometheus.WriteToTextfile(cfg.TextfilePath, m.registry); err != nil {
			return fmt.Errorf("write metrics textfile: %w", err)
		}
	}
	if cfg.PushgatewayURL != "" {
		pusher := push.New(cfg.PushgatewayURL, "poolkit").Gatherer(m.registry)
		for name, value := range cfg.Grouping {
			pusher = pusher.Grouping(name, value)
		}
		if err := pusher.Push(); err != nil {
			return fmt.Errorf("push metrics to %s: %w", cfg.PushgatewayURL, err)
		}
	}
	return nil
}
