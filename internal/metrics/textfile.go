package metrics

import (
	prom "github.com/prometheus/client_golang/prometheus"

	derrors "git.home.luguber.info/inful/docverify/internal/foundation/errors"
)

// WriteTextfile writes every metric gathered from g to path in the text
// exposition format, for collection by node_exporter's textfile collector.
func WriteTextfile(path string, g prom.Gatherer) error {
	if err := prom.WriteToTextfile(path, g); err != nil {
		return derrors.FileSystemError("failed to write metrics textfile").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return nil
}
