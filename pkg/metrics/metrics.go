// Package metrics exposes prometheus counters for the decode pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FilesDecoded counts input files fully decoded, labelled by record type.
	FilesDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glaciers_files_decoded_total",
		Help: "Number of input files decoded successfully",
	}, []string{"type"})

	// FilesFailed counts input files that failed entirely.
	FilesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glaciers_files_failed_total",
		Help: "Number of input files that failed to decode",
	}, []string{"type"})

	// RowsDecoded counts rows pushed through the chunk decoders.
	RowsDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glaciers_rows_decoded_total",
		Help: "Number of rows processed by the chunk decoders",
	}, []string{"type"})
)
