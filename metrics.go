package rowtable

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordCreate is called after each Create.
	RecordCreate(duration time.Duration, err error)

	// RecordSetRow is called after each single-row write.
	RecordSetRow(duration time.Duration, err error)

	// RecordClose is called after a Writer is finalized.
	RecordClose(duration time.Duration, err error)

	// RecordOpen is called after each Open or OpenBlob.
	RecordOpen(duration time.Duration, err error)

	// RecordGetRow is called after each row read.
	RecordGetRow(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCreate(time.Duration, error) {}
func (NoopMetricsCollector) RecordSetRow(time.Duration, error) {}
func (NoopMetricsCollector) RecordClose(time.Duration, error)  {}
func (NoopMetricsCollector) RecordOpen(time.Duration, error)   {}
func (NoopMetricsCollector) RecordGetRow(time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	CreateCount      atomic.Int64
	CreateErrors     atomic.Int64
	SetRowCount      atomic.Int64
	SetRowErrors     atomic.Int64
	SetRowTotalNanos atomic.Int64
	CloseCount       atomic.Int64
	CloseErrors      atomic.Int64
	OpenCount        atomic.Int64
	OpenErrors       atomic.Int64
	GetRowCount      atomic.Int64
	GetRowErrors     atomic.Int64
	GetRowTotalNanos atomic.Int64
}

// RecordCreate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCreate(_ time.Duration, err error) {
	b.CreateCount.Add(1)
	if err != nil {
		b.CreateErrors.Add(1)
	}
}

// RecordSetRow implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSetRow(duration time.Duration, err error) {
	b.SetRowCount.Add(1)
	b.SetRowTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SetRowErrors.Add(1)
	}
}

// RecordClose implements MetricsCollector.
func (b *BasicMetricsCollector) RecordClose(_ time.Duration, err error) {
	b.CloseCount.Add(1)
	if err != nil {
		b.CloseErrors.Add(1)
	}
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(_ time.Duration, err error) {
	b.OpenCount.Add(1)
	if err != nil {
		b.OpenErrors.Add(1)
	}
}

// RecordGetRow implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGetRow(duration time.Duration, err error) {
	b.GetRowCount.Add(1)
	b.GetRowTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.GetRowErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		CreateCount:    b.CreateCount.Load(),
		CreateErrors:   b.CreateErrors.Load(),
		SetRowCount:    b.SetRowCount.Load(),
		SetRowErrors:   b.SetRowErrors.Load(),
		SetRowAvgNanos: avg(b.SetRowTotalNanos.Load(), b.SetRowCount.Load()),
		CloseCount:     b.CloseCount.Load(),
		CloseErrors:    b.CloseErrors.Load(),
		OpenCount:      b.OpenCount.Load(),
		OpenErrors:     b.OpenErrors.Load(),
		GetRowCount:    b.GetRowCount.Load(),
		GetRowErrors:   b.GetRowErrors.Load(),
		GetRowAvgNanos: avg(b.GetRowTotalNanos.Load(), b.GetRowCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	CreateCount    int64
	CreateErrors   int64
	SetRowCount    int64
	SetRowErrors   int64
	SetRowAvgNanos int64
	CloseCount     int64
	CloseErrors    int64
	OpenCount      int64
	OpenErrors     int64
	GetRowCount    int64
	GetRowErrors   int64
	GetRowAvgNanos int64
}
