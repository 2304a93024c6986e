package rowtable

import (
	"github.com/hupe1980/rowtable/internal/compress"
	"github.com/hupe1980/rowtable/internal/fs"
	"github.com/hupe1980/rowtable/internal/resource"
)

// Compression selects how row and column name lists are stored.
type Compression uint8

const (
	// CompressionNone stores name lists raw.
	CompressionNone Compression = Compression(compress.None)
	// CompressionLZ4 favors speed.
	CompressionLZ4 Compression = Compression(compress.LZ4)
	// CompressionZSTD favors ratio; good for large row indexes.
	CompressionZSTD Compression = Compression(compress.ZSTD)
)

func (c Compression) String() string { return compress.Type(c).String() }

type (
	// FileSystem abstracts the file operations a Writer performs.
	FileSystem = fs.FileSystem
	// File is an open table file of a FileSystem.
	File = fs.File
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	compression      Compression
	placeholder      float32
	fs               FileSystem
	durable          bool

	ioLimitBytesPerSec   int64
	maxConcurrentFetches int64
	cacheBytes           int64
	cacheBlockSize       int64
}

// Option configures Create, Open and OpenBlob.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		compression:      CompressionNone,
		fs:               fs.Default,
		durable:          true,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// controller returns the resource controller for readers, or nil when no
// limit was configured.
func (o *options) controller() *resource.Controller {
	if o.ioLimitBytesPerSec <= 0 && o.maxConcurrentFetches <= 0 && o.cacheBytes <= 0 {
		return nil
	}
	return resource.NewController(resource.Config{
		MemoryLimitBytes:     o.cacheBytes,
		MaxConcurrentFetches: o.maxConcurrentFetches,
		IOLimitBytesPerSec:   o.ioLimitBytesPerSec,
	})
}

// WithLogger sets the structured logger. If nil, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the metrics sink. If nil, metrics are disabled.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithCompression compresses the row and column name lists of new tables.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithPlaceholder sets the value of cells that are never written.
// The default is 0. NaN is allowed.
func WithPlaceholder(v float32) Option {
	return func(o *options) {
		o.placeholder = v
	}
}

// WithFileSystem replaces the local file system used by Create.
func WithFileSystem(fsys FileSystem) Option {
	return func(o *options) {
		if fsys == nil {
			fsys = fs.Default
		}
		o.fs = fsys
	}
}

// WithSync controls whether commits fsync the file. Enabled by default;
// disabling it trades crash safety for write speed.
func WithSync(enabled bool) Option {
	return func(o *options) {
		o.durable = enabled
	}
}

// WithIOLimit throttles reader fetches to bytesPerSec.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimitBytesPerSec = bytesPerSec
	}
}

// WithMaxConcurrentFetches bounds parallel fetches of Reader.Rows and of
// the block cache.
func WithMaxConcurrentFetches(n int) Option {
	return func(o *options) {
		o.maxConcurrentFetches = int64(n)
	}
}

// WithBlockCache caches remote reads of OpenBlob in an LRU of capacity bytes,
// split into blocks of blockSize bytes (0 selects the default block size).
func WithBlockCache(capacity, blockSize int64) Option {
	return func(o *options) {
		o.cacheBytes = capacity
		o.cacheBlockSize = blockSize
	}
}
