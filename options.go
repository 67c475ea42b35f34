package bargate

import (
	"time"

	"github.com/ashgrove/bargate/internal/logger"
	"github.com/ashgrove/bargate/internal/metrics"
	"github.com/ashgrove/bargate/internal/pfm"
)

type config struct {
	syncInterval time.Duration
	log          *logger.Logger
	metrics      *metrics.Metrics
	initialSize  int64
}

func defaultConfig() config {
	return config{
		syncInterval: 0, // 0 means the wal package's own default (2s)
		log:          logger.GetGlobalLogger(),
		initialSize:  pfm.DefaultInitialSize,
	}
}

// Option configures a Store at construction time.
type Option func(*config)

// WithSyncInterval overrides the write-ahead log's throttled-fsync
// window (default 2 seconds).
func WithSyncInterval(d time.Duration) Option {
	return func(c *config) { c.syncInterval = d }
}

// WithLogger attaches a structured logger; defaults to the package's
// global logger if not set.
func WithLogger(l *logger.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithMetrics attaches a Prometheus metrics collector. Metrics are only
// recorded when this option is supplied.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithInitialSize sets the byte budget a newly created store pre-allocates
// its data file to, before any growth on demand. Has no effect on Open,
// since an existing file already carries its own provisioned size.
func WithInitialSize(bytes int64) Option {
	return func(c *config) { c.initialSize = bytes }
}
