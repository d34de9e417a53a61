package worker

import (
	"github.com/okian/feedmill/pkg/logger"
)

// Option applies a configuration option to the ArchiveWorker.
type Option func(*ArchiveWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *ArchiveWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *ArchiveWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}
