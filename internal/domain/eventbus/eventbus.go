// Package eventbus carries analysis and session events to the logging
// handler and, when a SQL database is configured, to the event journal.
package eventbus

import "roadscan-server-go/internal/utils"

const defaultWorkers = 4

// New returns a started bus with the given worker count.
func New(workers int, logger *utils.Logger) *AsyncEventBus {
	bus := NewAsyncEventBus(workers)
	bus.SetLogger(logger)
	bus.Start()
	return bus
}
