// Package memory holds typed object pools for the service's hot path:
// scratch buffers for encoding log records and events.
package memory
