// Package service is the only write entry point into the market. It runs
// each command through the matching engine over a per-request buffer, logs
// it to the entry WAL, commits the buffer and queues the resulting events
// in the exit WAL. Transports such as gRPC and HTTP sit on top of it.
package service
