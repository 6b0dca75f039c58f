// Package connection performs the HTTP exchanges behind OData and SData
// requests. A Connection owns the service base address, credentials and wire
// format flags. It builds headers, executes one request per call on its own
// goroutine, unwraps the response envelope and reports the outcome through
// the caller's callbacks and the connection's Notifier.
//
// When a batch scope is set, reads and writes are recorded on the Batch and
// return a queued Call without performing any I/O.
package connection
