// Package uri models the resource address used by OData and SData services.
// A Uri holds the service root (scheme, host, port, api, version, document),
// an ordered list of path segments and a set of query options, and renders
// them into a request URL. Index 0 of the path segments is reserved for the
// resource kind; the kind and the instance selector both merge into it.
//
// Addresses are mutable and owned by one caller at a time. Requests clone the
// connection's address before touching it, so a Uri is never shared between
// two in-flight operations.
package uri
