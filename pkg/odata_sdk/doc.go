// Package odata_sdk bootstraps a Connection from configuration. ODATA_MODE
// selects the runtime: "http" talks to ODATA_URL, "mock" serves every request
// in-process from an in-memory service (optionally seeded from
// ODATA_MOCK_SEED), and "auto" picks http when a URL is configured and mock
// otherwise.
package odata_sdk
