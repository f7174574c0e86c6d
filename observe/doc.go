// Package observe provides observability primitives for outbound RPC calls.
//
// It is a pure instrumentation library: spans per call, counters for
// attempts, retries, throttled and exhausted outcomes, and a structured JSON
// logger that redacts credentials. Providers created by NewObserver are owned
// by the Observer and never installed globally.
package observe
