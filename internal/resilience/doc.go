// Package resilience provides the reconnect backoff schedule for the sync
// engine.
//
// A single upstream connection wants attempt-counted exponential backoff
// rather than a circuit breaker: there is no pool of alternatives to shed
// load to, only one desktop to get back to. Delays double from one second
// to a twenty second ceiling, with up to 300ms of jitter so a fleet of
// phones does not reconnect in lockstep after a desktop restart.
package resilience
