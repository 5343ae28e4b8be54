// Package credstore defines the credential persistence contract and two
// implementations: a file-backed store for the CLI and an in-memory store
// for tests.
//
// The contract is deliberately narrow: load, save, clear, all best-effort
// durable. Malformed stored data is treated as absence, never as a crash;
// the worst outcome of a corrupted file is a re-pair prompt.
package credstore
