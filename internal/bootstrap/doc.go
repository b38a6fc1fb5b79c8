// Package bootstrap runs the DomiSafe start-up sequence: dependency sync,
// credential gate, environment export and application launch. It wires the
// installer, credential and launcher packages together, keeping the main
// package focused on CLI parsing and exit status.
//
// The exit status is the application's own once it has been launched. The
// bootstrapper's codes 1 and 2 therefore overlap with ordinary application
// failures; check the log for "credential not resolved" or "dependency
// install failed" to tell them apart.
package bootstrap
