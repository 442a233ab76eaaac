// Package daemon ties the pieces together for marketpiped: it enforces
// single-instance execution with a lock file, recovers items stranded in
// processing by an earlier crash, runs the workflow supervisor, and serves
// the HTTP gateway.
package daemon
