// Package api exposes the request-level operations the HTTP gateway and
// the CLI build on: submit a research request, roll up its status, fetch
// its results, list its items, and cancel it. It sits between the transport
// layer and the workflow engine so neither touches the other directly.
package api
