// Package blob stores large stage outputs (search result sets, AI response
// texts) out-of-line in a Pebble database. Work item payloads carry only the
// returned keys, keeping the item tables small.
package blob
