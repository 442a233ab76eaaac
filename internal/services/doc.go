// Package services defines the shared error taxonomy for stage processors
// and external provider clients. Markers distinguish failures the engine
// should retry from those that are terminal for an item.
package services
