// Package core provides the module system foundation for starpal:
// a registry of compiled-in modules, a shared application context with a
// service registry for cross-module discovery, and lifecycle management.
package core

// ModuleID uniquely identifies a module (e.g., "gateway.http").
type ModuleID string

// Module is the minimal interface every module implements. Optional
// lifecycle behavior is expressed through the interfaces in lifecycle.go.
type Module interface {
	ModuleInfo() ModuleInfo
}

// ModuleInfo describes a module to the registry.
type ModuleInfo struct {
	// ID is the unique module identifier.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}
