// Package plugin defines the registration contract capability plugins
// implement. Plugin internals belong to each plugin; the core only cares
// about the routes and permission keys they declare.
package plugin

import "github.com/silk-runtime/silk/pkg/router"

// Registrar is the registration surface handed to plugins. *router.Router
// satisfies it.
type Registrar interface {
	Register(cmd string, h router.HandlerFunc)
	RegisterGuarded(cmd, permissionKey string, h router.HandlerFunc)
}

// Plugin contributes routes at startup.
type Plugin interface {
	Name() string
	Routes(reg Registrar)
}

// Install registers every plugin's routes. Must run before dispatching
// begins; the router does not support concurrent registration.
func Install(reg Registrar, plugins ...Plugin) {
	for _, p := range plugins {
		if p != nil {
			p.Routes(reg)
		}
	}
}
