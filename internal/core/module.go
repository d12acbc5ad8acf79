// Package core provides the module system the webhook is assembled from.
package core

import "strings"

// ModuleID is a dotted identifier such as "gateway.http". The part before the
// last dot is the namespace.
type ModuleID string

// Namespace returns everything before the last dot, or "" for a bare ID.
func (id ModuleID) Namespace() string {
	s := string(id)
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[:i]
	}
	return ""
}

// Name returns the last dotted segment.
func (id ModuleID) Name() string {
	s := string(id)
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[i+1:]
	}
	return s
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID  ModuleID
	New func() Module
}

// Module is implemented by every module. Optional behavior is expressed
// through the interfaces in lifecycle.go.
type Module interface {
	ModuleInfo() ModuleInfo
}
