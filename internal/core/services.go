package core

import "sync"

// serviceRegistry is shared by every AppContext derived from the same root,
// so a service registered by one module is visible to the others.
type serviceRegistry struct {
	mu       sync.RWMutex
	services map[string]any
}

func newServiceRegistry() *serviceRegistry {
	return &serviceRegistry{services: make(map[string]any)}
}

// RegisterService publishes a value under name. A later registration with
// the same name replaces the earlier one.
func (ctx *AppContext) RegisterService(name string, svc any) {
	ctx.services.mu.Lock()
	defer ctx.services.mu.Unlock()
	ctx.services.services[name] = svc
}

// Service returns the value registered under name.
func (ctx *AppContext) Service(name string) (any, bool) {
	ctx.services.mu.RLock()
	defer ctx.services.mu.RUnlock()
	svc, ok := ctx.services.services[name]
	return svc, ok
}

// LookupService returns the service registered under name if it has type T.
func LookupService[T any](ctx *AppContext, name string) (T, bool) {
	var zero T
	svc, ok := ctx.Service(name)
	if !ok {
		return zero, false
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
