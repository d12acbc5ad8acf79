package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// The registry is keyed by module ID. An ID doubles as the module's key
// under "modules:" in webhook.yaml, and its namespace is what the required
// namespace check (gateway, provider, fulfillment) matches on.
var (
	registry   = make(map[ModuleID]ModuleInfo)
	registryMu sync.RWMutex
)

// RegisterModule adds a module to the registry. Modules call it from init.
// It panics when the ID cannot be used as a modules.<id> config key, when
// the ID is already taken, or when New is nil.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	switch {
	case info.ID == "":
		panic(fmt.Sprintf("core: %T registered with an empty module ID", instance))
	case info.ID.Namespace() == "" || info.ID.Name() == "":
		panic(fmt.Sprintf("core: module ID %q must look like <namespace>.<name> to be configured as modules.%s", info.ID, info.ID))
	case info.New == nil:
		panic(fmt.Sprintf("core: module %q has no constructor; modules.%s could never be loaded", info.ID, info.ID))
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if prev, exists := registry[info.ID]; exists {
		panic(fmt.Sprintf("core: config key modules.%s is claimed twice (%T and %T)", info.ID, prev.New(), instance))
	}
	registry[info.ID] = info
}

// GetModule returns the ModuleInfo registered under id.
func GetModule(id string) (ModuleInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := registry[ModuleID(id)]
	return info, ok
}

// GetModules returns every registered module, sorted by ID.
func GetModules() []ModuleInfo {
	return collect(func(ModuleID) bool { return true })
}

// GetModulesByNamespace returns the modules in namespace, sorted by ID.
// Nested namespaces do not match: "provider" excludes "provider.test.x".
func GetModulesByNamespace(namespace string) []ModuleInfo {
	return collect(func(id ModuleID) bool { return id.Namespace() == namespace })
}

func collect(keep func(ModuleID) bool) []ModuleInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var out []ModuleInfo
	for id, info := range registry {
		if keep(id) {
			out = append(out, info)
		}
	}
	slices.SortFunc(out, func(a, b ModuleInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// resetRegistry clears the registry. Tests only.
func resetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[ModuleID]ModuleInfo)
}
