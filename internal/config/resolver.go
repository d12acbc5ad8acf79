package config

import (
	"cmp"
	"slices"

	"github.com/danielfernandez00/mi-webhook/internal/core"
)

// namespaceRank orders modules so that storage and providers start before
// the components that use them, and the HTTP gateway starts last (and
// therefore stops first).
var namespaceRank = map[string]int{
	"memory":      0,
	"provider":    1,
	"fulfillment": 2,
	"gateway":     3,
}

// Resolve returns the module IDs from the configuration in load order:
// by namespace rank, then by ID. Unranked namespaces sort after gateway.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(rank(a), rank(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return ids
}

func rank(id string) int {
	if r, ok := namespaceRank[core.ModuleID(id).Namespace()]; ok {
		return r
	}
	return len(namespaceRank)
}
