package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danielfernandez00/mi-webhook/internal/core"
)

var (
	validLevels  = []string{"", "debug", "info", "warn", "error"}
	validFormats = []string{"", "text", "json"}
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present,
// checks that all referenced module IDs exist in the registry,
// and validates the logging section.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	if !contains(validLevels, strings.ToLower(cfg.Logging.Level)) {
		errs = append(errs, fmt.Errorf("config: logging.level %q is not one of debug, info, warn, error", cfg.Logging.Level))
	}
	if !contains(validFormats, strings.ToLower(cfg.Logging.Format)) {
		errs = append(errs, fmt.Errorf("config: logging.format %q is not one of text, json", cfg.Logging.Format))
	}

	return errors.Join(errs...)
}

// RequireNamespaces reports every namespace that has no configured module,
// naming the compiled-in modules that could fill it.
func RequireNamespaces(cfg *Config, namespaces ...string) error {
	var errs []error
	for _, ns := range namespaces {
		found := false
		for id := range cfg.Modules {
			if core.ModuleID(id).Namespace() == ns {
				found = true
				break
			}
		}
		if found {
			continue
		}
		var candidates []string
		for _, info := range core.GetModulesByNamespace(ns) {
			candidates = append(candidates, "modules."+string(info.ID))
		}
		if len(candidates) == 0 {
			errs = append(errs, fmt.Errorf("config: no %s module configured", ns))
			continue
		}
		errs = append(errs, fmt.Errorf("config: no %s module configured (add one of %s)", ns, strings.Join(candidates, ", ")))
	}
	return errors.Join(errs...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
