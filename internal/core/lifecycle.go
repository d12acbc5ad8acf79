package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// LoadModule takes each module from Configure through Validate. Start runs
// only once every module has loaded, and shutdown stops modules in reverse
// start order. A module implements only the hooks it needs.

// Configurable receives the module's modules.<id> section from
// webhook.yaml before Provision. It is not called when the section is absent.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner fills defaults and registers services (the conversation
// store, the provider, metrics) that later modules look up.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator rejects an incomplete configuration after Provision and before
// anything starts. It must not mutate the module.
type Validator interface {
	Validate() error
}

// Starter launches listeners and background loops. Services registered
// during Provision are all available by the time Start runs.
type Starter interface {
	Start() error
}

// Stopper releases what Start acquired, honoring ctx as a shutdown deadline.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Reloader applies an edited webhook.yaml in place. ctx carries the freshly
// loaded module sections.
type Reloader interface {
	Reload(ctx *AppContext) error
}
