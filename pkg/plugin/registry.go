package plugin

import (
	"fmt"
	"sort"
	"sync"

	"firestige.xyz/tzspd/internal/core"
)

type registry[F any] struct {
	mu        sync.RWMutex
	factories map[string]F
}

func newRegistry[F any]() *registry[F] {
	return &registry[F]{factories: make(map[string]F)}
}

func (r *registry[F]) register(name string, factory F, isNil bool) {
	if name == "" {
		panic("plugin: register with empty name")
	}
	if isNil {
		panic(fmt.Sprintf("plugin: register %q with nil factory", name))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		panic(fmt.Sprintf("plugin: %q registered twice", name))
	}
	r.factories[name] = factory
}

func (r *registry[F]) get(name string) (F, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

func (r *registry[F]) list() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset removes every registration. Tests only.
func (r *registry[F]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]F)
}

var actionReg = newRegistry[ActionFactory]()

// RegisterAction makes an action available to capture plans under name.
// It panics on an empty name, a nil factory or a duplicate name.
func RegisterAction(name string, factory ActionFactory) {
	actionReg.register(name, factory, factory == nil)
}

// GetActionFactory returns the factory registered under name.
func GetActionFactory(name string) (ActionFactory, error) {
	f, ok := actionReg.get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrActionNotFound, name)
	}
	return f, nil
}

// ListActions returns registered action names in sorted order.
func ListActions() []string {
	return actionReg.list()
}
