package permission

import (
	"errors"
	"sync"
)

// Scope restricts an allowed action to every record or to the caller's own.
type Scope string

const (
	ScopeAll Scope = "all"
	ScopeOwn Scope = "own"
)

// Rule is the uncompiled form of a role's grant on one resource.
type Rule struct {
	Actions []string
	Scope   Scope
}

// Grant is a compiled [Rule].
type Grant struct {
	Mask  Mask64
	Scope Scope
}

// RoleManager defines a public type used by goHMS APIs.
//
// RoleManager instances are populated during initialization and then frozen; lookups are
// safe for concurrent use.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]map[string]Grant
	frozen bool
}

// NewRoleManager creates an empty table over the actions in registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]map[string]Grant),
	}
}

/*
====================================
REGISTER ROLE
====================================
*/

// RegisterRole compiles rules for roleName. Every action must already be registered
// and every scope must be [ScopeAll] or [ScopeOwn].
func (rm *RoleManager) RegisterRole(roleName string, rules map[string]Rule) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	if roleName == "" {
		return errors.New("role name empty")
	}
	if _, exists := rm.roles[roleName]; exists {
		return errors.New("role already registered")
	}

	grants := make(map[string]Grant, len(rules))
	for resource, rule := range rules {
		if resource == "" {
			return errors.New("resource name empty")
		}
		if rule.Scope != ScopeAll && rule.Scope != ScopeOwn {
			return errors.New("invalid scope for resource " + resource)
		}

		var mask Mask64
		for _, action := range rule.Actions {
			bit, ok := rm.registry.Bit(action)
			if !ok {
				return errors.New("action not registered: " + action)
			}
			mask.Set(bit)
		}
		grants[resource] = Grant{Mask: mask, Scope: rule.Scope}
	}

	rm.roles[roleName] = grants
	return nil
}

/*
====================================
LOOKUPS
====================================
*/

// Grant returns the compiled grant for (role, resource). A missing entry reports false.
func (rm *RoleManager) Grant(roleName, resource string) (Grant, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	grants, ok := rm.roles[roleName]
	if !ok {
		return Grant{}, false
	}
	g, ok := grants[resource]
	return g, ok
}

// Allowed reports whether roleName may perform action on resource at any scope.
func (rm *RoleManager) Allowed(roleName, resource, action string) bool {
	if rm == nil {
		return false
	}
	bit, ok := rm.registry.Bit(action)
	if !ok {
		return false
	}
	g, ok := rm.Grant(roleName, resource)
	if !ok {
		return false
	}
	return g.Mask.Has(bit)
}

// ScopeOf returns the scope of roleName's grant on resource.
func (rm *RoleManager) ScopeOf(roleName, resource string) (Scope, bool) {
	if rm == nil {
		return "", false
	}
	g, ok := rm.Grant(roleName, resource)
	if !ok {
		return "", false
	}
	return g.Scope, true
}

// CanAccess applies the ownership check on top of [RoleManager.Allowed]: with
// [ScopeOwn] the record owner must be userID.
func (rm *RoleManager) CanAccess(roleName, resource, action, userID, ownerID string) bool {
	if !rm.Allowed(roleName, resource, action) {
		return false
	}
	scope, _ := rm.ScopeOf(roleName, resource)
	if scope == ScopeAll {
		return true
	}
	return userID != "" && ownerID == userID
}

// HasResource reports whether roleName has any grant on resource.
func (rm *RoleManager) HasResource(roleName, resource string) bool {
	if rm == nil {
		return false
	}
	_, ok := rm.Grant(roleName, resource)
	return ok
}

// Actions lists the action names granted to roleName on resource.
func (rm *RoleManager) Actions(roleName, resource string) []string {
	g, ok := rm.Grant(roleName, resource)
	if !ok {
		return nil
	}
	return rm.registry.Names(g.Mask)
}

// Freeze prevents further role registration.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// Count returns the number of registered roles.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}
