package permission

// Action names.
const (
	ActionView    = "view"
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionApprove = "approve"
)

// Role names as sent by the API.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

var crud = []string{ActionView, ActionCreate, ActionUpdate, ActionDelete}

// DefaultRules is the housing-management permission table.
func DefaultRules() map[string]map[string]Rule {
	return map[string]map[string]Rule{
		RoleAdmin: {
			"properties":  {Actions: crud, Scope: ScopeAll},
			"buildings":   {Actions: crud, Scope: ScopeAll},
			"units":       {Actions: crud, Scope: ScopeAll},
			"leases":      {Actions: append(append([]string{}, crud...), ActionApprove), Scope: ScopeAll},
			"tenants":     {Actions: crud, Scope: ScopeAll},
			"payments":    {Actions: crud, Scope: ScopeAll},
			"invoices":    {Actions: crud, Scope: ScopeAll},
			"maintenance": {Actions: crud, Scope: ScopeAll},
			"reports":     {Actions: []string{ActionView, ActionCreate}, Scope: ScopeAll},
		},
		RoleUser: {
			"properties":  {Actions: []string{ActionView}, Scope: ScopeAll},
			"units":       {Actions: []string{ActionView}, Scope: ScopeAll},
			"leases":      {Actions: []string{ActionView, ActionCreate}, Scope: ScopeOwn},
			"invoices":    {Actions: []string{ActionView}, Scope: ScopeOwn},
			"payments":    {Actions: []string{ActionView, ActionCreate}, Scope: ScopeOwn},
			"maintenance": {Actions: []string{ActionView, ActionCreate}, Scope: ScopeOwn},
		},
	}
}

// NewDefaultRoleManager builds and freezes the table from [DefaultRules].
func NewDefaultRoleManager() (*RoleManager, error) {
	reg, err := NewRegistry(ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionApprove)
	if err != nil {
		return nil, err
	}
	reg.Freeze()

	rm := NewRoleManager(reg)
	for role, rules := range DefaultRules() {
		if err := rm.RegisterRole(role, rules); err != nil {
			return nil, err
		}
	}
	rm.Freeze()
	return rm, nil
}
