package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Action is the verb half of a permission.
type Action string

const (
	ActionView    Action = "View"
	ActionCreate  Action = "Create"
	ActionEdit    Action = "Edit"
	ActionDelete  Action = "Delete"
	ActionExecute Action = "Execute"
	ActionManage  Action = "Manage"
)

var actions = []Action{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionExecute, ActionManage}

// Actions returns every action kind in catalog order.
func Actions() []Action {
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// Valid reports whether a is one of the known action kinds.
func (a Action) Valid() bool {
	for _, known := range actions {
		if a == known {
			return true
		}
	}
	return false
}

// ParseAction resolves an action name case-insensitively.
func ParseAction(s string) (Action, error) {
	s = strings.TrimSpace(s)
	for _, known := range actions {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrValidation, s)
}

// Resource is the scope half of a permission, e.g. "Users" or "Financials".
type Resource string

const (
	ResourceUsers         Resource = "Users"
	ResourceRoles         Resource = "Roles"
	ResourcePermissions   Resource = "Permissions"
	ResourceSubscriptions Resource = "Subscriptions"
	ResourceCourses       Resource = "Courses"
	ResourceContent       Resource = "Content"
	ResourceFinancials    Resource = "Financials"
	ResourceReports       Resource = "Reports"
	ResourceSettings      Resource = "Settings"
	ResourceMenu          Resource = "Menu"
)

var catalogResources = []Resource{
	ResourceUsers,
	ResourceRoles,
	ResourcePermissions,
	ResourceSubscriptions,
	ResourceCourses,
	ResourceContent,
	ResourceFinancials,
	ResourceReports,
	ResourceSettings,
	ResourceMenu,
}

// PermissionKey identifies a capability independently of its storage id.
type PermissionKey struct {
	Action   Action
	Resource Resource
}

// Key is shorthand for building a PermissionKey.
func Key(action Action, resource Resource) PermissionKey {
	return PermissionKey{Action: action, Resource: resource}
}

// String renders the canonical "Action:Resource" tag.
func (k PermissionKey) String() string {
	return string(k.Action) + ":" + string(k.Resource)
}

// Valid reports whether the key has a known action and a non-empty resource.
func (k PermissionKey) Valid() bool {
	return k.Action.Valid() && strings.TrimSpace(string(k.Resource)) != ""
}

// ParsePermissionKey parses an "Action:Resource" tag.
func ParsePermissionKey(tag string) (PermissionKey, error) {
	action, resource, ok := strings.Cut(strings.TrimSpace(tag), ":")
	if !ok {
		return PermissionKey{}, fmt.Errorf("%w: permission tag %q must be Action:Resource", ErrValidation, tag)
	}
	a, err := ParseAction(action)
	if err != nil {
		return PermissionKey{}, err
	}
	resource = strings.TrimSpace(resource)
	if resource == "" {
		return PermissionKey{}, fmt.Errorf("%w: permission tag %q has no resource", ErrValidation, tag)
	}
	return PermissionKey{Action: a, Resource: Resource(resource)}, nil
}

// MarshalText lets keys travel as tags in JSON and BSON payloads.
func (k PermissionKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the canonical tag.
func (k *PermissionKey) UnmarshalText(b []byte) error {
	parsed, err := ParsePermissionKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Permission is an atomic, resource-scoped capability. Immutable once created.
type Permission struct {
	ID          string    `json:"id"`
	Action      Action    `json:"action"`
	Resource    Resource  `json:"resource"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Key returns the permission's capability key.
func (p Permission) Key() PermissionKey {
	return PermissionKey{Action: p.Action, Resource: p.Resource}
}

// DefaultCatalog lists every action for every built-in resource.
func DefaultCatalog() []PermissionKey {
	keys := make([]PermissionKey, 0, len(catalogResources)*len(actions))
	for _, r := range catalogResources {
		for _, a := range actions {
			keys = append(keys, PermissionKey{Action: a, Resource: r})
		}
	}
	return keys
}

// PermissionSet is the effective grant set of a subject. Entries are keyed by
// permission id so a permission reached through several roles appears once.
type PermissionSet struct {
	byID  map[string]Permission
	byKey map[PermissionKey]string
}

// NewPermissionSet builds a set from perms, collapsing duplicates.
func NewPermissionSet(perms ...Permission) PermissionSet {
	s := PermissionSet{
		byID:  make(map[string]Permission, len(perms)),
		byKey: make(map[PermissionKey]string, len(perms)),
	}
	for _, p := range perms {
		s.Add(p)
	}
	return s
}

// Add inserts p. Adding an id twice is a no-op.
func (s *PermissionSet) Add(p Permission) {
	if s.byID == nil {
		s.byID = make(map[string]Permission)
		s.byKey = make(map[PermissionKey]string)
	}
	if _, ok := s.byID[p.ID]; ok {
		return
	}
	s.byID[p.ID] = p
	s.byKey[p.Key()] = p.ID
}

// Union adds every permission of other into s.
func (s *PermissionSet) Union(other PermissionSet) {
	for _, p := range other.byID {
		s.Add(p)
	}
}

// Len returns the number of distinct permissions.
func (s PermissionSet) Len() int { return len(s.byID) }

// Contains reports whether the permission id is in the set.
func (s PermissionSet) Contains(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Has reports whether a permission with the given key is held.
func (s PermissionSet) Has(key PermissionKey) bool {
	_, ok := s.byKey[key]
	return ok
}

// HasAny reports whether at least one key is held. An empty list is false.
func (s PermissionSet) HasAny(keys ...PermissionKey) bool {
	for _, k := range keys {
		if s.Has(k) {
			return true
		}
	}
	return false
}

// HasAll reports whether every key is held. An empty list is true.
func (s PermissionSet) HasAll(keys ...PermissionKey) bool {
	for _, k := range keys {
		if !s.Has(k) {
			return false
		}
	}
	return true
}

// Permissions returns the members ordered by tag.
func (s PermissionSet) Permissions() []Permission {
	out := make([]Permission, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().String() < out[j].Key().String()
	})
	return out
}

// Keys returns the held keys ordered by tag.
func (s PermissionSet) Keys() []PermissionKey {
	perms := s.Permissions()
	keys := make([]PermissionKey, len(perms))
	for i, p := range perms {
		keys[i] = p.Key()
	}
	return keys
}

// IDs returns the held permission ids, sorted.
func (s PermissionSet) IDs() []string {
	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
