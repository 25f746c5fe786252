// Package registry holds the immutable table of worker profiles consulted
// by the router and the workflow orchestrator. Profiles are loaded once at
// startup; referencing a worker name that is not in the registry is a
// configuration error, never a retryable runtime condition.
package registry

import "fmt"

// WorkerProfile describes one specialist worker.
type WorkerProfile struct {
	Name              string   `json:"name"`
	PrimaryCommands   []string `json:"primary_commands,omitempty"`
	SecondaryCommands []string `json:"secondary_commands,omitempty"`
	Capabilities      []string `json:"capabilities,omitempty"`
	CoreActivities    []string `json:"core_activities,omitempty"`
	QualityFocus      []string `json:"quality_focus,omitempty"`
	HandoffTargets    []string `json:"handoff_targets,omitempty"`
}

// HasPrimary reports whether cmd is one of the profile's primary commands.
func (p WorkerProfile) HasPrimary(cmd string) bool { return contains(p.PrimaryCommands, cmd) }

// HasSecondary reports whether cmd is one of the profile's secondary commands.
func (p WorkerProfile) HasSecondary(cmd string) bool { return contains(p.SecondaryCommands, cmd) }

// HandsOffTo reports whether the profile customarily hands off to name.
func (p WorkerProfile) HandsOffTo(name string) bool { return contains(p.HandoffTargets, name) }

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// ConfigError is a fatal configuration problem, such as a reference to an
// unknown worker name. The process should not start with one of these.
type ConfigError struct {
	Field  string
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Field, e.Detail)
}

// Registry is the immutable worker profile table. Declaration order is
// preserved and used as the deterministic tie-break during scoring.
type Registry struct {
	profiles []WorkerProfile
	index    map[string]int
	fallback string
}

// New validates the profile set and builds a registry. The fallback worker
// receives tasks that no profile scores on and must itself be registered.
func New(profiles []WorkerProfile, fallback string) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, &ConfigError{Field: "workers", Detail: "at least one worker profile is required"}
	}

	index := make(map[string]int, len(profiles))
	for i, p := range profiles {
		if p.Name == "" {
			return nil, &ConfigError{Field: "workers", Detail: fmt.Sprintf("profile %d has no name", i)}
		}
		if _, dup := index[p.Name]; dup {
			return nil, &ConfigError{Field: "workers", Detail: fmt.Sprintf("duplicate worker name %q", p.Name)}
		}
		index[p.Name] = i
	}

	for _, p := range profiles {
		for _, target := range p.HandoffTargets {
			if _, ok := index[target]; !ok {
				return nil, &ConfigError{
					Field:  "workers",
					Detail: fmt.Sprintf("worker %q hands off to unknown worker %q", p.Name, target),
				}
			}
		}
	}

	if _, ok := index[fallback]; !ok {
		return nil, &ConfigError{Field: "fallback_worker", Detail: fmt.Sprintf("unknown worker %q", fallback)}
	}

	cp := make([]WorkerProfile, len(profiles))
	copy(cp, profiles)
	return &Registry{profiles: cp, index: index, fallback: fallback}, nil
}

// Get returns the profile for name.
func (r *Registry) Get(name string) (WorkerProfile, bool) {
	i, ok := r.index[name]
	if !ok {
		return WorkerProfile{}, false
	}
	return r.profiles[i], true
}

// Has reports whether name is a registered worker.
func (r *Registry) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// All returns the profiles in declaration order.
func (r *Registry) All() []WorkerProfile {
	cp := make([]WorkerProfile, len(r.profiles))
	copy(cp, r.profiles)
	return cp
}

// Fallback returns the designated default worker profile.
func (r *Registry) Fallback() WorkerProfile {
	return r.profiles[r.index[r.fallback]]
}
