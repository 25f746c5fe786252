package registry

import (
	"errors"
	"testing"
)

func TestNewValidates(t *testing.T) {
	cases := []struct {
		name     string
		profiles []WorkerProfile
		fallback string
	}{
		{"empty roster", nil, "generalist"},
		{"nameless profile", []WorkerProfile{{Name: ""}}, ""},
		{"duplicate names", []WorkerProfile{{Name: "a"}, {Name: "a"}}, "a"},
		{"unknown handoff target", []WorkerProfile{{Name: "a", HandoffTargets: []string{"ghost"}}}, "a"},
		{"unknown fallback", []WorkerProfile{{Name: "a"}}, "ghost"},
	}
	for _, c := range cases {
		_, err := New(c.profiles, c.fallback)
		if err == nil {
			t.Errorf("%s: expected error", c.name)
			continue
		}
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Errorf("%s: got %T, want *ConfigError", c.name, err)
		}
	}
}

func TestRegistryLookup(t *testing.T) {
	reg, err := New(DefaultProfiles(), DefaultFallbackWorker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, ok := reg.Get("backend")
	if !ok {
		t.Fatal("backend not found")
	}
	if !p.HasPrimary("fix") {
		t.Error("backend should have primary command fix")
	}
	if p.HasPrimary("design") {
		t.Error("backend should not have primary command design")
	}
	if !p.HandsOffTo("quality") {
		t.Error("backend should hand off to quality")
	}

	if _, ok := reg.Get("ghost"); ok {
		t.Error("ghost should not resolve")
	}
	if reg.Fallback().Name != DefaultFallbackWorker {
		t.Errorf("got fallback %q, want %q", reg.Fallback().Name, DefaultFallbackWorker)
	}
}

func TestAllPreservesDeclarationOrder(t *testing.T) {
	reg, err := New([]WorkerProfile{{Name: "z"}, {Name: "a"}, {Name: "m"}}, "z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"z", "a", "m"}
	for i, p := range reg.All() {
		if p.Name != want[i] {
			t.Errorf("slot %d: got %q, want %q", i, p.Name, want[i])
		}
	}
}

func TestDefaultOverridesTargetKnownWorkers(t *testing.T) {
	reg, err := New(DefaultProfiles(), DefaultFallbackWorker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for tag, worker := range DefaultOverrides() {
		if !reg.Has(worker) {
			t.Errorf("override %q maps to unknown worker %q", tag, worker)
		}
	}
}
