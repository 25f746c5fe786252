package task

import "testing"

func TestTypeTag(t *testing.T) {
	cases := []struct {
		name string
		task Task
		want string
	}{
		{"explicit tag wins", Task{Description: "build the api", Tags: []string{"Deploy"}}, "deploy"},
		{"first word of description", Task{Description: "Fix the login flow"}, "fix"},
		{"empty task", Task{}, ""},
	}
	for _, c := range cases {
		if got := c.task.TypeTag(); got != c.want {
			t.Errorf("%s: got %q, want %q", c.name, got, c.want)
		}
	}
}

func TestContainsAny(t *testing.T) {
	tk := Task{Description: "Investigate the OUTAGE in checkout", Tags: []string{"incident"}}
	if !tk.ContainsAny([]string{"outage"}) {
		t.Error("expected match on lowercased description keyword")
	}
	if !tk.ContainsAny([]string{"incident"}) {
		t.Error("expected match on tag keyword")
	}
	if tk.ContainsAny([]string{"breach", ""}) {
		t.Error("unexpected match; empty keywords must not match everything")
	}
}

func TestDetectPhase(t *testing.T) {
	cases := []struct {
		desc string
		want ProjectPhase
	}{
		{"plan the quarterly roadmap with stakeholders", PhaseStrategy},
		{"design the new wireframe layout", PhaseDesign},
		{"fix the database bug in the api", PhaseDevelopment},
		{"something entirely unrelated", PhaseUnknown},
		// One strategy hit vs two development hits: development wins.
		{"plan the database migration and fix the api", PhaseDevelopment},
	}
	for _, c := range cases {
		got := Task{Description: c.desc}.DetectPhase()
		if got != c.want {
			t.Errorf("%q: got %s, want %s", c.desc, got, c.want)
		}
	}
}

func TestDetectPhaseTieBreaksEarlier(t *testing.T) {
	// One strategy keyword and one design keyword: strategy is declared first.
	got := Task{Description: "plan the layout"}.DetectPhase()
	if got != PhaseStrategy {
		t.Errorf("got %s, want %s on tie", got, PhaseStrategy)
	}
}

func TestDerivePriority(t *testing.T) {
	urgent := DefaultUrgentKeywords
	high := DefaultHighPriorityTypes

	cases := []struct {
		name string
		task Task
		want Priority
	}{
		{"urgent keyword beats everything", Task{Description: "urgent: rotate keys", Priority: PriorityNormal}, PriorityUrgent},
		{"explicit priority respected", Task{Description: "update docs", Priority: PriorityHigh}, PriorityHigh},
		{"high priority type tag", Task{Description: "fix the typo"}, PriorityHigh},
		{"plain task is normal", Task{Description: "research new library"}, PriorityNormal},
	}
	for _, c := range cases {
		if got := DerivePriority(c.task, urgent, high); got != c.want {
			t.Errorf("%s: got %s, want %s", c.name, got, c.want)
		}
	}
}
