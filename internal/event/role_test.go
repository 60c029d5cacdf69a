package event

import "testing"

func TestInferRoleFromHistory(t *testing.T) {
	cases := []struct {
		name    string
		history []string
		want    Role
	}{
		{"empty", nil, RoleGeneral},
		{"single write is a worker", []string{"Write"}, RoleWorker},
		{"mutation then two reads is a reviewer", []string{"Edit", "Read", "Grep"}, RoleReviewer},
		{"mutation last is still a worker", []string{"Read", "Grep", "Edit"}, RoleWorker},
		{"mostly reads is a planner", []string{"Read", "Grep", "Glob", "WebSearch"}, RolePlanner},
		{"too few samples stays general", []string{"Read", "Grep"}, RoleGeneral},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := InferRoleFromHistory(tc.history); got != tc.want {
				t.Fatalf("InferRoleFromHistory(%v) = %v, want %v", tc.history, got, tc.want)
			}
		})
	}
}

func TestInferRoleFromDescription(t *testing.T) {
	cases := []struct {
		desc string
		want Role
	}{
		{"Fix the failing test and implement the missing handler", RoleWorker},
		{"Review and verify the results for correctness", RoleReviewer},
		{"Explore the codebase and research prior art", RolePlanner},
		{"Say hello", RoleGeneral},
	}
	for _, tc := range cases {
		if got := InferRoleFromDescription(tc.desc); got != tc.want {
			t.Fatalf("InferRoleFromDescription(%q) = %v, want %v", tc.desc, got, tc.want)
		}
	}
}
