package agentbridge

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestMergeEnv(t *testing.T) {
	tests := []struct {
		name    string
		base    []string
		overlay map[string]string
		want    []string
	}{
		{
			name: "nil overlay keeps base",
			base: []string{"A=1", "B=2"},
			want: []string{"A=1", "B=2"},
		},
		{
			name:    "override in place",
			base:    []string{"A=1", "B=2", "C=3"},
			overlay: map[string]string{"B": "x"},
			want:    []string{"A=1", "B=x", "C=3"},
		},
		{
			name:    "new keys appended sorted",
			base:    []string{"A=1"},
			overlay: map[string]string{"Z": "z", "M": "m"},
			want:    []string{"A=1", "M=m", "Z=z"},
		},
		{
			name:    "duplicate base keys collapse",
			base:    []string{"A=1", "A=2"},
			overlay: map[string]string{"A": "3"},
			want:    []string{"A=3"},
		},
		{
			name:    "entries without equals kept",
			base:    []string{"weird", "A=1"},
			overlay: map[string]string{"weird": "no"},
			want:    []string{"weird", "A=1", "weird=no"},
		},
		{
			name:    "empty value",
			base:    nil,
			overlay: map[string]string{"E": ""},
			want:    []string{"E="},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeEnv(tt.base, tt.overlay)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("MergeEnv mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseEnvAssignments(t *testing.T) {
	env, invalid := ParseEnvAssignments([]string{"A=1", "B=", "C=x=y", "noequals", "=v", "A=2"})

	wantEnv := map[string]string{"A": "2", "B": "", "C": "x=y"}
	if diff := cmp.Diff(wantEnv, env); diff != "" {
		t.Errorf("env mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"noequals", "=v"}, invalid, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("invalid mismatch (-want +got):\n%s", diff)
	}
}
