package cli

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/cowfs/pkg/replicas"
)

func Test_ParseKind_Accepts_Storable_Kinds_And_Rejects_Others(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    replicas.DataKind
		wantErr bool
	}{
		{in: "journal", want: replicas.KindJournal},
		{in: "btree", want: replicas.KindBtree},
		{in: "user", want: replicas.KindUser},
		{in: "cached", want: replicas.KindCached},
		{in: "sb", wantErr: true},
		{in: "bogus", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseKind(tt.in)

		if tt.wantErr {
			if err == nil {
				t.Errorf("parseKind(%q) succeeded, want error", tt.in)
			}

			continue
		}

		if err != nil {
			t.Errorf("parseKind(%q): %v", tt.in, err)
		} else if got != tt.want {
			t.Errorf("parseKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func Test_ParseDevList_Parses_Comma_Separated_Indices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    []uint8
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "0", want: []uint8{0}},
		{in: "0,2,5", want: []uint8{0, 2, 5}},
		{in: " 1 , 3 ", want: []uint8{1, 3}},
		{in: "256", wantErr: true},
		{in: "a", wantErr: true},
		{in: "1,,2", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseDevList(tt.in)

		if tt.wantErr {
			if err == nil {
				t.Errorf("parseDevList(%q) succeeded, want error", tt.in)
			}

			continue
		}

		if err != nil {
			t.Errorf("parseDevList(%q): %v", tt.in, err)
		} else if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("parseDevList(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func Test_SuperblockPath_Prefers_Argument_Over_Config(t *testing.T) {
	t.Parallel()

	path, rest, err := superblockPath(Config{Superblock: "from-config"}, []string{"from-arg", "x"})
	if err != nil {
		t.Fatalf("superblockPath: %v", err)
	}

	if path != "from-arg" {
		t.Errorf("path = %q, want from-arg", path)
	}

	if len(rest) != 1 || rest[0] != "x" {
		t.Errorf("rest = %v, want [x]", rest)
	}

	path, _, err = superblockPath(Config{Superblock: "from-config"}, nil)
	if err != nil || path != "from-config" {
		t.Errorf("config fallback: path=%q err=%v", path, err)
	}

	if _, _, err := superblockPath(Config{}, nil); err == nil {
		t.Error("expected error with no path anywhere")
	}
}
