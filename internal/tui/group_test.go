package tui

import (
	"testing"

	"github.com/charmbracelet/bubbles/list"

	"github.com/firefly-engineering/hutch/internal/workspace"
)

func TestGroupKey(t *testing.T) {
	if got := groupKey(workspace.Summary{Origin: "/src/api/.hutch.yaml"}); got != "/src/api/.hutch.yaml" {
		t.Errorf("groupKey() = %q", got)
	}
	if got := groupKey(workspace.Summary{}); got != noOrigin {
		t.Errorf("groupKey() = %q, want %q", got, noOrigin)
	}
}

func TestBuildGroupedItems(t *testing.T) {
	if items := buildGroupedItems(nil); items != nil {
		t.Errorf("expected nil, got %d items", len(items))
	}

	items := buildGroupedItems([]workspace.Summary{
		{Name: "b", Origin: "/src/z/.hutch.yaml"},
		{Name: "a", Origin: "/src/z/.hutch.yaml"},
		{Name: "c"},
	})

	want := []string{"header:(defaults)", "c", "header:z/.hutch.yaml", "b", "a"}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d", len(items), len(want))
	}
	for i, item := range items {
		var got string
		switch it := item.(type) {
		case headerItem:
			got = "header:" + it.label
		case workspaceItem:
			got = it.summary.Name
		}
		if got != want[i] {
			t.Errorf("item %d = %q, want %q", i, got, want[i])
		}
	}
}

func TestSkipHeaders(t *testing.T) {
	items := []list.Item{
		headerItem{label: "g1"},
		workspaceItem{summary: workspace.Summary{Name: "a"}},
		headerItem{label: "g2"},
		workspaceItem{summary: workspace.Summary{Name: "b"}},
	}
	l := list.New(items, newGroupedDelegate(), 80, 20)

	skipHeaders(&l, 1)
	if l.Index() != 1 {
		t.Errorf("down from header: index = %d, want 1", l.Index())
	}

	l.Select(2)
	skipHeaders(&l, -1)
	if l.Index() != 1 {
		t.Errorf("up onto header: index = %d, want 1", l.Index())
	}

	l.Select(2)
	skipHeaders(&l, 1)
	if l.Index() != 3 {
		t.Errorf("down onto header: index = %d, want 3", l.Index())
	}
}

func TestShortenGroupKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/home/user/src/api/.hutch.yaml", "api/.hutch.yaml"},
		{".hutch.yaml", ".hutch.yaml"},
		{"git@github.com:acme/infra.git//envs/dev.yaml", "infra//envs/dev.yaml"},
		{noOrigin, noOrigin},
	}
	for _, tt := range tests {
		if got := shortenGroupKey(tt.in); got != tt.want {
			t.Errorf("shortenGroupKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
