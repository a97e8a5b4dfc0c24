package domain

import (
	"regexp"
	"strings"
	"testing"
)

func TestParseCallbackView(t *testing.T) {
	for _, v := range KnownViews {
		got, ok := ParseCallbackView(string(v))
		if !ok || got != v {
			t.Errorf("ParseCallbackView(%q) = (%q, %v), want (%q, true)", v, got, ok, v)
		}
	}

	for _, bad := range []string{"", "task_5", "task_", "MENU", "menu "} {
		if _, ok := ParseCallbackView(bad); ok {
			t.Errorf("ParseCallbackView(%q) accepted unknown tag", bad)
		}
	}
}

func TestTaskNumber(t *testing.T) {
	want := map[CallbackView]int{ViewTask1: 1, ViewTask2: 2, ViewTask3: 3, ViewTask4: 4}
	for view, num := range want {
		if _, ok := ParseCallbackView(string(view)); !ok {
			t.Errorf("ParseCallbackView(%q) rejected a task view", view)
		}
		got, ok := TaskNumber(view)
		if !ok || got != num {
			t.Errorf("TaskNumber(%q) = (%d, %v), want (%d, true)", view, got, ok, num)
		}
	}
	if _, ok := TaskNumber(ViewMenu); ok {
		t.Error("TaskNumber accepted a non-task view")
	}
}

func TestCommandDefsCoverUserCommands(t *testing.T) {
	want := []string{"/start", "/help", "/menu", "/status", "/ping"}
	have := map[string]bool{}
	for _, c := range CommandDefs {
		have[c.Name] = true
		if strings.TrimSpace(c.Description) == "" {
			t.Errorf("command %s has no description", c.Name)
		}
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("CommandDefs missing %s", name)
		}
	}
}

func TestNewUUID(t *testing.T) {
	re := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewUUID()
		if !re.MatchString(id) {
			t.Fatalf("NewUUID() = %q, not a v4 UUID", id)
		}
		if seen[id] {
			t.Fatalf("NewUUID() repeated %q", id)
		}
		seen[id] = true
	}
}
