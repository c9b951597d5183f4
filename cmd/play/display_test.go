package main

import (
	"bytes"
	"strings"
	"testing"

	"golang.org/x/exp/rand"

	"snakedqn/internal/env"
)

func TestDisplayRendersWorld(t *testing.T) {
	w, err := env.NewWorld(env.Board{MaxWidth: 8, MaxHeight: 8, Width: 6, Height: 6}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	w.Reset()

	var buf bytes.Buffer
	NewDisplay(&buf, false).Render(w, env.ActionUp)
	out := buf.String()

	if got := strings.Count(out, "│\n"); got != 8 {
		t.Fatalf("expected 8 grid rows, got %d:\n%s", got, out)
	}
	if !strings.Contains(out, "●") {
		t.Fatalf("food missing:\n%s", out)
	}
	if strings.Count(out, "█") != env.StartLength-1 {
		t.Fatalf("expected %d body cells:\n%s", env.StartLength-1, out)
	}
	if !strings.Contains(out, "Action: UP") {
		t.Fatalf("action missing:\n%s", out)
	}
}
