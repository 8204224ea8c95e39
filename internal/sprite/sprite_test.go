package sprite

import (
	"context"
	"testing"
	"testing/fstest"
)

func TestFSLocator(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fsys := fstest.MapFS{
		"Alice/joy.png":      {Data: []byte("img")},
		"Alice/neutral.webp": {Data: []byte("img")},
		"Bob/neutral.png":    {Data: []byte("img")},
		"Carol":              {Data: []byte("not a dir but a file")},
	}

	t.Run("finds a sprite by expression", func(t *testing.T) {
		t.Parallel()
		l := NewLocatorFS(fsys)
		ref, ok, err := l.Locate(ctx, "Alice", "joy")
		if err != nil {
			t.Fatalf("Locate: %v", err)
		}
		if !ok || ref != "Alice/joy.png" {
			t.Fatalf("want Alice/joy.png, got %q ok=%v", ref, ok)
		}
	})

	t.Run("probes extensions in order", func(t *testing.T) {
		t.Parallel()
		l := NewLocatorFS(fsys, WithExtensions([]string{"webp", "png"}))
		ref, ok, _ := l.Locate(ctx, "Alice", "neutral")
		if !ok || ref != "Alice/neutral.webp" {
			t.Fatalf("want webp to win, got %q ok=%v", ref, ok)
		}
	})

	t.Run("missing sprite is absence, not error", func(t *testing.T) {
		t.Parallel()
		l := NewLocatorFS(fsys)
		ref, ok, err := l.Locate(ctx, "Alice", "anger")
		if err != nil {
			t.Fatalf("absence must not error: %v", err)
		}
		if ok || ref != "" {
			t.Fatalf("want miss, got %q ok=%v", ref, ok)
		}
	})

	t.Run("missing character is absence", func(t *testing.T) {
		t.Parallel()
		l := NewLocatorFS(fsys)
		if _, ok, err := l.Locate(ctx, "Ghost", "neutral"); ok || err != nil {
			t.Fatalf("want miss without error, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("empty name or expression is absence", func(t *testing.T) {
		t.Parallel()
		l := NewLocatorFS(fsys)
		if _, ok, err := l.Locate(ctx, "", "joy"); ok || err != nil {
			t.Fatalf("want miss, got ok=%v err=%v", ok, err)
		}
		if _, ok, err := l.Locate(ctx, "Alice", ""); ok || err != nil {
			t.Fatalf("want miss, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("base url maps and escapes the reference", func(t *testing.T) {
		t.Parallel()
		spaced := fstest.MapFS{"Lady Ann/joy.png": {Data: []byte("img")}}
		l := NewLocatorFS(spaced, WithBaseURL("https://cdn.example/sprites/"))
		ref, ok, err := l.Locate(ctx, "Lady Ann", "joy")
		if err != nil || !ok {
			t.Fatalf("Locate: ok=%v err=%v", ok, err)
		}
		want := "https://cdn.example/sprites/Lady%20Ann/joy.png"
		if ref != want {
			t.Fatalf("want %q, got %q", want, ref)
		}
	})

	t.Run("dotted extension config is tolerated", func(t *testing.T) {
		t.Parallel()
		l := NewLocatorFS(fsys, WithExtensions([]string{".png"}))
		if _, ok, _ := l.Locate(ctx, "Bob", "neutral"); !ok {
			t.Fatal("want hit with dotted extension config")
		}
	})
}
