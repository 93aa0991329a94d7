// Package keyringtest provides a conformance test suite that every
// keyring.Keyring implementation must pass.
package keyringtest

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/proxy-kit/relay-client-go/keyring"
)

// Factory creates a fresh, empty Keyring instance for testing.
type Factory func(t *testing.T) keyring.Keyring

// RunKeyringTests runs the complete Keyring test suite against the provided factory.
func RunKeyringTests(t *testing.T, factory Factory) {
	t.Run("SaveAndLoadRoundTrip", func(t *testing.T) { testSaveAndLoadRoundTrip(t, factory) })
	t.Run("LoadMissingReturnsItemNotFound", func(t *testing.T) { testLoadMissing(t, factory) })
	t.Run("SaveOverwrites", func(t *testing.T) { testSaveOverwrites(t, factory) })
	t.Run("DeleteRemovesValue", func(t *testing.T) { testDeleteRemovesValue(t, factory) })
	t.Run("DeleteMissingReturnsItemNotFound", func(t *testing.T) { testDeleteMissing(t, factory) })
	t.Run("ExistsReflectsState", func(t *testing.T) { testExistsReflectsState(t, factory) })
	t.Run("KeysAreIsolated", func(t *testing.T) { testKeysAreIsolated(t, factory) })
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func testSaveAndLoadRoundTrip(t *testing.T, factory Factory) {
	k := factory(t)
	ctx := testCtx(t)

	want := []byte(`{"token":"sess-1"}`)
	if err := k.Save(ctx, "k1", want); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := k.Load(ctx, "k1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %q want %q", got, want)
	}
}

func testLoadMissing(t *testing.T, factory Factory) {
	k := factory(t)
	ctx := testCtx(t)

	if _, err := k.Load(ctx, "nope"); !errors.Is(err, keyring.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func testSaveOverwrites(t *testing.T, factory Factory) {
	k := factory(t)
	ctx := testCtx(t)

	if err := k.Save(ctx, "k1", []byte("old")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := k.Save(ctx, "k1", []byte("new")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	got, err := k.Load(ctx, "k1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if string(got) != "new" {
		t.Fatalf("expected overwritten value, got %q", got)
	}
}

func testDeleteRemovesValue(t *testing.T, factory Factory) {
	k := factory(t)
	ctx := testCtx(t)

	if err := k.Save(ctx, "k1", []byte("v")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := k.Delete(ctx, "k1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := k.Load(ctx, "k1"); !errors.Is(err, keyring.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound after delete, got %v", err)
	}
}

func testDeleteMissing(t *testing.T, factory Factory) {
	k := factory(t)
	ctx := testCtx(t)

	if err := k.Delete(ctx, "nope"); !errors.Is(err, keyring.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func testExistsReflectsState(t *testing.T, factory Factory) {
	k := factory(t)
	ctx := testCtx(t)

	ok, err := k.Exists(ctx, "k1")
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if ok {
		t.Fatalf("expected key to be absent")
	}
	if err := k.Save(ctx, "k1", []byte("v")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	ok, err = k.Exists(ctx, "k1")
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected key to be present")
	}
	if err := k.Delete(ctx, "k1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	ok, err = k.Exists(ctx, "k1")
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if ok {
		t.Fatalf("expected key to be absent after delete")
	}
}

func testKeysAreIsolated(t *testing.T, factory Factory) {
	k := factory(t)
	ctx := testCtx(t)

	if err := k.Save(ctx, "a", []byte("va")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := k.Save(ctx, "b", []byte("vb")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := k.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	got, err := k.Load(ctx, "b")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if string(got) != "vb" {
		t.Fatalf("unrelated key affected: got %q", got)
	}
}
