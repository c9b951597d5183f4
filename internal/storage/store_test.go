package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"snakedqn/internal/nn"
)

func sampleParams() nn.Params {
	return nn.Params{
		Sizes: []int{3, 2, 1},
		Layers: []nn.LayerParams{
			{Weights: []float64{0.1, -0.2, 0.3, -0.4, 0.5, -0.6}, Bias: []float64{0.01, -0.02}},
			{Weights: []float64{1.5, -2.5}, Bias: []float64{0.25}},
		},
	}
}

func TestStoresRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cases := []struct {
		kind string
		path string
	}{
		{kind: "memory"},
		{kind: "file", path: filepath.Join(dir, "models")},
		{kind: "sqlite", path: filepath.Join(dir, "models.db")},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			store, err := NewStore(tc.kind, tc.path)
			if err != nil {
				t.Fatalf("new store: %v", err)
			}
			if err := store.Init(ctx); err != nil {
				t.Fatalf("init: %v", err)
			}
			t.Cleanup(func() {
				_ = CloseIfSupported(store)
			})

			if _, ok, err := store.LoadParams(ctx, "snake"); err != nil || ok {
				t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
			}

			want := sampleParams()
			if err := store.SaveParams(ctx, "snake", want); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, ok, err := store.LoadParams(ctx, "snake")
			if err != nil || !ok {
				t.Fatalf("load: ok=%v err=%v", ok, err)
			}
			if !got.Equal(want) {
				t.Fatalf("loaded params differ: %+v", got)
			}

			// overwrite
			want.Layers[1].Bias[0] = -7
			if err := store.SaveParams(ctx, "snake", want); err != nil {
				t.Fatalf("resave: %v", err)
			}
			got, _, err = store.LoadParams(ctx, "snake")
			if err != nil {
				t.Fatalf("reload: %v", err)
			}
			if got.Layers[1].Bias[0] != -7 {
				t.Fatalf("expected overwritten bias, got %v", got.Layers[1].Bias[0])
			}
		})
	}
}

func TestNewStoreRejectsUnknownBackend(t *testing.T) {
	if _, err := NewStore("redis", ""); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := sampleParams()
	if err := store.SaveParams(ctx, "k", p); err != nil {
		t.Fatalf("save: %v", err)
	}
	p.Layers[0].Weights[0] = 99

	got, _, _ := store.LoadParams(ctx, "k")
	if got.Layers[0].Weights[0] == 99 {
		t.Fatalf("store kept a reference to the caller's params")
	}
	got.Layers[0].Weights[1] = 99
	again, _, _ := store.LoadParams(ctx, "k")
	if again.Layers[0].Weights[1] == 99 {
		t.Fatalf("store handed out its internal params")
	}
}

func TestSaveRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, key := range []string{"", "../escape", `a\b`} {
		if err := store.SaveParams(ctx, key, sampleParams()); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}

	bad := sampleParams()
	bad.Layers[0].Bias = nil
	if err := store.SaveParams(ctx, "bad", bad); err == nil {
		t.Fatalf("expected malformed params to be rejected")
	}
}

func TestFileStoreRejectsVersionMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	doc := `{"schema_version": 99, "codec_version": 1, "key": "old", "params": {"sizes": [1, 1], "layers": [{"weights": [1], "bias": [0]}]}}`
	if err := os.WriteFile(filepath.Join(dir, "old.json"), []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, err := store.LoadParams(ctx, "old")
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "x.db"))
	if err := store.SaveParams(context.Background(), "k", sampleParams()); err == nil {
		t.Fatalf("expected uninitialized store error")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close of unopened store: %v", err)
	}
}

func TestEncodeParamsRoundTrip(t *testing.T) {
	want := sampleParams()
	data, err := EncodeParams(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeParams(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("decoded params differ: %+v", got)
	}
}

func TestDecodeParamsSkipsUnknownFields(t *testing.T) {
	data, err := EncodeParams(sampleParams())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	data = protowire.AppendTag(data, 15, protowire.VarintType)
	data = protowire.AppendVarint(data, 12345)
	if _, err := DecodeParams(data); err != nil {
		t.Fatalf("decode with unknown field: %v", err)
	}
}

func TestDecodeParamsRejectsBadInput(t *testing.T) {
	data, err := EncodeParams(sampleParams())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeParams(data[:len(data)-3]); err == nil {
		t.Fatalf("expected truncated payload error")
	}

	var future []byte
	future = protowire.AppendTag(future, fieldSchemaVersion, protowire.VarintType)
	future = protowire.AppendVarint(future, CurrentSchemaVersion+1)
	future = protowire.AppendTag(future, fieldCodecVersion, protowire.VarintType)
	future = protowire.AppendVarint(future, CurrentCodecVersion)
	if _, err := DecodeParams(future); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}
