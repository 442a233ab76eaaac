package blob_test

import (
	"bytes"
	"errors"
	"testing"

	"marketpipe/internal/blob"
)

func TestPutGetRoundTrip(t *testing.T) {
	store, err := blob.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	key, err := store.Put([]byte("enriched content"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if key == "" {
		t.Fatal("expected a non-empty key")
	}

	data, err := store.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(data, []byte("enriched content")) {
		t.Fatalf("data = %q", data)
	}
}

func TestPutJSONGetJSON(t *testing.T) {
	store, err := blob.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	type doc struct {
		Query   string `json:"query"`
		Content string `json:"content"`
	}
	key, err := store.PutJSON(doc{Query: "ev market", Content: "synthesis"})
	if err != nil {
		t.Fatalf("PutJSON: %v", err)
	}

	var out doc
	if err := store.GetJSON(key, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.Query != "ev market" || out.Content != "synthesis" {
		t.Fatalf("out = %#v", out)
	}
}

func TestGetMissingKey(t *testing.T) {
	store, err := blob.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if _, err := store.Get("no-such-key"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
