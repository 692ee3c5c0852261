package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	appErr "gradebox/pkg/errors"
)

func digestOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	content := []byte("testcase input data")

	digest, err := store.PutFileFromReader(ctx, bytes.NewReader(content), "testcase 1 input")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if digest != digestOf(content) {
		t.Fatalf("digest = %s, want %s", digest, digestOf(content))
	}

	var out bytes.Buffer
	if err := store.GetFileToWriter(ctx, digest, &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(out.Bytes(), content) {
		t.Fatalf("got %q, want %q", out.Bytes(), content)
	}

	desc, err := store.Describe(ctx, digest)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if desc != "testcase 1 input" {
		t.Fatalf("description = %q", desc)
	}
}

func TestLocalStorePutIsIdempotent(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	content := []byte("same bytes twice")

	first, err := store.PutFileFromReader(ctx, bytes.NewReader(content), "")
	if err != nil {
		t.Fatalf("first put: %v", err)
	}
	second, err := store.PutFileFromReader(ctx, bytes.NewReader(content), "")
	if err != nil {
		t.Fatalf("second put: %v", err)
	}
	if first != second {
		t.Fatalf("same content yielded digests %s and %s", first, second)
	}
}

func TestLocalStoreMissingBlob(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	missing := digestOf([]byte("never stored"))
	err = store.GetFileToWriter(context.Background(), missing, &bytes.Buffer{})
	if code := appErr.GetCode(err); code != appErr.BlobNotFound {
		t.Fatalf("err = %v, want code %d", err, appErr.BlobNotFound)
	}
}

func TestValidateDigest(t *testing.T) {
	good := digestOf([]byte("x"))
	if err := ValidateDigest(good); err != nil {
		t.Fatalf("valid digest rejected: %v", err)
	}
	bad := []string{
		"",
		"abc",
		"ABCDEF0000000000000000000000000000000000000000000000000000000000", // uppercase
		good + "00", // too long
		"g" + good[1:],
	}
	for _, digest := range bad {
		if code := appErr.GetCode(ValidateDigest(digest)); code != appErr.DigestInvalid {
			t.Fatalf("digest %q accepted", digest)
		}
	}
}

func TestObjectKeyFanOut(t *testing.T) {
	digest := digestOf([]byte("y"))
	key := objectKey(digest)
	want := digest[:2] + "/" + digest[2:4] + "/" + digest
	if key != want {
		t.Fatalf("objectKey = %q, want %q", key, want)
	}
}
