package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"

	"filippo.io/age"
	"github.com/google/uuid"
)

type fakeUploader struct {
	bucket, key, sha string
	size            int64
	body            []byte
	err             error
}

func (f *fakeUploader) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, sha string) error {
	if f.err != nil {
		return f.err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.bucket, f.key, f.sha, f.size, f.body = bucket, key, sha, size, body
	return nil
}

const rawReport = `{"timestamp":"2024-03-01T10:00:00Z","updates":[{"name":"openssl","version":"3.0.13"}]}`

func TestArchivePlain(t *testing.T) {
	up := &fakeUploader{}
	a, err := New(up, "reports")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	hostID, runID := uuid.New(), uuid.New()
	key, err := a.Archive(context.Background(), hostID, runID, []byte(rawReport))
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	wantKey := "reports/" + hostID.String() + "/" + runID.String() + ".json.zst"
	if key != wantKey || up.key != wantKey {
		t.Errorf("key = %q (uploaded %q), want %q", key, up.key, wantKey)
	}
	if up.bucket != "reports" {
		t.Errorf("bucket = %q", up.bucket)
	}
	if up.size != int64(len(up.body)) {
		t.Errorf("size = %d, body = %d bytes", up.size, len(up.body))
	}
	sum := sha256.Sum256(up.body)
	if up.sha != hex.EncodeToString(sum[:]) {
		t.Errorf("sha256 = %q does not match uploaded body", up.sha)
	}

	got, err := Decode(up.body)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if string(got) != rawReport {
		t.Errorf("Decode() = %q", got)
	}
}

func TestArchiveEncrypted(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}

	up := &fakeUploader{}
	a, err := New(up, "reports", identity.Recipient())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	key, err := a.Archive(context.Background(), uuid.New(), uuid.New(), []byte(rawReport))
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if !strings.HasSuffix(key, ".json.zst.age") {
		t.Errorf("key = %q, want .json.zst.age suffix", key)
	}
	if strings.Contains(string(up.body), "openssl") {
		t.Error("encrypted payload contains plaintext")
	}

	if _, err := Decode(up.body); err == nil {
		t.Error("Decode() without identity succeeded on encrypted payload")
	}

	got, err := Decode(up.body, identity)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if string(got) != rawReport {
		t.Errorf("Decode() = %q", got)
	}
}

func TestArchiveUploadFailure(t *testing.T) {
	boom := errors.New("bucket unavailable")
	a, err := New(&fakeUploader{err: boom}, "reports")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := a.Archive(context.Background(), uuid.New(), uuid.New(), []byte(rawReport)); !errors.Is(err, boom) {
		t.Fatalf("Archive() error = %v, want %v", err, boom)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, "reports"); err == nil {
		t.Error("New(nil uploader) succeeded")
	}
	if _, err := New(&fakeUploader{}, ""); err == nil {
		t.Error("New(empty bucket) succeeded")
	}
}
