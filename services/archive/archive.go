// Package archive keeps compressed copies of raw agent reports in object storage.
package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// Uploader is the subset of the object storage client used for archiving.
type Uploader interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, sha256 string) error
}

// Archiver compresses, optionally encrypts, and uploads report bodies.
type Archiver struct {
	uploader   Uploader
	bucket     string
	recipients []age.Recipient
}

// New returns an Archiver writing to bucket. Reports are encrypted when at
// least one recipient is given.
func New(uploader Uploader, bucket string, recipients ...age.Recipient) (*Archiver, error) {
	if uploader == nil {
		return nil, errors.New("uploader is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	return &Archiver{uploader: uploader, bucket: bucket, recipients: recipients}, nil
}

// Encrypted reports whether archives are age-encrypted.
func (a *Archiver) Encrypted() bool {
	return len(a.recipients) > 0
}

// Key is the object key for a run's archived report.
func (a *Archiver) Key(hostID, runID uuid.UUID) string {
	key := fmt.Sprintf("reports/%s/%s.json.zst", hostID, runID)
	if a.Encrypted() {
		key += ".age"
	}
	return key
}

// Archive stores raw under the run's key and returns that key.
func (a *Archiver) Archive(ctx context.Context, hostID, runID uuid.UUID, raw []byte) (string, error) {
	payload, err := a.encode(raw)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(payload)
	key := a.Key(hostID, runID)
	if err := a.uploader.PutObject(ctx, a.bucket, key, bytes.NewReader(payload), int64(len(payload)), hex.EncodeToString(sum[:])); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

func (a *Archiver) encode(raw []byte) ([]byte, error) {
	var buf bytes.Buffer

	var sink io.WriteCloser = nopWriteCloser{&buf}
	if a.Encrypted() {
		w, err := age.Encrypt(&buf, a.recipients...)
		if err != nil {
			return nil, fmt.Errorf("encrypt: %w", err)
		}
		sink = w
	}

	zw, err := zstd.NewWriter(sink)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := sink.Close(); err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Archive's encoding. identities are only needed for
// encrypted archives.
func Decode(payload []byte, identities ...age.Identity) ([]byte, error) {
	var src io.Reader = bytes.NewReader(payload)
	if len(identities) > 0 {
		r, err := age.Decrypt(src, identities...)
		if err != nil {
			return nil, fmt.Errorf("decrypt: %w", err)
		}
		src = r
	}

	zr, err := zstd.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
