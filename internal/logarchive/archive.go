// Package logarchive implements the log archive (C2): a content-addressed
// object store for build/deploy log blobs, keyed by job id and phase. It
// reuses the predecessor codebase's own NATS JetStream dependency, applied
// to the Object Store API instead of the KV API that package used for
// entity/call storage.
package logarchive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/nimbusd/internal/apperr"
)

const bucketName = "NIMBUS_LOGS"

// Archive wraps a JetStream object store bucket.
type Archive struct {
	store jetstream.ObjectStore
}

// Open connects to natsURL and creates (or reuses) the log bucket.
func Open(ctx context.Context, natsURL string) (*Archive, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	store, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: "build/deploy log archive",
	})
	if err != nil {
		return nil, fmt.Errorf("create object store: %w", err)
	}

	return &Archive{store: store}, nil
}

// Key returns the content-addressed key for a job's build or deploy log.
func Key(jobID, phase string) string {
	return fmt.Sprintf("jobs/%s/%s.log", jobID, phase)
}

// objectKeySafe maps a slash-bearing logical key to a JetStream object-store
// object name (which permits slashes as of modern nats.go, but this keeps
// the mapping explicit and centralized).
func objectKeySafe(key string) string { return key }

// Put uploads content under key with a text/plain content type. Best-effort
// by contract of the caller (the pipeline's archive stage never fails the
// job on an archive error); Put itself still reports errors so callers can
// log them.
func (a *Archive) Put(ctx context.Context, key string, content []byte) error {
	meta := jetstream.ObjectMeta{
		Name: objectKeySafe(key),
		Headers: nats.Header{
			"Content-Type": []string{"text/plain; charset=utf-8"},
		},
	}
	_, err := a.store.Put(ctx, meta, bytes.NewReader(content))
	if err != nil {
		return apperr.StoreFailure("archive put", err)
	}
	return nil
}

// Get downloads content by key. A missing key reports apperr.NotFound.
func (a *Archive) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := a.store.GetBytes(ctx, objectKeySafe(key))
	if err != nil {
		if err == jetstream.ErrObjectNotFound {
			return nil, apperr.NotFound(fmt.Sprintf("log %s not found", key))
		}
		return nil, apperr.StoreFailure("archive get", err)
	}
	return data, nil
}

// Delete removes an object by key; deleting an absent key is not an error
// (cleanup idempotence).
func (a *Archive) Delete(ctx context.Context, key string) error {
	err := a.store.Delete(ctx, objectKeySafe(key))
	if err != nil && err != jetstream.ErrObjectNotFound {
		return apperr.StoreFailure("archive delete", err)
	}
	return nil
}
