// Package blobstore decorates a store.SessionStore with a one-way
// archival mirror: every successful StoreSession additionally uploads
// the serialized document to a MinIO/S3 bucket for out-of-band audit
// or migration tooling. There is no restore path — loading a session
// always goes through the wrapped store, never the archive.
package blobstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ratchetproto/signalcore/protocol"
	"github.com/ratchetproto/signalcore/session"
	"github.com/ratchetproto/signalcore/store"
)

// ArchiveStore wraps a store.SessionStore, mirroring every stored
// document into an object store.
type ArchiveStore struct {
	inner  store.SessionStore
	client *minio.Client
	bucket string
}

// New wraps inner with an archival mirror in bucket on the MinIO/S3
// endpoint, creating the bucket if it does not already exist.
func New(ctx context.Context, inner store.SessionStore, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*ArchiveStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: new client: %w", err)
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("blobstore: check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("blobstore: create bucket %s: %w", bucket, err)
		}
	}
	return &ArchiveStore{inner: inner, client: client, bucket: bucket}, nil
}

func archiveKey(addr protocol.Address) string {
	return "sessions/" + addr.String() + ".json"
}

// LoadSession delegates to the wrapped store; the archive is
// write-only and never consulted on read.
func (a *ArchiveStore) LoadSession(ctx context.Context, addr protocol.Address) (*session.Record, error) {
	return a.inner.LoadSession(ctx, addr)
}

// StoreSession persists through the wrapped store, then uploads a
// copy of the same serialized document to the archive bucket. An
// archive upload failure is returned to the caller after the primary
// store write already succeeded, so the record is never left
// unpersisted because of archival trouble.
func (a *ArchiveStore) StoreSession(ctx context.Context, addr protocol.Address, record *session.Record) error {
	if err := a.inner.StoreSession(ctx, addr, record); err != nil {
		return err
	}
	data, err := record.Serialize()
	if err != nil {
		return fmt.Errorf("blobstore: encode %s for archive: %w", addr, err)
	}
	_, err = a.client.PutObject(ctx, a.bucket, archiveKey(addr), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("blobstore: archive upload %s: %w", addr, err)
	}
	return nil
}
