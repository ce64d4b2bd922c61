// Package gcs stores backup records as Google Cloud Storage objects.
//
// Tags live in object metadata and records are found by listing the
// bucket prefix and matching metadata, never by object name. Object names
// are opaque UUIDv7 values.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/roach88/fablekeep/internal/backup"
)

// Metadata keys carrying backup tags.
const (
	metaAppID      = "fablekeep-app-id"
	metaRole       = "fablekeep-role"
	metaSlot       = "fablekeep-slot"
	metaSessionKey = "fablekeep-session-key"
)

// DefaultPrefix is the object prefix used when Config.Prefix is empty.
const DefaultPrefix = "fablekeep/"

// Config selects the bucket and credentials.
type Config struct {
	Bucket string
	Prefix string
	// Token is an externally issued OAuth2 access token. It takes
	// precedence over CredentialsFile.
	Token string
	// CredentialsFile is a service account key file.
	CredentialsFile string
	// Endpoint overrides the storage API endpoint (emulators).
	Endpoint string
}

// Remote implements backup.Remote on a GCS bucket.
type Remote struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ backup.Remote = (*Remote)(nil)

// New creates a storage client for cfg.
func New(ctx context.Context, cfg Config) (*Remote, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs: bucket is required")
	}
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Remote{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

func clientOptions(cfg Config) ([]option.ClientOption, error) {
	var opts []option.ClientOption
	switch {
	case cfg.Token != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})
		opts = append(opts, option.WithTokenSource(ts))
	case cfg.CredentialsFile != "":
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("service account key not found at path: %s: %w", cfg.CredentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.Endpoint != "":
		opts = append(opts, option.WithoutAuthentication())
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	return opts, nil
}

// Close releases the storage client.
func (r *Remote) Close() error {
	return r.client.Close()
}

// Find implements backup.Remote.
func (r *Remote) Find(ctx context.Context, tags backup.Tags) (backup.File, bool, error) {
	it := r.client.Bucket(r.bucket).Objects(ctx, &storage.Query{Prefix: r.prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return backup.File{}, false, nil
		}
		if err != nil {
			return backup.File{}, false, fmt.Errorf("list gs://%s/%s: %w", r.bucket, r.prefix, err)
		}
		if got, ok := tagsFromMetadata(attrs.Metadata); ok && got == tags {
			return fileFromAttrs(attrs), true, nil
		}
	}
}

// Create implements backup.Remote.
func (r *Remote) Create(ctx context.Context, tags backup.Tags, body []byte) (backup.File, error) {
	name := r.prefix + uuid.Must(uuid.NewV7()).String() + ".json"
	obj := r.client.Bucket(r.bucket).Object(name).If(storage.Conditions{DoesNotExist: true})
	return r.write(ctx, obj, metadataFromTags(tags), body)
}

// Update implements backup.Remote. The write is conditioned on the
// generation just read so a concurrent replace is not silently lost.
func (r *Remote) Update(ctx context.Context, id string, body []byte) (backup.File, error) {
	obj := r.client.Bucket(r.bucket).Object(id)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return backup.File{}, fmt.Errorf("stat gs://%s/%s: %w", r.bucket, id, err)
	}
	obj = obj.If(storage.Conditions{GenerationMatch: attrs.Generation})
	return r.write(ctx, obj, attrs.Metadata, body)
}

func (r *Remote) write(ctx context.Context, obj *storage.ObjectHandle, metadata map[string]string, body []byte) (backup.File, error) {
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.CacheControl = "no-cache, no-store, must-revalidate"
	writer.Metadata = metadata

	if _, err := writer.Write(body); err != nil {
		_ = writer.Close()
		return backup.File{}, fmt.Errorf("failed to write GCS object %s: %w", obj.ObjectName(), err)
	}
	if err := writer.Close(); err != nil {
		return backup.File{}, fmt.Errorf("failed to close GCS writer for %s: %w", obj.ObjectName(), err)
	}
	return fileFromAttrs(writer.Attrs()), nil
}

// Get implements backup.Remote.
func (r *Remote) Get(ctx context.Context, id string) ([]byte, error) {
	reader, err := r.client.Bucket(r.bucket).Object(id).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", r.bucket, id, err)
	}
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", r.bucket, id, err)
	}
	return body, nil
}

func metadataFromTags(tags backup.Tags) map[string]string {
	return map[string]string{
		metaAppID:      tags.AppID,
		metaRole:       string(tags.Role),
		metaSlot:       string(tags.Slot),
		metaSessionKey: tags.SessionKey,
	}
}

// tagsFromMetadata reads tags back; objects missing any tag are not ours.
func tagsFromMetadata(md map[string]string) (backup.Tags, bool) {
	appID, okApp := md[metaAppID]
	role, okRole := md[metaRole]
	slot, okSlot := md[metaSlot]
	key, okKey := md[metaSessionKey]
	if !okApp || !okRole || !okSlot || !okKey {
		return backup.Tags{}, false
	}
	return backup.Tags{AppID: appID, Role: backup.Role(role), Slot: backup.Slot(slot), SessionKey: key}, true
}

func fileFromAttrs(attrs *storage.ObjectAttrs) backup.File {
	if attrs == nil {
		return backup.File{}
	}
	tags, _ := tagsFromMetadata(attrs.Metadata)
	return backup.File{ID: attrs.Name, Tags: tags, ModifiedAt: attrs.Updated}
}
