// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client behind the Client interface so run reports can be
// archived to AWS S3 or a self-hosted MinIO instance, and so storage interactions can
// be mocked in unit tests (see core/storage/mocks).
//
// # Helpers
//
//   - EnsureBucket: creates the target bucket on first use.
//   - RemoveKeys: deletes a batch of objects through RemoveObjects.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	err = storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region)
package storage
