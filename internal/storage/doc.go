// Package storage provides the blob layer fixture files are kept in.
//
// A Bucket is a flat namespace of keys holding small byte payloads. Keys
// use forward slashes regardless of the host OS. Three drivers exist:
//
//   - fs: files under a root directory (the default)
//   - memory: process memory, for tests
//   - s3: objects in an S3 or MinIO bucket, under an optional key prefix
//
// Create never overwrites: a key that already exists fails with ErrExists.
// Fixture stores rely on that to detect index allocation races.
package storage
