package s3blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// minPartSize is the minimum allowed part size for S3 multipart uploads (5 MiB).
const minPartSize int64 = 5 * 1024 * 1024

// Uploader pushes rotated archive segment files to the client's bucket using
// the multipart upload manager. Keys are partitioned by upload date:
//
//	archive/orderbook/2025/11/10/orderbook_stream-20251110T120000Z-<run>.jsonl
type Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewUploader creates an Uploader writing under the given key prefix. An
// empty prefix defaults to "archive/orderbook".
func NewUploader(c *Client, prefix string) *Uploader {
	if prefix == "" {
		prefix = "archive/orderbook"
	}
	return &Uploader{
		client: c.S3(),
		bucket: c.Bucket(),
		prefix: prefix,
	}
}

// UploadSegment uploads the segment file at path. The local file is left in
// place; the caller decides whether to remove it.
func (u *Uploader) UploadSegment(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("s3blob: open segment %s: %w", path, err)
	}
	defer f.Close()

	key := u.segmentKey(filepath.Base(path), time.Now().UTC())

	uploader := manager.NewUploader(u.client, func(up *manager.Uploader) {
		up.PartSize = minPartSize
	})

	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("s3blob: upload segment %s: %w", key, err)
	}
	return nil
}

func (u *Uploader) segmentKey(name string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%s", u.prefix, now.Format("2006/01/02"), name)
}
