/*
Copyright 2025 ForgeCI Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Copyright 2025 C8S Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package stash

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Config configures S3Backend, mirroring the teacher's
// storage.Config/Config.Validate idiom.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 stash backend: bucket is required")
	}
	if c.AccessKeyID == "" {
		return fmt.Errorf("s3 stash backend: access key id is required")
	}
	if c.SecretAccessKey == "" {
		return fmt.Errorf("s3 stash backend: secret access key is required")
	}
	return nil
}

// S3Backend mirrors stash bundles to an S3 (or S3-compatible) bucket,
// giving stash survival beyond the local bundle directory's lifetime.
// Adapted from storage/s3.Client's Uploader/Downloader pairing,
// generalized from single-object log/artifact transfer to whole-bundle
// directory sync.
type S3Backend struct {
	client     *s3.S3
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	bucket     string
	prefix     string
}

// NewS3Backend builds an S3Backend from cfg.
func NewS3Backend(cfg *S3Config) (*S3Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg := &aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(cfg.UsePathStyle)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}

	return &S3Backend{
		client:     s3.New(sess),
		uploader:   s3manager.NewUploader(sess),
		downloader: s3manager.NewDownloader(sess),
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
	}, nil
}

func (b *S3Backend) key(name, relPath string) string {
	if b.prefix == "" {
		return filepath.ToSlash(filepath.Join(name, relPath))
	}
	return filepath.ToSlash(filepath.Join(b.prefix, name, relPath))
}

// Upload mirrors every file under bundleDir to s3://bucket/prefix/name/...
func (b *S3Backend) Upload(name string, bundleDir string) error {
	ctx := context.Background()
	return filepath.Walk(bundleDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(bundleDir, path)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = b.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.key(name, relPath)),
			Body:   f,
		})
		if err != nil {
			return fmt.Errorf("uploading %s: %w", relPath, err)
		}
		return nil
	})
}

// Download restores name's bundle from S3 into destDir.
func (b *S3Backend) Download(name string, destDir string) error {
	ctx := context.Background()
	prefix := b.key(name, "")

	var keys []string
	err := b.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, *obj.Key)
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("listing remote bundle %s: %w", name, err)
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: no objects under %s", ErrEntryNotFound, prefix)
	}

	for _, key := range keys {
		relPath, err := filepath.Rel(prefix, key)
		if err != nil {
			return err
		}
		dest := filepath.Join(destDir, filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}

		f, err := os.Create(dest)
		if err != nil {
			return err
		}
		_, err = b.downloader.DownloadWithContext(ctx, f, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		f.Close()
		if err != nil {
			return fmt.Errorf("downloading %s: %w", key, err)
		}
	}
	return nil
}
