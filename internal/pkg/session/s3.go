package session

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	awssession "github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

const deleteBatchSize = 1000

// Credentials is the explicit credential/config value object handed to the
// session by the entrypoint. Core logic never reads or mutates process
// environment state; with empty key fields the SDK's default chain applies.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// s3Store implements Store against S3 using the aws-sdk-go v1 s3manager
// transfer primitives.
type s3Store struct {
	client     *s3.S3
	downloader *s3manager.Downloader
	uploader   *s3manager.Uploader
}

func newS3Store(creds Credentials) (*s3Store, error) {
	cfg := aws.NewConfig()
	if creds.Region != "" {
		cfg = cfg.WithRegion(creds.Region)
	}
	if creds.AccessKeyID != "" {
		cfg = cfg.WithCredentials(
			credentials.NewStaticCredentials(creds.AccessKeyID, creds.SecretAccessKey, ""))
	}
	sess, err := awssession.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}
	return &s3Store{
		client:     s3.New(sess),
		downloader: s3manager.NewDownloader(sess),
		uploader:   s3manager.NewUploader(sess),
	}, nil
}

func (s *s3Store) List(ctx context.Context, root string) ([]string, error) {
	bucket, prefix, err := parseS3Path(root)
	if err != nil {
		return nil, err
	}
	var files []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	err = s.client.ListObjectsV2PagesWithContext(ctx, input,
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				files = append(files, s3Prefix+bucket+"/"+*obj.Key)
			}
			return true
		})
	if err != nil {
		return nil, fmt.Errorf("listing s3 objects under %s: %w", root, err)
	}
	return files, nil
}

func (s *s3Store) Fetch(ctx context.Context, path string) ([]byte, error) {
	bucket, key, err := parseS3Path(path)
	if err != nil {
		return nil, err
	}
	buf := aws.NewWriteAtBuffer([]byte{})
	_, err = s.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

func (s *s3Store) Put(ctx context.Context, path string, localFile string) error {
	b, key, err := parseS3Path(path)
	if err != nil {
		return err
	}
	f, err := os.Open(localFile)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(b),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("uploading %s to %s: %w", localFile, path, err)
	}
	return nil
}

func (s *s3Store) RemoveAll(ctx context.Context, root string) error {
	keys, err := s.List(ctx, root)
	if err != nil {
		return err
	}
	bucket, _, err := parseS3Path(root)
	if err != nil {
		return err
	}
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		var objects []*s3.ObjectIdentifier
		for _, path := range keys[start:end] {
			_, key, err := parseS3Path(path)
			if err != nil {
				return err
			}
			objects = append(objects, &s3.ObjectIdentifier{Key: aws.String(key)})
		}
		_, err = s.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &s3.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("deleting objects under %s: %w", root, err)
		}
	}
	return nil
}
