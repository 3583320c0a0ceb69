package instances

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"
)

// objectAPI is the subset of the S3 client the uploader needs
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Uploader copies benchmark artifacts (logs, charts, exports) to an
// S3-compatible bucket
type Uploader struct {
	client     objectAPI
	bucketName string
	prefix     string
	endpoint   string
}

// NewS3Uploader creates an uploader for an AWS S3 bucket
func NewS3Uploader(ctx context.Context, region, bucketName, prefix string) (*Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}

	return &Uploader{
		client:     s3.NewFromConfig(cfg),
		bucketName: bucketName,
		prefix:     prefix,
		endpoint:   fmt.Sprintf("https://s3.%s.amazonaws.com", region),
	}, nil
}

// NewR2Uploader creates an uploader for a Cloudflare R2 bucket
func NewR2Uploader(ctx context.Context, accountID, accessKeyID, secretAccessKey, bucketName, prefix string) (*Uploader, error) {
	// R2 endpoint format: https://<ACCOUNT_ID>.r2.cloudflarestorage.com
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
		config.WithRegion("auto"), // R2 uses "auto" region
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &Uploader{
		client:     client,
		bucketName: bucketName,
		prefix:     prefix,
		endpoint:   endpoint,
	}, nil
}

// ObjectKey returns the bucket key a local file is uploaded under
func (u *Uploader) ObjectKey(localPath string) string {
	return path.Join(u.prefix, filepath.Base(localPath))
}

// UploadObject uploads data under objectKey
func (u *Uploader) UploadObject(ctx context.Context, objectKey string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(u.bucketName),
		Key:    aws.String(objectKey),
		Body:   bytes.NewReader(data),
	}

	if _, err := u.client.PutObject(ctx, input); err != nil {
		return errors.Wrapf(err, "failed to upload %s", objectKey)
	}

	return nil
}

// UploadFile uploads a local file and returns the key it was stored under
func (u *Uploader) UploadFile(ctx context.Context, localPath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", localPath)
	}

	key := u.ObjectKey(localPath)
	if err := u.UploadObject(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

// UploadFiles uploads every existing file and returns the keys written.
// Missing files are skipped; the first upload error aborts.
func (u *Uploader) UploadFiles(ctx context.Context, localPaths []string) ([]string, error) {
	var keys []string
	for _, p := range localPaths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		key, err := u.UploadFile(ctx, p)
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// ObjectExists checks if an object exists
func (u *Uploader) ObjectExists(ctx context.Context, objectKey string) (bool, error) {
	input := &s3.HeadObjectInput{
		Bucket: aws.String(u.bucketName),
		Key:    aws.String(objectKey),
	}

	_, err := u.client.HeadObject(ctx, input)
	if err != nil {
		var notFound *types.NotFound
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to check object existence")
	}

	return true, nil
}

// GetEndpoint returns the storage endpoint
func (u *Uploader) GetEndpoint() string {
	return u.endpoint
}
