package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"integrity-go/internal/config"
	"integrity-go/internal/integrity"
)

// versionMetadataKey holds the snapshot version in S3 user metadata.
// S3 returns user metadata keys lower-cased.
const versionMetadataKey = "integrity-version"

// s3API is the subset of *s3.Client the vault uses.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// uploaderAPI is the subset of *manager.Uploader the vault uses.
type uploaderAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Vault stores snapshots in an S3 bucket, or any S3-compatible service
// when an endpoint is configured:
//
//	<bucket>/<prefix>/snapshots/<hostID>.db   (version in object metadata)
type S3Vault struct {
	name     string
	bucket   string
	prefix   string
	client   s3API
	uploader uploaderAPI
}

// NewS3Vault creates an S3 vault using the default AWS credential chain,
// unless static credentials are configured.
func NewS3Vault(ctx context.Context, cfg config.VaultConfig) (*S3Vault, error) {
	if cfg.S3Bucket == "" {
		return nil, errors.New("s3 vault requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3KeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3KeyID, cfg.S3Secret, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Vault(cfg.Name, cfg.S3Bucket, cfg.S3Prefix, client, manager.NewUploader(client)), nil
}

func newS3Vault(name, bucket, prefix string, client s3API, uploader uploaderAPI) *S3Vault {
	return &S3Vault{
		name:     name,
		bucket:   bucket,
		prefix:   prefix,
		client:   client,
		uploader: uploader,
	}
}

// PutSnapshot uploads the snapshot with its version in object metadata.
// The multipart uploader streams r, so size is only checked afterwards.
func (v *S3Vault) PutSnapshot(hostID string, r io.Reader, size int64, version int64) error {
	counter := &countingReader{r: r}
	_, err := v.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket:   aws.String(v.bucket),
		Key:      aws.String(v.snapshotKey(hostID)),
		Body:     counter,
		Metadata: map[string]string{versionMetadataKey: strconv.FormatInt(version, 10)},
	})
	if err != nil {
		return fmt.Errorf("uploading snapshot: %w", err)
	}
	if counter.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counter.n)
	}
	return nil
}

// GetSnapshot downloads the host's snapshot to w.
func (v *S3Vault) GetSnapshot(hostID string, w io.Writer) error {
	out, err := v.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.snapshotKey(hostID)),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("host %s: %w", hostID, integrity.ErrSnapshotNotFound)
		}
		return fmt.Errorf("downloading snapshot: %w", err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}
	return nil
}

// GetSnapshotVersion returns 0 if no snapshot exists for the host.
func (v *S3Vault) GetSnapshotVersion(hostID string) (int64, error) {
	out, err := v.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.snapshotKey(hostID)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading snapshot metadata: %w", err)
	}

	raw, ok := out.Metadata[versionMetadataKey]
	if !ok {
		return 0, fmt.Errorf("snapshot for host %s has no version metadata", hostID)
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup checks that the bucket exists and is reachable with the configured credentials.
func (v *S3Vault) ValidateSetup() error {
	_, err := v.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(v.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

func (v *S3Vault) snapshotKey(hostID string) string {
	return path.Join(v.prefix, "snapshots", hostID+".db")
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Compile-time check that S3Vault implements integrity.Vault interface
var _ integrity.Vault = (*S3Vault)(nil)
