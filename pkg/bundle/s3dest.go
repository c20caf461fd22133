package bundle

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/3leaps/sbatchman/pkg/apperrors"
)

// S3Destination is an optional archive destination: `export` can target
// `s3://bucket/key` instead of a local path, so bundles can be staged
// straight onto shared storage from a login node.
type S3Destination struct {
	Bucket          string
	Key             string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// UploadBundle writes the already-built archive bytes to S3. Callers
// buffer the archive (Export writes to an in-memory buffer) since the zip
// central directory is only finalized at Close.
func UploadBundle(ctx context.Context, dest S3Destination, data *bytes.Buffer) error {
	var opts []func(*config.LoadOptions) error
	if dest.Region != "" {
		opts = append(opts, config.WithRegion(dest.Region))
	}
	if dest.AccessKeyID != "" && dest.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(dest.AccessKeyID, dest.SecretAccessKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return apperrors.New(apperrors.KindBundleFormat, "UploadBundle", dest.Key, fmt.Errorf("load AWS config: %w", err))
	}
	client := s3.NewFromConfig(cfg)

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(dest.Bucket),
		Key:    aws.String(dest.Key),
		Body:   bytes.NewReader(data.Bytes()),
	})
	if err != nil {
		return apperrors.New(apperrors.KindBundleFormat, "UploadBundle", dest.Key, err)
	}
	return nil
}
