//go:build integration

package s3_test

import (
	"context"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/marmos91/mozaichub/pkg/content"
	"github.com/marmos91/mozaichub/pkg/content/s3"
	contenttest "github.com/marmos91/mozaichub/pkg/content/testing"
	"github.com/stretchr/testify/require"
)

// TestS3ContentStore_Integration runs the content store suite against a
// real S3-compatible service (Localstack or MinIO).
//
// Prerequisites:
//   - Localstack running on localhost:4566 (or LOCALSTACK_ENDPOINT)
//   - Run with: go test -tags=integration ./pkg/content/s3/...
//
// To start Localstack:
//
//	docker run --rm -p 4566:4566 localstack/localstack
func TestS3ContentStore_Integration(t *testing.T) {
	ctx := context.Background()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	cfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion("us-east-1"),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)

	client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	bucket := "mozaichub-test-bucket"
	_, err = client.CreateBucket(ctx, &awss3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err)

	t.Cleanup(func() {
		store, err := s3.NewS3ContentStore(ctx, s3.S3ContentStoreConfig{Client: client, Bucket: bucket})
		if err == nil {
			ids, _ := store.ListAllContent(ctx)
			_, _ = store.DeleteBatch(ctx, ids)
		}
		_, _ = client.DeleteBucket(ctx, &awss3.DeleteBucketInput{Bucket: aws.String(bucket)})
	})

	suite := &contenttest.StoreTestSuite{
		NewStore: func(t *testing.T) content.ContentStore {
			// A fresh prefix per test keeps listings isolated.
			store, err := s3.NewS3ContentStore(ctx, s3.S3ContentStoreConfig{
				Client:    client,
				Bucket:    bucket,
				KeyPrefix: "test-" + uuid.NewString() + "/",
			})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}
