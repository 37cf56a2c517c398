package blobstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dvloznov/blobshare/internal/logger"
)

// defaultS3Region is where buckets are created when no region is configured.
const defaultS3Region = "us-east-1"

// S3Config holds credentials for an S3 account.
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string

	// Endpoint overrides the AWS endpoint for S3-compatible providers.
	Endpoint string
}

// s3API is the part of *s3.Client used by S3.
type s3API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutPublicAccessBlock(ctx context.Context, in *s3.PutPublicAccessBlockInput, opts ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error)
	PutBucketPolicy(ctx context.Context, in *s3.PutBucketPolicyInput, opts ...func(*s3.Options)) (*s3.PutBucketPolicyOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 is a Store backed by Amazon S3. Containers map to buckets.
type S3 struct {
	client s3API
	region string

	// compatible is set for non-AWS endpoints, which have no public access block.
	compatible bool
}

// NewS3 creates an S3 client with static credentials.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("incomplete S3 configuration: access key ID and secret are required")
	}

	region := cfg.Region
	if region == "" {
		region = defaultS3Region
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(creds),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3{client: client, region: region, compatible: cfg.Endpoint != ""}, nil
}

// CreateContainer implements Store. A bucket the account can already reach
// yields ErrContainerExists; us-east-1 answers CreateBucket on an owned
// bucket with 200, so existence is checked first.
//
// A newly created bucket gets its public access block lifted for policies
// and a policy allowing anonymous reads of its objects.
func (s *S3) CreateContainer(ctx context.Context, name string) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)}); err == nil {
		return fmt.Errorf("bucket %q: %w", name, ErrContainerExists)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(name)}
	if s.region != defaultS3Region {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}

	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		if isS3Conflict(err) {
			return fmt.Errorf("create bucket %q: %w", name, ErrContainerExists)
		}
		return fmt.Errorf("create bucket %q: %w", name, err)
	}

	if !s.compatible {
		_, err := s.client.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
			Bucket: aws.String(name),
			PublicAccessBlockConfiguration: &types.PublicAccessBlockConfiguration{
				BlockPublicAcls:       aws.Bool(true),
				IgnorePublicAcls:      aws.Bool(true),
				BlockPublicPolicy:     aws.Bool(false),
				RestrictPublicBuckets: aws.Bool(false),
			},
		})
		if err != nil {
			return fmt.Errorf("set public access block %q: %w", name, err)
		}
	}

	_, err := s.client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(name),
		Policy: aws.String(publicReadPolicy(name)),
	})
	if err != nil {
		return fmt.Errorf("set bucket policy %q: %w", name, err)
	}

	log := logger.FromContext(ctx)
	log.Debug().Str("bucket", name).Str("region", s.region).Msg("Created S3 bucket")
	return nil
}

// Upload implements Store.
func (s *S3) Upload(ctx context.Context, obj Object, progress ProgressFunc) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(obj.Container),
		Key:           aws.String(obj.Name),
		Body:          newProgressReader(obj.File, progress),
		ContentLength: aws.Int64(obj.Size),
	}
	if obj.ContentType != "" {
		input.ContentType = aws.String(obj.ContentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object %q: %w", obj.Name, err)
	}
	return nil
}

// Close implements Store.
func (s *S3) Close() error {
	return nil
}

func isS3Conflict(err error) bool {
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusConflict
}

var (
	_ Store = (*S3)(nil)
	_ s3API = (*s3.Client)(nil)
)
