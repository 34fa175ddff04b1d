package s3

import (
	"context"
	"fmt"
	"mime"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"contaportal/internal/config"
	"contaportal/internal/port"
)

const (
	// DefaultPresignExpiry applies when no expiry is configured.
	DefaultPresignExpiry = 15 * time.Minute
	// MaxPresignExpiry is the longest lifetime SigV4 accepts.
	MaxPresignExpiry = 7 * 24 * time.Hour
)

// s3Client keeps uploaded client documents. Objects carry the uploader's
// file name as their download name plus the portal's ownership metadata.
type s3Client struct {
	client    *s3.Client
	presigner *s3.PresignClient
	uploader  *manager.Uploader
}

// NewS3Client creates an ObjectStorage over S3 or any S3-compatible endpoint.
func NewS3Client(cfg *config.S3Config) (port.ObjectStorage, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("s3.NewS3Client: loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &s3Client{
		client:    client,
		presigner: s3.NewPresignClient(client),
		uploader:  manager.NewUploader(client),
	}, nil
}

func (c *s3Client) Upload(ctx context.Context, input port.UploadInput) (*port.UploadOutput, error) {
	put := &s3.PutObjectInput{
		Bucket:      aws.String(input.Bucket),
		Key:         aws.String(input.Key),
		Body:        input.Body,
		ContentType: aws.String(input.ContentType),
		Metadata:    input.Metadata,
	}
	if input.FileName != "" {
		put.ContentDisposition = aws.String(contentDisposition(input.FileName))
	}

	result, err := c.uploader.Upload(ctx, put)
	if err != nil {
		return nil, fmt.Errorf("s3Client.Upload %s: %w", objectURI(input.Bucket, input.Key), err)
	}
	return &port.UploadOutput{
		Location: result.Location,
		ETag:     aws.ToString(result.ETag),
	}, nil
}

func (c *s3Client) Delete(ctx context.Context, bucket, key string) error {
	if _, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("s3Client.Delete %s: %w", objectURI(bucket, key), err)
	}
	return nil
}

func (c *s3Client) GetPresignedURL(ctx context.Context, bucket, key string, expirySeconds int64) (string, error) {
	result, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(PresignExpiry(expirySeconds)))
	if err != nil {
		return "", fmt.Errorf("s3Client.GetPresignedURL %s: %w", objectURI(bucket, key), err)
	}
	return result.URL, nil
}

// PresignExpiry turns a configured number of seconds into a lifetime S3
// will sign, falling back to DefaultPresignExpiry and capping at
// MaxPresignExpiry.
func PresignExpiry(seconds int64) time.Duration {
	if seconds <= 0 {
		return DefaultPresignExpiry
	}
	if seconds >= int64(MaxPresignExpiry/time.Second) {
		return MaxPresignExpiry
	}
	return time.Duration(seconds) * time.Second
}

func contentDisposition(fileName string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": fileName}); v != "" {
		return v
	}
	return "attachment"
}

func objectURI(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}
