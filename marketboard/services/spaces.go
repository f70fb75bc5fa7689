package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the part of the S3 client used for archiving.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// SpacesService archives published reports to a DigitalOcean Spaces bucket.
type SpacesService struct {
	client     ObjectPutter
	bucket     string
	region     string
	ReportRoot string
}

func NewSpacesService(ctx context.Context, spacesKey, spacesSecret, region, bucket, reportRoot string) (*SpacesService, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(spacesKey, spacesSecret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load Spaces config: %w", err)
	}

	return NewSpacesServiceWithClient(s3.NewFromConfig(cfg), region, bucket, reportRoot), nil
}

func NewSpacesServiceWithClient(client ObjectPutter, region, bucket, reportRoot string) *SpacesService {
	return &SpacesService{
		client:     client,
		bucket:     bucket,
		region:     region,
		ReportRoot: strings.Trim(reportRoot, "/"),
	}
}

// ReportKey builds the object key for a report table published at t.
func (s *SpacesService) ReportKey(location, table string, t time.Time) string {
	return path.Join(s.ReportRoot, location, t.UTC().Format("2006-01-02"), fmt.Sprintf("%s_%s.md", table, t.UTC().Format("150405")))
}

// ArchiveReport uploads a rendered report as a private markdown object.
func (s *SpacesService) ArchiveReport(ctx context.Context, key, body string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(body),
		ContentType: aws.String("text/markdown; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive report %s: %w", key, err)
	}
	return nil
}

func (s *SpacesService) GetBucket() string {
	return s.bucket
}

func (s *SpacesService) GetRegion() string {
	return s.region
}
