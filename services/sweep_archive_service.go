package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// SweepArchiveService writes each sweep report to S3 as a JSON object, giving
// an audit trail of which groups the sweeper deleted and when.
type SweepArchiveService struct {
	Client *s3.Client
	Bucket string
}

// NewSweepArchiveService returns nil when no archive bucket is configured,
// which disables archiving.
func NewSweepArchiveService() *SweepArchiveService {
	bucket := os.Getenv("SWEEP_ARCHIVE_BUCKET")
	if bucket == "" {
		return nil
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(), config.WithRegion(os.Getenv("AWS_REGION")))
	if err != nil {
		log.Printf("Failed to load AWS config for sweep archive: %v", err)
		return nil
	}
	return &SweepArchiveService{Client: s3.NewFromConfig(cfg), Bucket: bucket}
}

// StoreReport uploads one sweep report, keyed by sweep timestamp
func (a *SweepArchiveService) StoreReport(ctx context.Context, report SweepReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal sweep report: %w", err)
	}

	key := "sweeps/" + time.UnixMilli(report.SweptAt).UTC().Format("20060102T150405Z") + ".json"
	_, err = a.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload sweep report '%s': %w", key, err)
	}
	return nil
}
