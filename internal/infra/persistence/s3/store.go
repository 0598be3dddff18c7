// Package s3 persists the document as one object in an S3-compatible bucket
// (AWS S3 or MinIO).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"incidentcore/pkg/domain"
)

var _ domain.DocumentStore = (*Store)(nil)

const (
	// DefaultKey is the object key used when none is configured.
	DefaultKey    = "incidentcore/data.json"
	defaultRegion = "us-east-1"
)

// Config holds construction parameters.
type Config struct {
	Region          string
	Bucket          string
	Key             string
	Endpoint        string // optional; enables a custom endpoint such as MinIO
	AccessKeyID     string // optional, falls back to the default credentials chain
	SecretAccessKey string
	SessionToken    string
	PathStyle       bool
}

// Store reads and writes the whole document as a single object. A PutObject
// either replaces the object or leaves the previous version in place.
type Store struct {
	client *s3.Client
	bucket string
	key    string
	mu     sync.Mutex
}

// New creates an S3 document store from cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, domain.InvalidArgument("open s3", "bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, domain.StorageError("open s3", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newStore(client, cfg.Bucket, cfg.Key), nil
}

func newStore(client *s3.Client, bucket, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{client: client, bucket: bucket, key: key}
}

// Key returns the object key holding the document.
func (s *Store) Key() string { return s.key }

// Load fetches and decodes the document object. A missing object is
// initialised with an empty document.
func (s *Store) Load(ctx context.Context) (domain.Document, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &s.key})
	if err != nil {
		if isNotFound(err) {
			return s.initialize(ctx)
		}
		return domain.Document{}, domain.StorageError("s3 load", err)
	}
	defer func() { _ = out.Body.Close() }()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return domain.Document{}, domain.StorageError("s3 load", fmt.Errorf("read body: %w", err))
	}
	doc, err := domain.DecodeDocument(b)
	if err != nil {
		return domain.Document{}, domain.StorageError("s3 load", err)
	}
	return doc, nil
}

func (s *Store) initialize(ctx context.Context) (domain.Document, error) {
	doc := domain.NewDocument()
	if err := s.Persist(ctx, doc); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

// Persist overwrites the document object.
func (s *Store) Persist(ctx context.Context, doc domain.Document) error {
	b, err := domain.EncodeDocument(doc)
	if err != nil {
		return domain.StorageError("s3 persist", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &s.key,
		Body:          bytes.NewReader(b),
		ContentLength: aws.Int64(int64(len(b))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return domain.StorageError("s3 persist", err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *Store) Close() error { return nil }

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == http.StatusNotFound
}
