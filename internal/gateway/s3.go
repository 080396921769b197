// ABOUTME: S3-compatible bucket backend for the image feed
// ABOUTME: Reverse-timestamp keys list newest first; locators are presigned GET URLs

package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/charmbracelet/log"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/harper/snapfeed/internal/models"
)

// DefaultPresignTTL is how long presigned locators stay valid.
const DefaultPresignTTL = 1 * time.Hour

// stampWidth is the zero-padded width of the reverse timestamp in a key.
const stampWidth = 19

// S3API is the subset of the S3 client the backend uses.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Presigner signs GET requests for object locators.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Options configures an S3Client.
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string // custom endpoint for MinIO and friends; empty uses AWS
	Prefix          string
	AccessKeyID     string // static credentials; empty falls back to the default chain
	SecretAccessKey string
	UsePathStyle    bool
	PresignTTL      time.Duration
	PageSize        int
	Logger          *log.Logger
}

// S3Client stores the feed as objects in one bucket.
type S3Client struct {
	api       S3API
	presigner Presigner
	bucket    string
	prefix    string
	endpoint  string
	ttl       time.Duration
	pageSize  int
	log       *log.Logger
	now       func() time.Time
}

// Compile-time check that S3Client implements Gateway.
var _ Gateway = (*S3Client)(nil)

// NewS3Client builds an S3 backend from the AWS SDK default config plus opts.
func NewS3Client(ctx context.Context, opts S3Options) (*S3Client, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return newS3Client(client, s3.NewPresignClient(client), opts)
}

func newS3Client(api S3API, presigner Presigner, opts S3Options) (*S3Client, error) {
	if opts.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", opts.PageSize)
	}
	ttl := opts.PresignTTL
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	prefix := strings.TrimLeft(opts.Prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &S3Client{
		api:       api,
		presigner: presigner,
		bucket:    opts.Bucket,
		prefix:    prefix,
		endpoint:  opts.Endpoint,
		ttl:       ttl,
		pageSize:  opts.PageSize,
		log:       logger,
		now:       time.Now,
	}, nil
}

// Host returns the custom endpoint host, if any.
func (c *S3Client) Host() string {
	if c.endpoint == "" {
		return ""
	}
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// FetchPage lists up to cursor+pageSize keys and returns the ones after cursor.
func (c *S3Client) FetchPage(ctx context.Context, cursor int) ([]models.Item, error) {
	const op = "fetch_page"

	limit := cursor + c.pageSize
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket:  aws.String(c.bucket),
		Prefix:  aws.String(c.prefix),
		MaxKeys: aws.Int32(int32(min(limit, 1000))),
	})

	var listing []models.Item
	for paginator.HasMorePages() && len(listing) < limit {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapS3Error(op, err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			id, label, ok := parseKey(c.prefix, key)
			if !ok {
				c.log.Debug("skipping foreign object", "key", key)
				continue
			}
			loc, err := c.presign(ctx, key)
			if err != nil {
				return nil, newTransferError(op, KindNetwork, err)
			}
			listing = append(listing, models.NewItem(id, label, loc))
			if len(listing) == limit {
				break
			}
		}
	}

	return window(listing, cursor), nil
}

// Upload stores the image under a fresh key and returns its item.
func (c *S3Client) Upload(ctx context.Context, up *UploadRequest) (*models.Item, error) {
	const op = "upload"

	if up == nil || len(up.Data) == 0 {
		return nil, newTransferError(op, KindRejected, errors.New("empty upload"))
	}
	if len(up.Data) > MaxUploadSize {
		return nil, newTransferError(op, KindTooLarge, fmt.Errorf("payload is %d bytes, limit %d", len(up.Data), MaxUploadSize))
	}

	contentType := up.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(up.Data).String()
	}
	ext := extensionFor(up.Filename, up.Data)

	id := newKeyID(c.now())
	key := buildKey(c.prefix, id, up.Label, ext)

	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(up.Data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(up.Data))),
	})
	if err != nil {
		c.log.Error("failed to upload object", "key", key, "err", err)
		return nil, mapS3Error(op, err)
	}
	c.log.Debug("uploaded object", "key", key, "size", len(up.Data))

	loc, err := c.presign(ctx, key)
	if err != nil {
		return nil, newTransferError(op, KindNetwork, err)
	}

	item := models.NewItem(id, up.Label, loc)
	return &item, nil
}

func (c *S3Client) presign(ctx context.Context, key string) (string, error) {
	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(c.ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

// newKeyID returns a reverse-timestamp id so that newer uploads sort first.
func newKeyID(now time.Time) string {
	stamp := fmt.Sprintf("%0*d", stampWidth, math.MaxInt64-now.UnixNano())
	return stamp + "-" + uuid.New().String()
}

// buildKey lays out prefix/<id>/<escaped label><ext>.
func buildKey(prefix, id, label, ext string) string {
	escaped := strings.ReplaceAll(url.PathEscape(strings.TrimSpace(label)), ".", "%2E")
	return prefix + id + "/" + escaped + ext
}

// parseKey reverses buildKey. Keys that do not follow the layout are rejected.
func parseKey(prefix, key string) (id, label string, ok bool) {
	rest, found := strings.CutPrefix(key, prefix)
	if !found {
		return "", "", false
	}
	id, name, found := strings.Cut(rest, "/")
	if !found || len(id) <= stampWidth || id[stampWidth] != '-' || strings.Contains(name, "/") {
		return "", "", false
	}
	for _, r := range id[:stampWidth] {
		if r < '0' || r > '9' {
			return "", "", false
		}
	}

	name = strings.TrimSuffix(name, path.Ext(name))
	label, err := url.PathUnescape(name)
	if err != nil {
		label = name
	}
	return id, label, true
}

func extensionFor(filename string, data []byte) string {
	if ext := strings.ToLower(path.Ext(filename)); ext != "" {
		return ext
	}
	return mimetype.Detect(data).Extension()
}

func mapS3Error(op string, err error) error {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return &TransferError{Op: op, Kind: KindStatus, Status: respErr.HTTPStatusCode(), Err: err}
	}
	return newTransferError(op, KindNetwork, err)
}
