// ABOUTME: Tests for the S3 backend using in-memory fakes of the S3 client and presigner
// ABOUTME: Checks newest-first key layout, paging, label round trips and error mapping

package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	ctypes  map[string]string
	listErr error
	putErr  error
	lists   int
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}, ctypes: map[string]string{}}
}

func (b *fakeBucket) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lists++
	if b.listErr != nil {
		return nil, b.listErr
	}

	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		start, _ = strconv.Atoi(*in.ContinuationToken)
	}
	limit := int(aws.ToInt32(in.MaxKeys))
	if limit <= 0 {
		limit = 1000
	}
	end := min(start+limit, len(keys))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (b *fakeBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if b.putErr != nil {
		return nil, b.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[aws.ToString(in.Key)] = data
	b.ctypes[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

type fakePresigner struct{}

func (fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{
		URL:    "https://" + aws.ToString(in.Bucket) + ".s3.example.com/" + aws.ToString(in.Key) + "?X-Amz-Signature=test",
		Method: http.MethodGet,
	}, nil
}

func newTestS3(t *testing.T, bucket *fakeBucket, pageSize int) *S3Client {
	t.Helper()
	c, err := newS3Client(bucket, fakePresigner{}, S3Options{Bucket: "snaps", Prefix: "feed", PageSize: pageSize})
	require.NoError(t, err)
	return c
}

func TestS3_UploadThenFetchNewestFirst(t *testing.T) {
	bucket := newFakeBucket()
	c := newTestS3(t, bucket, 2)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var uploaded []string
	for i, label := range []string{"first", "second", "third"} {
		c.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		item, err := c.Upload(context.Background(), &UploadRequest{
			Label:    label,
			Filename: label + ".png",
			Data:     []byte("\x89PNG\r\n\x1a\n" + label),
		})
		require.NoError(t, err)
		uploaded = append(uploaded, item.ID)
		assert.Equal(t, label, item.Label)
		assert.Contains(t, item.Locator, "X-Amz-Signature")
	}

	page, err := c.FetchPage(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uploaded[2], page[0].ID)
	assert.Equal(t, "third", page[0].Label)
	assert.Equal(t, uploaded[1], page[1].ID)

	page, err = c.FetchPage(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "first", page[0].Label)

	page, err = c.FetchPage(context.Background(), 4)
	require.NoError(t, err)
	assert.NotNil(t, page)
	assert.Empty(t, page)
}

func TestS3_FetchPageAcrossListPages(t *testing.T) {
	bucket := newFakeBucket()
	c := newTestS3(t, bucket, 3)

	for i := 0; i < 7; i++ {
		key := buildKey(c.prefix, newKeyID(time.Unix(int64(1000-i), 0)), "img "+strconv.Itoa(i), ".jpg")
		bucket.objects[key] = []byte("x")
	}

	// MaxKeys is cursor+pageSize so cursor 3 needs one list call of six keys
	page, err := c.FetchPage(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "img 3", page[0].Label)
	assert.Equal(t, "img 5", page[2].Label)

	page, err = c.FetchPage(context.Background(), 6)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "img 6", page[0].Label)
}

func TestS3_SkipsForeignObjects(t *testing.T) {
	bucket := newFakeBucket()
	c := newTestS3(t, bucket, 5)

	bucket.objects["feed/README.txt"] = []byte("hello")
	bucket.objects["feed/notastamp-abc/x.png"] = []byte("x")
	bucket.objects["other/"+newKeyID(time.Now())+"/x.png"] = []byte("x")
	good := buildKey(c.prefix, newKeyID(time.Now()), "keeper", ".png")
	bucket.objects[good] = []byte("x")

	page, err := c.FetchPage(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "keeper", page[0].Label)
}

func TestS3_UploadErrors(t *testing.T) {
	bucket := newFakeBucket()
	c := newTestS3(t, bucket, 2)

	_, err := c.Upload(context.Background(), &UploadRequest{})
	te, ok := IsTransferError(err)
	require.True(t, ok)
	assert.Equal(t, KindRejected, te.Kind)

	_, err = c.Upload(context.Background(), &UploadRequest{Data: make([]byte, MaxUploadSize+1)})
	te, ok = IsTransferError(err)
	require.True(t, ok)
	assert.Equal(t, KindTooLarge, te.Kind)

	bucket.putErr = errors.New("dial tcp: connection refused")
	_, err = c.Upload(context.Background(), &UploadRequest{Data: []byte("x")})
	te, ok = IsTransferError(err)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, te.Kind)
}

func TestS3_ListErrorMapsStatus(t *testing.T) {
	bucket := newFakeBucket()
	bucket.listErr = &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusForbidden}},
			Err:      errors.New("AccessDenied"),
		},
	}
	c := newTestS3(t, bucket, 2)

	_, err := c.FetchPage(context.Background(), 0)
	te, ok := IsTransferError(err)
	require.True(t, ok)
	assert.Equal(t, KindStatus, te.Kind)
	assert.Equal(t, http.StatusForbidden, te.Status)
}

func TestS3_UploadStoresContentType(t *testing.T) {
	bucket := newFakeBucket()
	c := newTestS3(t, bucket, 2)

	_, err := c.Upload(context.Background(), &UploadRequest{Label: "sniffed", Data: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")})
	require.NoError(t, err)

	for key, ct := range bucket.ctypes {
		assert.Equal(t, "image/png", ct)
		assert.True(t, strings.HasSuffix(key, "/sniffed.png"), key)
	}
}

func TestBuildParseKey(t *testing.T) {
	id := newKeyID(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	labels := []string{"", "sunset", "a/b c", "my.photo", "日本"}

	for _, label := range labels {
		key := buildKey("feed/", id, label, ".png")
		gotID, gotLabel, ok := parseKey("feed/", key)
		require.True(t, ok, key)
		assert.Equal(t, id, gotID)
		assert.Equal(t, label, gotLabel)
	}
}

func TestNewKeyID_SortsNewestFirst(t *testing.T) {
	older := newKeyID(time.Unix(100, 0))
	newer := newKeyID(time.Unix(200, 0))
	assert.Less(t, newer, older)
	assert.Len(t, strings.SplitN(newer, "-", 2)[0], stampWidth)
}

func TestNewS3Client_RequiresBucket(t *testing.T) {
	_, err := NewS3Client(context.Background(), S3Options{PageSize: 2})
	assert.Error(t, err)
}

func TestS3_Host(t *testing.T) {
	c, err := newS3Client(newFakeBucket(), fakePresigner{}, S3Options{Bucket: "b", PageSize: 1, Endpoint: "http://minio.lan:9000"})
	require.NoError(t, err)
	assert.Equal(t, "minio.lan", c.Host())
}
