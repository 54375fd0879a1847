package awshook_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/aws/smithy-go/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/pillbox/pkg/awshook"
	"github.com/getmockd/pillbox/pkg/codec"
	"github.com/getmockd/pillbox/pkg/fixture"
	"github.com/getmockd/pillbox/pkg/recorder"
)

func init() {
	awshook.RegisterOutputs(&s3.ListBucketsOutput{}, &s3.GetObjectOutput{})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

const listBucketsXML = `<?xml version="1.0" encoding="UTF-8"?>
<ListAllMyBucketsResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Owner><ID>owner-id</ID><DisplayName>tester</DisplayName></Owner><Buckets><Bucket><Name>fixtures</Name><CreationDate>2019-12-11T23:32:47.000Z</CreationDate></Bucket></Buckets></ListAllMyBucketsResult>`

const noSuchKeyXML = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>missing.txt</Key><RequestId>req-1</RequestId></Error>`

func response(r *http.Request, status int, contentType, body string) *http.Response {
	return &http.Response{
		StatusCode:    status,
		Status:        http.StatusText(status),
		Header:        http.Header{"Content-Type": {contentType}},
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       r,
	}
}

// fakeS3 answers ListBuckets and GetObject for fixtures/greeting.txt.
func fakeS3(calls *int) http.RoundTripper {
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		*calls++
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/":
			return response(r, http.StatusOK, "application/xml", listBucketsXML), nil
		case r.Method == http.MethodGet && r.URL.Path == "/fixtures/greeting.txt":
			return response(r, http.StatusOK, "text/plain", "hello world"), nil
		default:
			return response(r, http.StatusNotFound, "application/xml", noSuchKeyXML), nil
		}
	})
}

// offline fails the test if the SDK ever reaches the network.
func offline(t *testing.T) http.RoundTripper {
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL)
		return nil, errors.New("offline")
	})
}

func testConfig(rt http.RoundTripper) aws.Config {
	return aws.Config{
		Region:      "us-west-2",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
		HTTPClient:  &http.Client{Transport: rt},
	}
}

func newS3(cfg aws.Config) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String("http://s3.test")
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		o.RetryMaxAttempts = 1
	})
}

func getObject(ctx context.Context, client *s3.Client, key string) (string, error) {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String("fixtures"), Key: aws.String(key)})
	if err != nil {
		return "", err
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	return string(data), err
}

func TestServiceName(t *testing.T) {
	tests := map[string]string{
		"S3":                        "s3",
		"EC2":                       "ec2",
		"Elastic Load Balancing v2": "elasticloadbalancingv2",
		"":                          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, awshook.ServiceName(in), in)
	}
}

func TestRecordThenPlayback(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	// Record against the fake endpoint.
	var calls int
	sess := awshook.NewSession(testConfig(fakeS3(&calls)))
	rec, err := recorder.New(dir)
	require.NoError(t, err)
	require.NoError(t, rec.Attach(sess))
	require.NoError(t, rec.Record("s3", ""))
	client := newS3(sess.Config())

	buckets, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
	require.NoError(t, err)
	require.Len(t, buckets.Buckets, 1)
	assert.Equal(t, "fixtures", aws.ToString(buckets.Buckets[0].Name))

	body, err := getObject(ctx, client, "greeting.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", body, "recording must leave the body readable")

	_, err = getObject(ctx, client, "missing.txt")
	var apiErr smithy.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NoSuchKey", apiErr.ErrorCode())

	rec.Close()
	assert.Equal(t, 3, calls)

	entries, err := rec.Store().List(ctx)
	require.NoError(t, err)
	counts := map[string]int{}
	for _, e := range entries {
		counts[e.Identity.String()]++
	}
	assert.Equal(t, map[string]int{"s3.ListBuckets": 1, "s3.GetObject": 2}, counts)

	missing, err := rec.Store().Load(ctx, rec.Store().Key(fixture.Identity{Service: "s3", Operation: "GetObject"}, 2))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	assert.Equal(t, codec.String("NoSuchKey"), missing.Data.(codec.Mapping)["Error"].(codec.Mapping)["Code"])

	// Replay with no network at all.
	sess = awshook.NewSession(testConfig(offline(t)))
	play, err := recorder.New(dir)
	require.NoError(t, err)
	t.Cleanup(play.Close)
	require.NoError(t, play.Attach(sess))
	require.NoError(t, play.Playback())
	client = newS3(sess.Config())

	buckets, err = client.ListBuckets(ctx, &s3.ListBucketsInput{})
	require.NoError(t, err)
	require.Len(t, buckets.Buckets, 1)
	assert.Equal(t, "fixtures", aws.ToString(buckets.Buckets[0].Name))
	assert.Equal(t, "tester", aws.ToString(buckets.Owner.DisplayName))
	require.NotNil(t, buckets.Buckets[0].CreationDate)
	assert.True(t, time.Date(2019, 12, 11, 23, 32, 47, 0, time.UTC).Equal(*buckets.Buckets[0].CreationDate))

	body, err = getObject(ctx, client, "greeting.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", body)

	_, err = getObject(ctx, client, "missing.txt")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NoSuchKey", apiErr.ErrorCode())
	assert.Equal(t, "The specified key does not exist.", apiErr.ErrorMessage())

	// The cursor wraps around.
	body, err = getObject(ctx, client, "greeting.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", body)
}

func TestPlaybackCannedResponse(t *testing.T) {
	ctx := context.Background()
	sess := awshook.NewSession(testConfig(offline(t)))
	ctl, err := recorder.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(ctl.Close)

	_, err = ctl.SaveResponse(ctx, "s3", "ListBuckets", codec.Mapping{
		"Buckets": codec.Sequence{codec.Mapping{"Name": codec.String("canned")}},
	})
	require.NoError(t, err)
	require.NoError(t, ctl.Attach(sess))
	require.NoError(t, ctl.Playback())

	out, err := newS3(sess.Config()).ListBuckets(ctx, &s3.ListBucketsInput{})
	require.NoError(t, err)
	require.Len(t, out.Buckets, 1)
	assert.Equal(t, "canned", aws.ToString(out.Buckets[0].Name))
}

func TestPlaybackErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing fixture", func(t *testing.T) {
		sess := awshook.NewSession(testConfig(offline(t)))
		ctl, err := recorder.New(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(ctl.Close)
		require.NoError(t, ctl.Attach(sess))
		require.NoError(t, ctl.Playback())

		_, err = newS3(sess.Config()).ListBuckets(ctx, &s3.ListBucketsInput{})
		assert.ErrorIs(t, err, fixture.ErrNotFound)
	})

	t.Run("unregistered output", func(t *testing.T) {
		sess := awshook.NewSession(testConfig(offline(t)))
		ctl, err := recorder.New(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(ctl.Close)
		_, err = ctl.SaveResponse(ctx, "s3", "HeadBucket", codec.Mapping{})
		require.NoError(t, err)
		require.NoError(t, ctl.Attach(sess))
		require.NoError(t, ctl.Playback())

		_, err = newS3(sess.Config()).HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String("fixtures")})
		assert.ErrorIs(t, err, awshook.ErrOutputNotRegistered)
	})
}

func TestConfigDoesNotAliasAPIOptions(t *testing.T) {
	base := testConfig(offline(t))
	base.APIOptions = make([]func(*middleware.Stack) error, 0, 4)
	sess := awshook.NewSession(base)

	a := sess.Config()
	b := sess.Config()
	require.Len(t, a.APIOptions, 1)
	require.Len(t, b.APIOptions, 1)
	assert.Empty(t, base.APIOptions)
}
