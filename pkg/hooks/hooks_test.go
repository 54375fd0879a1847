package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/pillbox/pkg/codec"
)

func recorderHandler(calls *[]string, label string) Handler {
	return func(_ context.Context, e *Event) (*Response, error) {
		*calls = append(*calls, label+":"+e.Name)
		return nil, nil
	}
}

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	var calls []string
	require.NoError(t, r.Register("before-call", recorderHandler(&calls, "a"), "id-a"))
	require.NoError(t, r.Register("before-call", recorderHandler(&calls, "a2"), "id-a"))
	assert.Equal(t, []string{"id-a"}, r.IDs("before-call"))
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Unregister("before-call", "id-a"))
	assert.False(t, r.Unregister("before-call", "id-a"))
	assert.Empty(t, r.Events())
}

func TestRegistryRejectsBadInput(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register("", recorderHandler(new([]string), "x"), "x"))
	assert.Error(t, r.Register("before-call", nil, "x"))
	assert.Error(t, r.Register("before-call.[ec2", recorderHandler(new([]string), "x"), "x"))
}

func TestRegistryHierarchy(t *testing.T) {
	r := NewRegistry()
	var calls []string
	require.NoError(t, r.Register("after-call.ec2.DescribeAddresses", recorderHandler(&calls, "exact"), "1"))
	require.NoError(t, r.Register("after-call.ec2", recorderHandler(&calls, "service"), "2"))
	require.NoError(t, r.Register("after-call", recorderHandler(&calls, "all"), "3"))
	require.NoError(t, r.Register("after-call.*.Describe*", recorderHandler(&calls, "glob"), "4"))
	require.NoError(t, r.Register("after-call.s3", recorderHandler(&calls, "other"), "5"))
	require.NoError(t, r.Register("before-call", recorderHandler(&calls, "before"), "6"))

	_, err := r.Emit(context.Background(), &Event{Name: "after-call.ec2.DescribeAddresses"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"all:after-call.ec2.DescribeAddresses",
		"service:after-call.ec2.DescribeAddresses",
		"exact:after-call.ec2.DescribeAddresses",
		"glob:after-call.ec2.DescribeAddresses",
	}, calls)
}

func TestEmitStopsAtFirstResponseOrError(t *testing.T) {
	r := NewRegistry()
	var calls []string
	require.NoError(t, r.Register("before-call", func(context.Context, *Event) (*Response, error) {
		return &Response{StatusCode: 201}, nil
	}, "stub"))
	require.NoError(t, r.Register("before-call.ec2", recorderHandler(&calls, "late"), "late"))

	resp, err := r.Emit(context.Background(), &Event{Name: "before-call.ec2.X"})
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	assert.Empty(t, calls)

	boom := errors.New("boom")
	r2 := NewRegistry()
	require.NoError(t, r2.Register("before-call", func(context.Context, *Event) (*Response, error) { return nil, boom }, "err"))
	_, err = r2.Emit(context.Background(), &Event{Name: "before-call.ec2.X"})
	assert.ErrorIs(t, err, boom)
}

func TestSessionClients(t *testing.T) {
	s := NewSession(WithRegion("us-west-2"))
	var calls []string
	require.NoError(t, s.Registry().Register("before-call", recorderHandler(&calls, "session"), "s"))

	var created []*Client
	cancel := s.OnClientCreated(func(c *Client) { created = append(created, c) })

	ec2 := s.NewClient("ec2", nil)
	iam := s.NewClient("iam", nil, WithClientRegion("us-east-1"))
	cancel()
	s.NewClient("s3", nil)

	require.Len(t, created, 2)
	assert.Same(t, ec2, created[0])
	assert.Same(t, iam, created[1])
	assert.Equal(t, "us-east-1", iam.Region())

	// Clients inherit session handlers but have their own registry.
	assert.Equal(t, []string{"s"}, ec2.Registry().IDs("before-call"))
	require.NoError(t, ec2.Registry().Register("after-call", recorderHandler(&calls, "ec2"), "c"))
	assert.Empty(t, s.Registry().IDs("after-call"))
	assert.Empty(t, iam.Registry().IDs("after-call"))
}

func TestClientCall(t *testing.T) {
	ctx := context.Background()
	s := NewSession(WithRegion("us-west-2"))

	var backendParams codec.Value
	backend := func(_ context.Context, op string, params codec.Value) (*Response, error) {
		backendParams = params
		return &Response{StatusCode: 200, Parsed: codec.Mapping{"Op": codec.String(op)}}, nil
	}
	c := s.NewClient("ec2", backend)

	var stashed any
	require.NoError(t, c.Registry().Register("before-call.ec2", func(_ context.Context, e *Event) (*Response, error) {
		e.Context["token"] = "abc"
		assert.Equal(t, codec.String("us-west-2"), e.Params.(codec.Mapping)["context"].(codec.Mapping)["client_region"])
		return nil, nil
	}, "stash"))
	require.NoError(t, c.Registry().Register("after-call.ec2", func(_ context.Context, e *Event) (*Response, error) {
		stashed = e.Context["token"]
		assert.Equal(t, 200, e.Response.StatusCode)
		return nil, nil
	}, "read"))

	resp, err := c.Call(ctx, "DescribeAddresses", codec.Mapping{"body": codec.Mapping{}})
	require.NoError(t, err)
	assert.Equal(t, codec.Mapping{"Op": codec.String("DescribeAddresses")}, resp.Parsed)
	assert.Equal(t, "abc", stashed)
	assert.Contains(t, backendParams.(codec.Mapping), "body")
}

func TestClientCallShortCircuit(t *testing.T) {
	s := NewSession()
	c := s.NewClient("ec2", func(context.Context, string, codec.Value) (*Response, error) {
		t.Fatal("backend must not run")
		return nil, nil
	})
	require.NoError(t, c.Registry().Register("before-call", func(context.Context, *Event) (*Response, error) {
		return &Response{StatusCode: 200, Parsed: codec.String("canned")}, nil
	}, "stub"))

	var afterSaw *Response
	require.NoError(t, c.Registry().Register("after-call", func(_ context.Context, e *Event) (*Response, error) {
		afterSaw = e.Response
		return nil, nil
	}, "after"))

	resp, err := c.Call(context.Background(), "DescribeAddresses", nil)
	require.NoError(t, err)
	assert.Equal(t, codec.String("canned"), resp.Parsed)
	assert.Same(t, resp, afterSaw)
}

func TestClientCallErrors(t *testing.T) {
	s := NewSession()
	_, err := s.NewClient("ec2", nil).Call(context.Background(), "X", nil)
	assert.ErrorIs(t, err, ErrNoBackend)

	boom := errors.New("backend down")
	c := s.NewClient("ec2", func(context.Context, string, codec.Value) (*Response, error) { return nil, boom })
	_, err = c.Call(context.Background(), "X", nil)
	assert.ErrorIs(t, err, boom)
}

func TestInvokeAsUsesCallService(t *testing.T) {
	s := NewSession(WithRegion("us-east-1"))
	c := s.NewClient("aws", nil)

	var seen []string
	var region codec.Value
	require.NoError(t, c.Registry().Register("before-call.s3.ListBuckets", func(_ context.Context, e *Event) (*Response, error) {
		seen = append(seen, e.Name)
		region = e.Params.(codec.Mapping)[ParamContext].(codec.Mapping)[ParamClientRegion]
		return nil, nil
	}, "s3"))
	require.NoError(t, c.Registry().Register("before-call.aws", func(_ context.Context, e *Event) (*Response, error) {
		seen = append(seen, e.Name)
		return nil, nil
	}, "aws"))

	params := codec.Mapping{ParamContext: codec.Mapping{ParamClientRegion: codec.String("eu-west-1")}}
	_, err := c.InvokeAs(context.Background(), "s3", "ListBuckets", params, func(context.Context) (*Response, error) {
		return &Response{StatusCode: 200}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"before-call.s3.ListBuckets"}, seen)
	assert.Equal(t, codec.String("eu-west-1"), region, "a region already in params is kept")
}
