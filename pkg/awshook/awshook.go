package awshook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/getmockd/pillbox/pkg/codec"
	"github.com/getmockd/pillbox/pkg/hooks"
)

// MiddlewareID identifies the capture middleware in the initialize step.
const MiddlewareID = "pillbox.Capture"

// Keys of the params emitted for every SDK call and of the data stored for
// API errors.
const (
	ParamBody    = "body"
	KeyError     = "Error"
	KeyErrorCode = "Code"
	KeyErrorMsg  = "Message"
)

// Session hands out aws.Config copies whose operations go through the
// embedded hooks session.
type Session struct {
	*hooks.Session
	base aws.Config
}

// NewSession wraps cfg. The hooks session region defaults to cfg.Region.
func NewSession(cfg aws.Config) *Session {
	return &Session{
		Session: hooks.NewSession(hooks.WithRegion(cfg.Region)),
		base:    cfg,
	}
}

// Config returns a copy of the wrapped config bound to a new hooks client.
// Each call counts as a client creation for session observers, so build
// SDK clients from the returned config after attaching a controller.
func (s *Session) Config() aws.Config {
	client := s.NewClient("aws", nil, hooks.WithClientRegion(s.base.Region))
	cfg := s.base.Copy()
	cfg.APIOptions = append(append([]func(*middleware.Stack) error{}, s.base.APIOptions...), AddMiddleware(client))
	return cfg
}

// AddMiddleware returns an API option installing the capture middleware
// for client.
func AddMiddleware(client *hooks.Client) func(*middleware.Stack) error {
	return func(stack *middleware.Stack) error {
		return stack.Initialize.Add(Middleware(client), middleware.After)
	}
}

// ServiceName turns an SDK service id ("EC2", "Elastic Load Balancing v2")
// into the lowercased name used in event names and fixture keys.
func ServiceName(serviceID string) string {
	return strings.ToLower(strings.ReplaceAll(serviceID, " ", ""))
}

// Middleware emits hook events around the rest of the operation stack. A
// before-call handler that returns a response short-circuits the stack and
// its data is decoded into the operation's typed output.
func Middleware(client *hooks.Client) middleware.InitializeMiddleware {
	return middleware.InitializeMiddlewareFunc(MiddlewareID, func(
		ctx context.Context, in middleware.InitializeInput, next middleware.InitializeHandler,
	) (middleware.InitializeOutput, middleware.Metadata, error) {
		service := ServiceName(awsmiddleware.GetServiceID(ctx))
		operation := awsmiddleware.GetOperationName(ctx)

		body, err := codec.FromGo(in.Parameters)
		if err != nil {
			return middleware.InitializeOutput{}, middleware.Metadata{}, fmt.Errorf("capture %s.%s input: %w", service, operation, err)
		}
		params := codec.Mapping{ParamBody: body}
		if region := awsmiddleware.GetRegion(ctx); region != "" {
			params[hooks.ParamContext] = codec.Mapping{hooks.ParamClientRegion: codec.String(region)}
		}

		var (
			out     middleware.InitializeOutput
			md      middleware.Metadata
			called  bool
			callErr error
		)
		resp, err := client.InvokeAs(ctx, service, operation, params, func(ctx context.Context) (*hooks.Response, error) {
			called = true
			var err error
			out, md, err = next.HandleInitialize(ctx, in)
			if err != nil {
				var apiErr smithy.APIError
				if !errors.As(err, &apiErr) {
					return nil, err
				}
				// API errors are responses too; record them and hand the
				// original error back afterwards.
				callErr = err
				return &hooks.Response{StatusCode: errorStatus(err), Parsed: errorData(apiErr)}, nil
			}
			parsed, err := codec.Capture(&out.Result)
			if err != nil {
				return nil, fmt.Errorf("capture %s.%s output: %w", service, operation, err)
			}
			return &hooks.Response{StatusCode: statusCode(md), Parsed: parsed}, nil
		})
		if err != nil {
			return out, md, err
		}
		if called {
			return out, md, callErr
		}
		return replay(in.Parameters, resp)
	})
}

func replay(input any, resp *hooks.Response) (middleware.InitializeOutput, middleware.Metadata, error) {
	if resp.StatusCode >= http.StatusBadRequest {
		return middleware.InitializeOutput{}, middleware.Metadata{}, apiError(resp.Parsed)
	}
	t, err := outputFor(input)
	if err != nil {
		return middleware.InitializeOutput{}, middleware.Metadata{}, err
	}
	result := reflect.New(t)
	if err := codec.Into(resp.Parsed, result.Interface()); err != nil {
		return middleware.InitializeOutput{}, middleware.Metadata{}, fmt.Errorf("decode %s: %w", t.Name(), err)
	}
	return middleware.InitializeOutput{Result: result.Interface()}, middleware.Metadata{}, nil
}

func statusCode(md middleware.Metadata) int {
	if raw, ok := awsmiddleware.GetRawResponse(md).(*smithyhttp.Response); ok && raw != nil && raw.Response != nil {
		return raw.StatusCode
	}
	return http.StatusOK
}

func errorStatus(err error) int {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return http.StatusBadRequest
}

func errorData(apiErr smithy.APIError) codec.Mapping {
	return codec.Mapping{KeyError: codec.Mapping{
		KeyErrorCode: codec.String(apiErr.ErrorCode()),
		KeyErrorMsg:  codec.String(apiErr.ErrorMessage()),
	}}
}

func apiError(data codec.Value) error {
	e := &smithy.GenericAPIError{Code: "Unknown"}
	m, _ := data.(codec.Mapping)
	if fields, ok := m[KeyError].(codec.Mapping); ok {
		if code, ok := fields[KeyErrorCode].(codec.String); ok && code != "" {
			e.Code = string(code)
		}
		if msg, ok := fields[KeyErrorMsg].(codec.String); ok {
			e.Message = string(msg)
		}
	}
	return e
}
