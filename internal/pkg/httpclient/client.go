// internal/pkg/httpclient/client.go

package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Resolver 根据服务名找到一个健康实例，由 nacos.Client 实现。
type Resolver interface {
	DiscoverServiceInstance(serviceName string) (string, int, error)
}

// StatusError 表示下游返回了非 2xx 状态码。
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("service %s returned status %d", e.URL, e.Code)
}

// Client 是一个可追踪的、可注入的HTTP客户端
type Client struct {
	Tracer     trace.Tracer
	HTTPClient *http.Client
	resolver   Resolver
}

// NewClient 创建一个新的客户端实例。resolver 可以为 nil，此时只能调用绝对地址。
func NewClient(tracer trace.Tracer, resolver Resolver) *Client {
	// 不设置 Timeout 字段，让请求完全受控于传入的 context
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
	}
	return &Client{
		Tracer:     tracer,
		HTTPClient: httpClient,
		resolver:   resolver,
	}
}

// ServiceURL 通过服务发现拼出下游地址。
func (c *Client) ServiceURL(serviceName, path string) (string, error) {
	if c.resolver == nil {
		return "", fmt.Errorf("no resolver configured to discover service %q", serviceName)
	}
	host, port, err := c.resolver.DiscoverServiceInstance(serviceName)
	if err != nil {
		return "", err
	}
	return "http://" + host + ":" + strconv.Itoa(port) + path, nil
}

// GetJSON 发起一个带链路传播的 GET 请求，并把响应体解码到 out。
func (c *Client) GetJSON(ctx context.Context, serviceURL string, params url.Values, out interface{}) error {
	parsedURL, err := url.Parse(serviceURL)
	if err != nil {
		return err
	}
	spanName := fmt.Sprintf("call-%s", strings.Split(parsedURL.Host, ":")[0])

	ctx, span := c.Tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if len(params) > 0 {
		q := parsedURL.Query()
		for key, values := range params {
			for _, value := range values {
				q.Add(key, value)
			}
		}
		parsedURL.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsedURL.String(), nil)
	if err != nil {
		span.RecordError(err)
		return err
	}
	req.Header.Set("Accept", "application/json")

	span.SetAttributes(
		attribute.String("http.url", parsedURL.String()),
		attribute.String("http.method", http.MethodGet),
	)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := &StatusError{URL: serviceURL, Code: resp.StatusCode}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		span.RecordError(err)
		return fmt.Errorf("decode response from %s: %w", serviceURL, err)
	}
	return nil
}
