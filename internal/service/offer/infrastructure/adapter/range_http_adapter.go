package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"merchdash/internal/pkg/httpclient"
	"merchdash/internal/service/offer/domain"
)

const (
	rangesPath = "/dashboard/ranges/"
)

// RangeHTTPAdapter 实现了 domain.RangeFinder，从远端目录服务读取商品范围。
// 目录服务地址可以固定配置，也可以通过 Nacos 按服务名发现。
type RangeHTTPAdapter struct {
	client      *httpclient.Client
	baseURL     string
	serviceName string
	timeout     time.Duration

	// 同一时刻对同一个 Range 的并发查询只会真正发出一次请求
	group singleflight.Group
}

func NewRangeHTTPAdapter(client *httpclient.Client, baseURL, serviceName string, timeout time.Duration) *RangeHTTPAdapter {
	return &RangeHTTPAdapter{
		client:      client,
		baseURL:     strings.TrimRight(baseURL, "/"),
		serviceName: serviceName,
		timeout:     timeout,
	}
}

func (a *RangeHTTPAdapter) url(path string) (string, error) {
	if a.baseURL != "" {
		return a.baseURL + path, nil
	}
	return a.client.ServiceURL(a.serviceName, path)
}

func (a *RangeHTTPAdapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

func (a *RangeHTTPAdapter) FindByID(ctx context.Context, id int64) (*domain.Range, error) {
	key := strconv.FormatInt(id, 10)
	v, err, _ := a.group.Do(key, func() (interface{}, error) {
		target, err := a.url(fmt.Sprintf("%s%d/", rangesPath, id))
		if err != nil {
			return nil, err
		}
		// 同一 key 的调用方共享这次请求，不能因为第一个调用方断开而让其余调用方一起失败
		ctx, cancel := a.withTimeout(context.WithoutCancel(ctx))
		defer cancel()

		var rng domain.Range
		if err := a.client.GetJSON(ctx, target, nil, &rng); err != nil {
			var statusErr *httpclient.StatusError
			if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
				return nil, domain.ErrRangeNotFound
			}
			return nil, errors.Wrapf(err, "fetch range %d from catalog", id)
		}
		return &rng, nil
	})
	if err != nil {
		return nil, err
	}
	// 复制一份，避免共享同一个指针的调用方互相影响
	rng := *v.(*domain.Range)
	return &rng, nil
}

func (a *RangeHTTPAdapter) List(ctx context.Context) ([]*domain.Range, error) {
	target, err := a.url(rangesPath)
	if err != nil {
		return nil, err
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	var ranges []*domain.Range
	if err := a.client.GetJSON(ctx, target, nil, &ranges); err != nil {
		return nil, errors.Wrap(err, "list ranges from catalog")
	}
	return ranges, nil
}
