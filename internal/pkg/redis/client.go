// internal/pkg/redis/client.go
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client 封装了 go-redis 的 UniversalClient。
// 单个地址时是普通客户端，多个地址时自动切换为集群客户端。
type Client struct {
	client redis.UniversalClient
}

// NewClient 根据逗号分隔的地址列表创建客户端并做一次连通性检查。
func NewClient(addrs string) (*Client, error) {
	var list []string
	for _, addr := range strings.Split(addrs, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			list = append(list, addr)
		}
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("redis: no address configured")
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        list,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s failed: %w", addrs, err)
	}
	return Wrap(rdb), nil
}

// Wrap 包装一个已存在的客户端（测试中用于接入 miniredis）。
func Wrap(rdb redis.UniversalClient) *Client {
	return &Client{client: rdb}
}

// GetClient 暴露底层客户端，供各个适配器直接使用原生命令。
func (c *Client) GetClient() redis.UniversalClient {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}
