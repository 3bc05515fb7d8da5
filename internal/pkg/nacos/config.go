package nacos

import (
	"fmt"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
)

// ConfigCenter 封装了 Nacos 配置中心客户端，用于拉取并监听服务配置。
type ConfigCenter struct {
	client    config_client.IConfigClient
	dataID    string
	groupName string
}

func NewConfigCenter(serverConfigs []constant.ServerConfig, clientConfig *constant.ClientConfig, dataID, groupName string) (*ConfigCenter, error) {
	if dataID == "" {
		return nil, fmt.Errorf("nacos config data id is empty")
	}
	if groupName == "" {
		groupName = defaultGroup
	}
	client, err := clients.NewConfigClient(vo.NacosClientParam{
		ClientConfig:  clientConfig,
		ServerConfigs: serverConfigs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create nacos config client: %w", err)
	}
	return &ConfigCenter{client: client, dataID: dataID, groupName: groupName}, nil
}

// Fetch 拉取当前的配置内容。
func (c *ConfigCenter) Fetch() (string, error) {
	content, err := c.client.GetConfig(vo.ConfigParam{DataId: c.dataID, Group: c.groupName})
	if err != nil {
		return "", fmt.Errorf("failed to get config %s/%s from nacos: %w", c.groupName, c.dataID, err)
	}
	return content, nil
}

// Watch 在配置变更时回调 onChange。
func (c *ConfigCenter) Watch(onChange func(content string)) error {
	return c.client.ListenConfig(vo.ConfigParam{
		DataId: c.dataID,
		Group:  c.groupName,
		OnChange: func(namespace, group, dataId, data string) {
			onChange(data)
		},
	})
}

func (c *ConfigCenter) Close() {
	c.client.CloseClient()
}
