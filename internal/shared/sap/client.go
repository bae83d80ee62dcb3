package sap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// Client — SAP S/4HANA OData基础客户端
// 提供游标分页全量拉取，供purchreq、物料、供应商同步共用
// =============================================================================

// Config SAP连接配置
type Config struct {
	BaseURL    string        // OData服务根地址
	Username   string        // Basic认证用户
	Password   string        // Basic认证密码
	BatchSize  int           // 单次请求记录数，默认1000
	MaxRetries int           // 单批次最大尝试次数，默认3
	RetryDelay time.Duration // 重试间隔，默认2s
	Timeout    time.Duration // 单请求超时，默认30s
}

// Client SAP OData客户端
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient 创建SAP客户端实例
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// envelope OData响应信封，同时覆盖v2（d.results）和v4（value）两种形态
type envelope struct {
	D *struct {
		Results []json.RawMessage `json:"results"`
	} `json:"d"`
	Value []json.RawMessage `json:"value"`
}

// records 按已知形态取出批次记录，两者都不存在时返回空序列
func (e *envelope) records() []json.RawMessage {
	if e.D != nil && e.D.Results != nil {
		return e.D.Results
	}
	if e.Value != nil {
		return e.Value
	}
	return []json.RawMessage{}
}

// FetchAll 游标分页拉取资源的全量记录
// skip游标从0开始，批次不满BatchSize即为最后一页；请求失败在同一skip
// 上重试（固定间隔），成功后重试计数归零。超过MaxRetries整体失败，
// 调用方不得将半拉取结果落库。
func (c *Client) FetchAll(ctx context.Context, resource string) ([]json.RawMessage, error) {
	var all []json.RawMessage
	skip := 0
	retryCount := 0

	for {
		batch, err := c.fetchBatch(ctx, resource, skip)
		if err != nil {
			retryCount++
			c.logger.Warn("SAP批次拉取失败",
				zap.String("resource", resource),
				zap.Int("skip", skip),
				zap.Int("attempt", retryCount),
				zap.Error(err),
			)
			if retryCount >= c.cfg.MaxRetries {
				return nil, fmt.Errorf("拉取%s失败，%d次尝试后放弃: %w", resource, c.cfg.MaxRetries, err)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.RetryDelay):
			}
			continue
		}

		retryCount = 0
		all = append(all, batch...)

		c.logger.Debug("SAP批次拉取成功",
			zap.String("resource", resource),
			zap.Int("skip", skip),
			zap.Int("batch", len(batch)),
			zap.Int("total", len(all)),
		)

		if len(batch) < c.cfg.BatchSize {
			return all, nil
		}
		skip += c.cfg.BatchSize
	}
}

// fetchBatch 拉取单个批次
func (c *Client) fetchBatch(ctx context.Context, resource string, skip int) ([]json.RawMessage, error) {
	url := fmt.Sprintf("%s/%s?$format=json&$top=%d&$skip=%d",
		c.cfg.BaseURL, resource, c.cfg.BatchSize, skip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建SAP请求失败: %w", err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("SAP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取SAP响应失败: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("SAP返回非预期状态码%d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("解析SAP响应信封失败: %w", err)
	}

	return env.records(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
