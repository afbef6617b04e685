package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"whosehouse/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client 托管后端的RPC客户端
// 所有领域操作都经由这里：类型化调用、错误分类、幂等读的退避重试
type Client struct {
	http   *resty.Client
	logger *zap.Logger

	retryCount      int
	retryBaseDelay  time.Duration
	retryMultiplier float64
}

// rpcFailure 后端错误载荷
type rpcFailure struct {
	Error string `json:"error"`
}

// New 创建后端客户端
// 重试自行控制（逐调用区分幂等与否），不使用resty内建重试
func New(cfg *config.BackendConfig, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("apikey", cfg.APIKey)

	retryMultiplier := cfg.RetryMultiplier
	if retryMultiplier <= 1 {
		retryMultiplier = 2.0
	}

	return &Client{
		http:            httpClient,
		logger:          logger,
		retryCount:      cfg.RetryCount,
		retryBaseDelay:  cfg.RetryBaseDelay,
		retryMultiplier: retryMultiplier,
	}
}

// SetSessionToken 设置已登录用户的会话凭证
func (c *Client) SetSessionToken(token string) {
	c.http.SetAuthToken(token)
}

// Call 执行一次非幂等RPC（fire-once）
// 有副作用的调用失败后原样返回，绝不盲目重试：
// 重试非幂等写可能产生重复副作用（重复消息、Token二次消费误报）
func (c *Client) Call(ctx context.Context, name string, params any, out any) error {
	if e := c.do(ctx, "POST", "/rpc/"+name, params, out); e != nil {
		return e
	}
	return nil
}

// CallIdempotent 执行服务端幂等的RPC，带指数退避重试
func (c *Client) CallIdempotent(ctx context.Context, name string, params any, out any) error {
	return c.withRetry(ctx, name, func() *Error {
		return c.do(ctx, "POST", "/rpc/"+name, params, out)
	})
}

// Get 执行只读查询（天然幂等，带退避重试）
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.withRetry(ctx, path, func() *Error {
		return c.do(ctx, "GET", path, nil, out)
	})
}

// withRetry 指数退避：delay = base × multiplier^attempt
// 只对瞬时失败（传输错误、后端5xx）重试；4xx类失败立即返回
func (c *Client) withRetry(ctx context.Context, op string, fn func() *Error) error {
	var lastErr *Error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.retryBaseDelay) * math.Pow(c.retryMultiplier, float64(attempt-1)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return wrapError(CodeNetworkError, "request cancelled", ctx.Err())
			}
			c.logger.Debug("Retrying backend call",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr.Code) {
			return lastErr
		}
	}
	c.logger.Warn("Backend call failed after retries",
		zap.String("operation", op),
		zap.Int("attempts", c.retryCount+1),
		zap.String("code", string(lastErr.Code)),
	)
	return lastErr
}

func retryable(code Code) bool {
	return code == CodeNetworkError || code == CodeDatabaseError
}

func (c *Client) do(ctx context.Context, method, path string, params any, out any) *Error {
	req := c.http.R().SetContext(ctx)
	if params != nil {
		req.SetBody(params)
	}

	var resp *resty.Response
	var err error
	switch method {
	case "GET":
		resp, err = req.Get(path)
	default:
		resp, err = req.Post(path)
	}
	if err != nil {
		return wrapError(CodeNetworkError, "backend unreachable", err)
	}

	if resp.IsSuccess() {
		if out == nil || len(resp.Body()) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return wrapError(CodeUnknownError, "malformed backend response", err)
		}
		return nil
	}

	var failure rpcFailure
	_ = json.Unmarshal(resp.Body(), &failure)
	if failure.Error == "" {
		failure.Error = fmt.Sprintf("backend returned status %d", resp.StatusCode())
	}

	code := classifyStatus(resp.StatusCode())
	c.logger.Debug("Backend call failed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode()),
		zap.String("code", string(code)),
	)
	return NewError(code, failure.Error)
}

func classifyStatus(status int) Code {
	switch {
	case status == 401 || status == 403:
		return CodeUnauthorized
	case status == 429:
		return CodeRateLimited
	case status >= 500:
		return CodeDatabaseError
	default:
		return CodeUnknownError
	}
}
