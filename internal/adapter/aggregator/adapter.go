package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"BetSync/internal/config"
	"BetSync/internal/interfaces"
	"BetSync/internal/model"
	"BetSync/internal/settlement"
	"BetSync/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

// retryBackoff 第 n 次重试前的等待时间
var retryBackoff = func(attempt int) time.Duration {
	return time.Duration(attempt) * 500 * time.Millisecond
}

type Adapter struct {
	cfg        *config.AggregatorConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewAggregatorAdapter(cfg *config.AggregatorConfig, logger *logrus.Logger) interfaces.AggregatorAdapter {
	return &Adapter{
		cfg:        cfg,
		httpClient: httpclient.NewHTTPClient(cfg, logger),
		logger:     logger,
	}
}

// GetName 数据来源标识，落库为 bet_source
func (a *Adapter) GetName() string {
	if a.cfg.Name == "" {
		return "aggregator"
	}
	return a.cfg.Name
}

// FetchSlips 拉取用户在聚合方的全部注单；网络错误、5xx、429 按 retry_count 重试，
// 最终失败统一返回 *settlement.UpstreamFetchError
func (a *Adapter) FetchSlips(ctx context.Context, aggregatorUserID string) ([]*model.AggregatorSlip, error) {
	if strings.TrimSpace(aggregatorUserID) == "" {
		return nil, &settlement.UpstreamFetchError{AggregatorUserID: aggregatorUserID, Err: fmt.Errorf("聚合方用户ID为空")}
	}
	endpoint := fmt.Sprintf("%s/bettors/%s/betSlips", strings.TrimRight(a.cfg.BaseURL, "/"), url.PathEscape(aggregatorUserID))

	var lastErr *settlement.UpstreamFetchError
	for attempt := 0; attempt <= a.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &settlement.UpstreamFetchError{AggregatorUserID: aggregatorUserID, Err: ctx.Err()}
			case <-time.After(retryBackoff(attempt)):
			}
		}

		slips, status, err := a.fetchOnce(ctx, endpoint)
		if err == nil {
			a.logger.WithFields(logrus.Fields{
				"aggregator_user_id": aggregatorUserID,
				"slips":              len(slips),
			}).Info("成功获取聚合方注单")
			return slips, nil
		}
		lastErr = &settlement.UpstreamFetchError{AggregatorUserID: aggregatorUserID, StatusCode: status, Err: err}
		a.logger.WithError(err).WithFields(logrus.Fields{
			"aggregator_user_id": aggregatorUserID,
			"attempt":            attempt + 1,
			"status":             status,
		}).Warn("获取聚合方注单失败")
		if !retryable(status) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (a *Adapter) fetchOnce(ctx context.Context, endpoint string) ([]*model.AggregatorSlip, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if a.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Token "+a.cfg.AuthToken)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	// 确保响应体关闭，并处理关闭时的错误
	defer func() {
		if err := resp.Body.Close(); err != nil {
			a.logger.Errorf("关闭聚合方响应体失败: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, resp.StatusCode, fmt.Errorf("聚合方返回%d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var slips []*model.AggregatorSlip
	if err := json.NewDecoder(resp.Body).Decode(&slips); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("解析聚合方注单失败: %w", err)
	}
	return slips, resp.StatusCode, nil
}

// retryable status 为 0 表示网络层错误
func retryable(status int) bool {
	return status == 0 || status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
