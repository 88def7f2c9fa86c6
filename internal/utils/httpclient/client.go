package httpclient

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/url"
	"time"

	"BetSync/internal/config"

	"github.com/sirupsen/logrus"
)

const defaultTimeout = 15 * time.Second

// NewHTTPClient 拉取注单用的客户端；cfg.Timeout 单位秒，未配置时 15s
func NewHTTPClient(cfg *config.AggregatorConfig, logger *logrus.Logger) *http.Client {
	base := &http.Transport{
		MaxIdleConns:        100,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  true,
		TLSHandshakeTimeout: 10 * time.Second,
		Proxy:               proxyFunc(cfg.Proxy, logger),
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &gzipTransport{next: base, logger: logger},
	}
}

// proxyFunc 代理地址非法时直连
func proxyFunc(raw string, logger *logrus.Logger) func(*http.Request) (*url.URL, error) {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		logger.WithError(err).WithField("proxy", raw).Warn("聚合方代理地址非法，改为直连")
		return nil
	}
	logger.WithField("proxy", raw).Info("聚合方请求走代理")
	return http.ProxyURL(u)
}

// gzipTransport 自己声明 Accept-Encoding，所以标准库不会代为解压
type gzipTransport struct {
	next   http.RoundTripper
	logger *logrus.Logger
}

func (t *gzipTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.Header.Get("Content-Encoding") != "gzip" {
		return resp, err
	}

	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		t.logger.WithError(err).WithField("url", req.URL.String()).Warn("响应声明gzip但无法解压，按原样返回")
		return resp, nil
	}
	resp.Body = &gzipBody{Reader: zr, raw: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	return resp, nil
}

type gzipBody struct {
	*gzip.Reader
	raw io.ReadCloser
}

func (b *gzipBody) Close() error {
	zerr := b.Reader.Close()
	if err := b.raw.Close(); err != nil {
		return err
	}
	return zerr
}
