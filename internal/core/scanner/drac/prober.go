package drac

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"dracscan/internal/core/lib/network/dialer"
	"dracscan/internal/core/model"
	"dracscan/internal/pkg/logger"
)

var (
	// ErrTimeout 建连或响应超时
	ErrTimeout = errors.New("probe timeout")

	// ErrConnectionFailed 连接失败 (拒绝/重置/TLS 错误/DNS)
	ErrConnectionFailed = errors.New("connection failed")

	// ErrReadFailed 已收到响应头但读取响应体失败
	ErrReadFailed = errors.New("read response failed")

	// ErrBodyTooLarge 响应体超过 MaxBodyBytes 且截断部分中没有会话标记
	ErrBodyTooLarge = errors.New("response body too large")
)

const (
	DefaultPort           = 443
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 60 * time.Second
	DefaultMaxBodyBytes   = 1 << 20
)

// ProberConfig 探测器参数，零值字段使用默认值
type ProberConfig struct {
	Port            int
	ConnectTimeout  time.Duration // TCP 建连 + TLS 握手
	ReadTimeout     time.Duration // 等待响应头、读取响应体各自的上限
	ResponseTimeout time.Duration // 整个请求的上限，0 表示不限制
	MaxBodyBytes    int64
	Dialer          dialer.Dialer // 为空时直连
}

// Prober 对单个主机发起一次默认凭据登录
//
// 判定规则:
//   - 响应体包含 'USERNAME' : '<用户名>' -> Compromised
//   - 其他任何完整响应 -> Rejected
//   - 超时、任何传输层错误、响应体超限 -> Undetermined (错误只记录在结果里，不向上传播)
//
// 每次探测使用独立的 Transport 和连接，不跟随重定向，不校验证书。
type Prober struct {
	payload         *Payload
	port            int
	connectTimeout  time.Duration
	readTimeout     time.Duration
	responseTimeout time.Duration
	maxBodyBytes    int64
	dialer          dialer.Dialer
}

func NewProber(payload *Payload, cfg ProberConfig) *Prober {
	if payload == nil {
		payload = DefaultPayload()
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Dialer == nil {
		cfg.Dialer = dialer.NewDefaultDialer(cfg.ConnectTimeout)
	}

	return &Prober{
		payload:         payload,
		port:            cfg.Port,
		connectTimeout:  cfg.ConnectTimeout,
		readTimeout:     cfg.ReadTimeout,
		responseTimeout: cfg.ResponseTimeout,
		maxBodyBytes:    cfg.MaxBodyBytes,
		dialer:          cfg.Dialer,
	}
}

// Payload 探测使用的载荷
func (p *Prober) Payload() *Payload {
	return p.payload
}

// Probe 执行一次登录尝试
func (p *Prober) Probe(ctx context.Context, host string) model.ProbeResult {
	res := p.probe(ctx, host)

	entry := logger.WithFields(logrus.Fields{
		logger.FieldHost:   host,
		logger.FieldStatus: res.Status.String(),
	})
	if res.Err != nil {
		entry = entry.WithField(logger.FieldError, res.Err.Error())
	}
	entry.Debug("probe finished")

	return res
}

func (p *Prober) probe(ctx context.Context, host string) model.ProbeResult {
	res := model.ProbeResult{Host: host, Status: model.ProbeStatusUndetermined}

	// 读响应体超时通过取消请求实现
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := p.payload.NewRequest(ctx, p.hostPort(host))
	if err != nil {
		res.Err = fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		return res
	}

	transport := p.newTransport()
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		Timeout:   p.responseTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		res.Err = classifyError(err)
		return res
	}
	defer resp.Body.Close()

	var bodyTimedOut atomic.Bool
	timer := time.AfterFunc(p.readTimeout, func() {
		bodyTimedOut.Store(true)
		cancel()
	})
	defer timer.Stop()

	body, truncated, err := p.readBody(resp)
	if err != nil {
		res.Err = fmt.Errorf("%w: %v", ErrReadFailed, err)
		if bodyTimedOut.Load() || isTimeout(err) {
			res.Err = fmt.Errorf("%w: reading body: %v", ErrTimeout, err)
		}
		return res
	}

	authenticated := p.payload.Authenticated(body)
	if !authenticated && truncated {
		// 标记可能在截断之后，无法下结论
		res.Err = fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, p.maxBodyBytes)
		return res
	}
	if !authenticated {
		res.Status = model.ProbeStatusRejected
		return res
	}

	res.Status = model.ProbeStatusCompromised
	res.Outcome = &model.ProbeOutcome{
		Host:        host,
		Compromised: true,
		Username:    p.payload.Username(),
		Password:    p.payload.Password(),
		FoundAt:     time.Now(),
	}
	return res
}

// hostPort 443 端口不写入 URL，与浏览器访问管理页时一致
func (p *Prober) hostPort(host string) string {
	if p.port == DefaultPort {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(p.port))
}

func (p *Prober) newTransport() *http.Transport {
	return &http.Transport{
		DialContext: p.dialer.DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
			// 老版本 DRAC 只支持 TLS 1.0
			MinVersion: tls.VersionTLS10,
		},
		TLSHandshakeTimeout: p.connectTimeout,
		// 主机完成握手后不回应时，不能让探测永久挂起
		ResponseHeaderTimeout: p.readTimeout,
		// 请求头里自带 Accept-Encoding，解压由 readBody 处理
		DisableCompression: true,
		MaxIdleConns:       1,
	}
}

// readBody 读取响应体，按 Content-Encoding 解压。解压失败时退回原始字节。
// 原始或解压后的内容超过 maxBodyBytes 时截断，并返回 truncated = true
func (p *Prober) readBody(resp *http.Response) ([]byte, bool, error) {
	raw, truncated, err := readLimited(resp.Body, p.maxBodyBytes)
	if err != nil {
		return nil, false, err
	}

	var r io.Reader
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		gr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return raw, truncated, nil
		}
		defer gr.Close()
		r = gr
	case "deflate":
		// 规范是 zlib 封装，部分嵌入式服务器发送裸 deflate
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			fr := flate.NewReader(bytes.NewReader(raw))
			defer fr.Close()
			r = fr
		} else {
			defer zr.Close()
			r = zr
		}
	default:
		return raw, truncated, nil
	}

	decoded, over, err := readLimited(r, p.maxBodyBytes)
	if err != nil && len(decoded) == 0 {
		return raw, truncated, nil
	}
	return decoded, truncated || over, nil
}

// readLimited 最多读取 limit 字节，多读一个字节用于判断是否超限
func readLimited(r io.Reader, limit int64) ([]byte, bool, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if int64(len(data)) > limit {
		return data[:limit], true, err
	}
	return data, false, err
}

func classifyError(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
