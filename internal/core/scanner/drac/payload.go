package drac

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	// LoginPath 会话创建接口
	LoginPath = "/Applications/dellUI/RPC/WEBSES/create.asp"
	// LoginPagePath 登录页，作为 Referer
	LoginPagePath = "/Applications/dellUI/login.htm"

	DefaultUsername = "root"
	DefaultPassword = "calvin"
)

type header struct {
	key   string
	value string
}

// 模拟浏览器会话的固定请求头，Referer 按主机单独生成
var browserHeaders = []header{
	{"User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.8; rv:14.0) Gecko/20100101 Firefox/14.0.1"},
	{"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
	{"Accept-Language", "en-us,en;q=0.5"},
	{"Accept-Encoding", "gzip, deflate"},
	{"Connection", "keep-alive"},
	{"Content-Type", "application/x-www-form-urlencoded; charset=UTF-8"},
	{"Cookie", "test=1; SessionLang=EN"},
	{"Pragma", "no-cache"},
	{"Cache-Control", "no-cache"},
}

// Payload 固定的登录载荷，进程启动时构建一次，之后只读
type Payload struct {
	username string
	password string
	body     string
	marker   []byte
	headers  []header
}

// NewPayload 构建载荷。表单字段顺序固定为 USERNAME, PASSWORD, ISCMCLOGIN
func NewPayload(username, password string) *Payload {
	body := "WEBVAR_USERNAME=" + url.QueryEscape(username) +
		"&WEBVAR_PASSWORD=" + url.QueryEscape(password) +
		"&WEBVAR_ISCMCLOGIN=0"

	headers := make([]header, len(browserHeaders))
	copy(headers, browserHeaders)

	return &Payload{
		username: username,
		password: password,
		body:     body,
		marker:   []byte(fmt.Sprintf("'USERNAME' : '%s'", username)),
		headers:  headers,
	}
}

// DefaultPayload root / calvin
func DefaultPayload() *Payload {
	return NewPayload(DefaultUsername, DefaultPassword)
}

func (p *Payload) Username() string { return p.username }
func (p *Payload) Password() string { return p.password }

// Body URL 编码后的表单
func (p *Payload) Body() string { return p.body }

// Marker 登录成功后响应体中出现的会话标记
func (p *Payload) Marker() string { return string(p.marker) }

// Authenticated 响应体是否包含会话标记
func (p *Payload) Authenticated(body []byte) bool {
	return bytes.Contains(body, p.marker)
}

// NewRequest 构造针对 hostport 的登录请求
func (p *Payload) NewRequest(ctx context.Context, hostport string) (*http.Request, error) {
	base := "https://" + hostport

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+LoginPath, strings.NewReader(p.body))
	if err != nil {
		return nil, err
	}

	for _, h := range p.headers {
		req.Header.Set(h.key, h.value)
	}
	req.Header.Set("Referer", base+LoginPagePath)

	return req, nil
}
