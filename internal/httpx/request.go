package httpx

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Event 传输层无关的入站请求
type Event struct {
	Method     string
	Path       string
	Host       string
	Headers    map[string]string
	Query      map[string]string
	PathParams map[string]string
	Body       []byte
}

// Header 请求头，键统一为小写
type Header map[string]string

func NewHeader(raw map[string]string) Header {
	h := make(Header, len(raw))
	for k, v := range raw {
		h[strings.ToLower(k)] = v
	}
	return h
}

// Get 大小写不敏感地读取请求头
func (h Header) Get(name string) string {
	return h[strings.ToLower(name)]
}

// Request 规范化后的请求
type Request struct {
	Method     string
	Path       string
	Host       string
	Header     Header
	Query      map[string]string
	PathParams map[string]string
	Body       []byte
}

func NewRequest(ev Event) *Request {
	r := &Request{
		Method:     strings.ToUpper(ev.Method),
		Path:       ev.Path,
		Host:       ev.Host,
		Header:     NewHeader(ev.Headers),
		Query:      ev.Query,
		PathParams: ev.PathParams,
		Body:       ev.Body,
	}
	if r.Host == "" {
		r.Host = r.Header.Get("Host")
	}
	if r.Query == nil {
		r.Query = map[string]string{}
	}
	if r.PathParams == nil {
		r.PathParams = map[string]string{}
	}
	return r
}

// Param 先取查询参数，再取路径参数
func (r *Request) Param(name string) string {
	if v := r.Query[name]; v != "" {
		return v
	}
	return r.PathParams[name]
}

// JSONObject 将请求体解析为 JSON 对象，数字保留原始精度
func (r *Request) JSONObject() (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, BadRequest("Invalid JSON format")
	}
	if dec.More() {
		return nil, BadRequest("Invalid JSON format")
	}
	return obj, nil
}
