package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// 所有响应都带的 CORS 头
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "Content-Type, X-API-Key",
	"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
}

// Response 传输层无关的响应
type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

func newResponse(status int, body []byte) *Response {
	h := make(map[string]string, len(corsHeaders)+1)
	for k, v := range corsHeaders {
		h[k] = v
	}
	h["Content-Type"] = "application/json"
	return &Response{Status: status, Headers: h, Body: body}
}

// JSON 成功响应
func JSON(status int, v any) *Response {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return Fail(Internal(err))
	}
	return newResponse(status, bytes.TrimRight(buf.Bytes(), "\n"))
}

// ErrorBody 错误响应体
type ErrorBody struct {
	Detail string `json:"detail"`
}

// Fail 错误响应
func Fail(err error) *Response {
	e := AsError(err)
	body, _ := json.Marshal(ErrorBody{Detail: e.Detail})
	return newResponse(e.Status, body)
}

// Preflight OPTIONS 预检响应，空 body
func Preflight() *Response {
	return newResponse(http.StatusOK, []byte{})
}
