package utils

import (
	"encoding/json"
	"fmt"

	"github.com/tmaxmax/go-sse"
)

// NewSSEMessage 将 payload 编码为 JSON，作为 SSE 消息的 data 字段。
func NewSSEMessage(event string, payload interface{}) (*sse.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal sse payload: %w", err)
	}

	msg := &sse.Message{}
	if event != "" {
		msg.Type = sse.Type(event)
	}
	msg.AppendData(string(data))
	return msg, nil
}

// SendSSEEvent 向已升级的会话发送一条消息并立即刷新。
func SendSSEEvent(session *sse.Session, event string, payload interface{}) error {
	msg, err := NewSSEMessage(event, payload)
	if err != nil {
		return err
	}
	if err := session.Send(msg); err != nil {
		return fmt.Errorf("write sse message: %w", err)
	}
	return session.Flush()
}

// SetupSSEHeaders 设置 go-sse 不会自动写入的响应头。
func SetupSSEHeaders(session *sse.Session) {
	session.Res.Header().Set("Cache-Control", "no-cache")
	session.Res.Header().Set("Connection", "keep-alive")
	session.Res.Header().Set("X-Accel-Buffering", "no")
}
