package main

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/vitalvas/radiusd/pkg/packet"
	"github.com/vitalvas/radiusd/pkg/server"
)

type AuditLog struct {
	Timestamp string       `json:"timestamp"`
	Remote    string       `json:"remote"`
	Local     string       `json:"local"`
	Role      string       `json:"role"`
	Forwarded bool         `json:"forwarded,omitempty"`
	Error     string       `json:"error,omitempty"`
	Request   AuditPacket  `json:"request"`
	Response  *AuditPacket `json:"response,omitempty"`
}

type AuditPacket struct {
	Code       string              `json:"code"`
	Identifier uint8               `json:"id"`
	Attributes map[string][]string `json:"attributes"`
}

// auditMiddleware writes one JSON line per handled request to writer.
func auditMiddleware(writer io.Writer) server.Middleware {
	var mu sync.Mutex

	return func(next server.Handler) server.Handler {
		return server.HandlerFunc(func(req *server.Request) (*packet.Packet, error) {
			resp, err := next.ServeRADIUS(req)

			auditLog := AuditLog{
				Timestamp: time.Now().UTC().Format(time.RFC3339),
				Remote:    req.RemoteAddr.String(),
				Local:     req.Socket.LocalAddr().String(),
				Role:      req.Role().String(),
				Forwarded: req.Forwarded(),
				Request:   auditPacket(req.Packet),
			}
			if err != nil {
				auditLog.Error = err.Error()
			}
			if resp != nil {
				p := auditPacket(resp)
				auditLog.Response = &p
			}

			if data, marshalErr := json.Marshal(auditLog); marshalErr == nil {
				mu.Lock()
				writer.Write(append(data, '\n'))
				mu.Unlock()
			}

			return resp, err
		})
	}
}

func auditPacket(pkt *packet.Packet) AuditPacket {
	attrs := make(map[string][]string)

	for _, attr := range pkt.Attributes {
		name := pkt.AttributeName(attr.Type)
		attrs[name] = append(attrs[name], pkt.FormatAttribute(attr))
	}

	return AuditPacket{
		Code:       pkt.Code.String(),
		Identifier: pkt.Identifier,
		Attributes: attrs,
	}
}
