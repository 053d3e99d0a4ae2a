package server

import (
	"time"

	"github.com/vitalvas/radiusd/pkg/log"
	"github.com/vitalvas/radiusd/pkg/packet"
)

// LoggingMiddleware logs every request with its outcome and duration.
func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(r *Request) (*packet.Packet, error) {
			start := time.Now()

			entry := logger.WithFields(map[string]interface{}{
				"remote": r.RemoteAddr.String(),
				"role":   r.Role().String(),
				"code":   r.Code().String(),
				"id":     r.Packet.Identifier,
			})
			entry.Debug("Processing request")

			reply, err := next.ServeRADIUS(r)

			duration := time.Since(start)

			switch {
			case err != nil:
				entry.Errorf("Request failed after %v: %v", duration, err)
			case reply != nil:
				entry.Debugf("Request completed after %v: response_code=%s", duration, reply.Code)
			case r.Forwarded():
				entry.Debugf("Request forwarded after %v", duration)
			default:
				entry.Debugf("Request completed after %v: no response", duration)
			}

			return reply, err
		})
	}
}

// CodeFilterMiddleware answers nothing for packet codes outside allowed and
// passes the rest to next.
func CodeFilterMiddleware(allowed ...packet.Code) Middleware {
	set := make(map[packet.Code]struct{}, len(allowed))
	for _, code := range allowed {
		set[code] = struct{}{}
	}

	return func(next Handler) Handler {
		return HandlerFunc(func(r *Request) (*packet.Packet, error) {
			if _, ok := set[r.Code()]; !ok {
				return nil, nil
			}
			return next.ServeRADIUS(r)
		})
	}
}
