//go:build !unix

package server

import "errors"

func newPollMux(_ []*Socket) (multiplexer, error) {
	return nil, errors.New("socket multiplexing requires a unix platform")
}
