// Package ntpclient wraps an SNTP mode-3 query against a configured NTP
// server, used by the synchronization core for phase/UTC correction only
// (frequency discipline comes from PTP).
package ntpclient

import (
	"errors"
	"time"

	"github.com/beevik/ntp"
)

const queryTimeout = 2 * time.Second

var (
	ErrTimeout     = errors.New("ntpclient: query timed out")
	ErrUnreachable = errors.New("ntpclient: server unreachable")
	ErrBadReply    = errors.New("ntpclient: bad or unsynchronized reply")
)

// Result is one successful NTP query: the offset to add to the local clock
// to match the server, and the round-trip time the query took.
type Result struct {
	UTCDelta time.Duration
	RTT      time.Duration
}

// Client queries a single NTP server. It holds no connection state between
// calls; every Query is an independent request/response exchange.
type Client struct {
	Server string
}

func New(server string) *Client {
	return &Client{Server: server}
}

func (c *Client) Query() (Result, error) {
	resp, err := ntp.QueryWithOptions(c.Server, ntp.QueryOptions{Timeout: queryTimeout})
	if err != nil {
		return Result{}, translateErr(err)
	}
	if err := resp.Validate(); err != nil {
		return Result{}, ErrBadReply
	}
	return Result{UTCDelta: resp.ClockOffset, RTT: resp.RTT}, nil
}

func translateErr(err error) error {
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTimeout
	}
	return ErrUnreachable
}
