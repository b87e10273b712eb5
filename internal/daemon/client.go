package daemon

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/runger/suggestd/internal/transport"
)

// requestTimeout bounds one request/response round trip. The engine
// answers from its current snapshot, so responses are immediate; a
// slow response means a wedged daemon.
const requestTimeout = 5 * time.Second

// Client talks the daemon protocol over one connection. A client holds
// at most one live query; starting a new one supersedes the old.
// Methods are safe for concurrent use, requests are serialized.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	enc    *json.Encoder
	reader *bufio.Reader
}

// DialClient connects to a running daemon.
func DialClient(socketPath string) (*Client, error) {
	conn, err := transport.Dial(socketPath)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn:   conn,
		enc:    json.NewEncoder(conn),
		reader: bufio.NewReaderSize(conn, maxRequestLine),
	}, nil
}

// Close closes the connection. The daemon treats the drop as an
// unattributable end of any live query.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// Query starts a query and returns the first frame.
func (c *Client) Query(query string) (*Frame, error) {
	resp, err := c.roundTrip(&Request{Op: OpQuery, Query: query})
	if err != nil {
		return nil, err
	}
	return resp.Frame, nil
}

// Refresh re-snapshots the live query. notifyIndex is the position the
// UI should draw attention to, -1 when there is none.
func (c *Client) Refresh() (frame *Frame, notifyIndex int, err error) {
	resp, err := c.roundTrip(&Request{Op: OpRefresh})
	if err != nil {
		return nil, -1, err
	}
	return resp.Frame, resp.NotifyIndex, nil
}

// Click reports a click on the row at pos. reselect is the position to
// re-highlight when the click toggled the expanded section, -1
// otherwise.
func (c *Client) Click(pos int) (frame *Frame, reselect int, err error) {
	resp, err := c.roundTrip(&Request{Op: OpClick, Position: pos})
	if err != nil {
		return nil, -1, err
	}
	return resp.Frame, resp.Reselect, nil
}

// MoreVisible reports that the more row scrolled into view.
func (c *Client) MoreVisible() error {
	_, err := c.roundTrip(&Request{Op: OpMoreVisible})
	return err
}

// CloseQuery ends the live query. maxDisplayPos is the largest list
// position actually rendered, -1 when nothing attributable was shown.
func (c *Client) CloseQuery(maxDisplayPos int) error {
	_, err := c.roundTrip(&Request{Op: OpClose, MaxDisplayPos: maxDisplayPos})
	return err
}

// Status returns daemon health information.
func (c *Client) Status() (*Status, error) {
	resp, err := c.roundTrip(&Request{Op: OpStatus})
	if err != nil {
		return nil, err
	}
	if resp.Status == nil {
		return nil, fmt.Errorf("daemon returned no status")
	}
	return resp.Status, nil
}

func (c *Client) roundTrip(req *Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(requestTimeout)
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	if err := c.enc.Encode(req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return &resp, nil
}
