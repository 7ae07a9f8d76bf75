// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package girc

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// handoffDrainTimeout bounds how long HandoffToSocket waits for the send
// queue to empty on its own before force-draining any stragglers left
// behind past the deadline.
const handoffDrainTimeout = 10 * time.Second

// ErrHandoffUnsupported is returned by HandoffToSocket when the active
// connection's underlying socket doesn't expose a raw file descriptor
// (e.g. a *tls.Conn, or a net.Pipe()-backed mock connection). Neither
// TLS session state nor an in-memory pipe can be resumed on the
// receiving end from a bare fd.
var ErrHandoffUnsupported = errors.New("connection does not support file descriptor hand-off")

// fileConn is implemented by the net.Conn types HandoffToSocket can
// extract a raw descriptor from (*net.TCPConn, *net.UnixConn, ...).
type fileConn interface {
	File() (f *os.File, err error)
}

// resumeState carries a completed hand-off receive from
// FromSocketHandoff across to the Client's next Connect() call, which
// installs it instead of dialing and skips the registration handshake.
type resumeState struct {
	conn     net.Conn
	recvBuf  []byte
	channels []string
}

// handoffWireState is the JSON payload sent immediately after the fd
// during a hand-off. Field names match the wire format exactly.
type handoffWireState struct {
	RecvBuf  string   `json:"recv_buf"`
	Channels []string `json:"channels"`
	Hostname string   `json:"hostname"`
	Nick     string   `json:"nick"`
	Port     int      `json:"port"`
	Password string   `json:"password"`
	Ident    string   `json:"ident"`
	RealName string   `json:"real_name"`
}

// HandoffToSocket gracefully transfers this client's live connection to
// another process reachable over unixSocket, an already-connected
// Unix-domain socket provided by the caller. The sequence is:
//
//  1. Quiesce: acquire and permanently hold the nick lock, kill the idle
//     watchdog, signal the read loop to exit (interrupting a blocking
//     read if necessary), replace send with a trap that rejects further
//     enqueues, and wait for the send queue to drain.
//  2. Serialise the resumption state as JSON.
//  3. Transfer the socket's file descriptor as SCM_RIGHTS ancillary data,
//     then the JSON state, then close.
//  4. Finalise by calling the normal stop path.
//
// The receiving process reconstructs the client with FromSocketHandoff.
func (c *Client) HandoffToSocket(unixSocket *net.UnixConn) error {
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	conn := c.conn
	readStop := c.readStop
	pingStop := c.pingStop
	c.mu.Unlock()

	fc, ok := conn.sock.(fileConn)
	if !ok {
		return ErrHandoffUnsupported
	}

	// 1. Acquire and permanently hold the nick lock -- no nick change
	// may begin once a hand-off is underway.
	c.nickState.mu.Lock()

	// Kill the idle watchdog.
	if pingStop != nil {
		pingStop()
	}

	// Signal the read loop to exit, interrupting it out of a blocking
	// read if one is in flight.
	if readStop != nil {
		readStop()
	}
	conn.mu.Lock()
	_ = conn.sock.SetReadDeadline(time.Now())
	conn.mu.Unlock()

	// Replace send with a trap: nothing beneath the lowest reserved
	// priority is admitted, so every future Push is rejected.
	c.sendQ.SetCeiling(PriorityRegistration-1, true)

	// Wait until the send queue is empty.
	deadline := time.Now().Add(handoffDrainTimeout)
	for c.sendQ.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if dropped := c.sendQ.Drain(); len(dropped) > 0 {
		c.debug.Printf("hand-off: dropping %d event(s) still queued past the drain timeout", len(dropped))
	}

	f, err := fc.File()
	if err != nil {
		return err
	}
	defer f.Close()

	conn.mu.Lock()
	leftover := bufferedBytes(conn.io)
	conn.mu.Unlock()

	state := handoffWireState{
		RecvBuf:  base64.StdEncoding.EncodeToString(leftover),
		Channels: c.ChannelList(),
		Hostname: c.Config.Server,
		Nick:     c.GetNick(),
		Port:     c.Config.Port,
		Password: c.Config.ServerPass,
		Ident:    c.GetIdent(),
		RealName: c.Config.Name,
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}

	oob := unix.UnixRights(int(f.Fd()))
	if _, _, err := unixSocket.WriteMsgUnix([]byte{0}, oob, nil); err != nil {
		return err
	}
	if _, err := unixSocket.Write(payload); err != nil {
		return err
	}
	if err := unixSocket.Close(); err != nil {
		return err
	}

	// Finalise: the normal stop path.
	c.Close()
	return nil
}

// FromSocketHandoff reconstructs a Client from a hand-off sent by
// HandoffToSocket on the other end of unixSocket, an already-connected
// Unix-domain socket provided by the caller. The returned client has
// not yet been started: call Connect() (or DialerConnect/MockConnect's
// sibling) to install the received connection, skip the registration
// handshake, and resync channel membership via NAMES.
func FromSocketHandoff(unixSocket *net.UnixConn) (*Client, error) {
	buf := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))

	_, oobn, _, _, err := unixSocket.ReadMsgUnix(buf, oob)
	if err != nil {
		return nil, err
	}

	scms, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return nil, err
	}
	if len(scms) == 0 {
		return nil, errors.New("hand-off: no ancillary data received")
	}

	fds, err := unix.ParseUnixRights(&scms[0])
	if err != nil {
		return nil, err
	}
	if len(fds) == 0 {
		return nil, errors.New("hand-off: no file descriptor received")
	}

	f := os.NewFile(uintptr(fds[0]), "handoff")
	conn, err := net.FileConn(f)
	_ = f.Close()
	if err != nil {
		return nil, err
	}

	payload, err := io.ReadAll(unixSocket)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = unixSocket.Close()

	var wire handoffWireState
	if err := json.Unmarshal(payload, &wire); err != nil {
		_ = conn.Close()
		return nil, err
	}

	recvBuf, err := base64.StdEncoding.DecodeString(wire.RecvBuf)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	client := New(Config{
		Server:     wire.Hostname,
		Port:       wire.Port,
		Nick:       wire.Nick,
		User:       wire.Ident,
		Name:       wire.RealName,
		ServerPass: wire.Password,
	})
	client.resume = &resumeState{
		conn:     conn,
		recvBuf:  recvBuf,
		channels: wire.Channels,
	}

	return client, nil
}

// newResumedConn builds an ircConn around a connection received via
// hand-off, re-priming its read buffer with any bytes that arrived
// after the last complete line before the previous owner quiesced.
func newResumedConn(conn net.Conn, leftover []byte) *ircConn {
	c := &ircConn{sock: conn, connected: true}
	c.connTime.Store(time.Now())

	var r io.Reader = conn
	if len(leftover) > 0 {
		r = io.MultiReader(bytes.NewReader(leftover), conn)
	}
	c.io = bufio.NewReadWriter(bufio.NewReader(r), bufio.NewWriter(conn))

	return c
}

// bufferedBytes returns (a copy of) whatever bytes are sitting in rw's
// read buffer but haven't been consumed yet -- the tail of a line that
// hadn't completed when the read loop was stopped.
func bufferedBytes(rw *bufio.ReadWriter) []byte {
	n := rw.Reader.Buffered()
	if n == 0 {
		return nil
	}

	peeked, _ := rw.Reader.Peek(n)
	out := make([]byte, len(peeked))
	copy(out, peeked)

	return out
}

// resyncChannels recreates channel state for a hand-off resume: for
// each channel name, create the channel and mark ourselves joined
// without sending JOIN (the server already considers us joined from
// the previous owner's perspective), then issue NAMES to re-sync
// membership.
func (c *Client) resyncChannels(names []string) {
	for _, name := range names {
		if !IsValidChannel(name) {
			continue
		}

		c.state.Lock()
		c.state.createChannel(name)
		channel := c.state.lookupChannel(name)
		if channel != nil {
			self := &Source{Name: c.GetNick(), Ident: c.GetIdent(), Host: c.GetHost()}
			user, ok := c.state.createUser(self)
			if !ok {
				user = c.state.lookupUser(self.Name)
			}
			if user != nil {
				channel.addUser(user.Nick, user)
				user.addChannel(channel.Name, channel)
			}
		}
		c.state.Unlock()

		c.state.notify(c, UPDATE_STATE)
		c.Send(&Event{Command: NAMES, Params: []string{name}})
	}
}
