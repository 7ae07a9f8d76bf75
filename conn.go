// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package girc

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Messages are delimited with CR and LF line endings, we're using the last
// one to split the stream. Both are removed during parsing of the message.
const delim byte = '\n'

var endline = []byte("\r\n")

// ircConn represents an IRC network protocol connection, it wraps the socket
// in a buffered reader/writer to manage i/o.
type ircConn struct {
	io   *bufio.ReadWriter
	sock net.Conn

	mu sync.RWMutex
	// lastWrite is used to keep track of when we last wrote to the server.
	lastWrite time.Time
	// lastActive is the last time the client was interacting with the server,
	// excluding a few background commands (PING, PONG, WHO, etc).
	lastActive time.Time
	// writeDelay is used to keep track of rate limiting of events sent to
	// the server.
	writeDelay time.Duration
	// connected is true if we're actively connected to a server.
	connected bool
	// connTime is the time at which the client has connected to a server.
	connTime atomic.Value // time.Time
	// lastPing is the last time we sent a keepalive/quiescence probe PING.
	lastPing atomic.Value // time.Time
	// lastPong is the last time we received a PONG back from the server,
	// in response to any PING (ours or a quiescence probe's).
	lastPong atomic.Value // time.Time
}

func (c *ircConn) touchPing() { c.lastPing.Store(time.Now()) }
func (c *ircConn) touchPong() { c.lastPong.Store(time.Now()) }

func (c *ircConn) getLastPing() time.Time {
	if v, ok := c.lastPing.Load().(time.Time); ok {
		return v
	}
	return time.Time{}
}

func (c *ircConn) getLastPong() time.Time {
	if v, ok := c.lastPong.Load().(time.Time); ok {
		return v
	}
	return time.Time{}
}

// Dialer is an interface implementation of net.Dialer. Use this if you would
// like to implement your own dialer which the client will use when connecting.
type Dialer interface {
	// Dial takes two arguments. Network, which should be similar to "tcp",
	// "tdp6", "udp", etc -- as well as address, which is the hostname or ip
	// of the network. Note that network can be ignored if your transport
	// doesn't take advantage of network types.
	Dial(network, address string) (net.Conn, error)
}

// newConn sets up and returns a new connection to the server.
func newConn(conf Config, dialer Dialer, addr string) (*ircConn, error) {
	if err := conf.isValid(); err != nil {
		return nil, err
	}

	var conn net.Conn
	var err error

	if dialer == nil {
		netDialer := &net.Dialer{Timeout: 5 * time.Second}

		if conf.Bind != "" {
			var local *net.TCPAddr
			local, err = net.ResolveTCPAddr("tcp", conf.Bind+":0")
			if err != nil {
				return nil, err
			}

			netDialer.LocalAddr = local
		}

		dialer = netDialer
	}

	if conn, err = dialer.Dial("tcp", addr); err != nil {
		return nil, err
	}

	if conf.SSL {
		conn = tlsHandshake(conn, conf.TLSConfig, conf.Server, true)
	}

	c := &ircConn{
		sock:      conn,
		connected: true,
	}
	c.connTime.Store(time.Now())
	c.newReadWriter()

	return c, nil
}

func newMockConn(conn net.Conn) *ircConn {
	c := &ircConn{
		sock:      conn,
		connected: true,
	}
	c.connTime.Store(time.Now())
	c.newReadWriter()

	return c
}

// ErrParseEvent is aliased to ParseEventError.
//
// Deprecated: use ParseEventError instead.
type ErrParseEvent = ParseEventError //nolint:errname

// ParseEventError is returned when an event cannot be parsed with ParseEvent().
type ParseEventError struct {
	Line string
}

func (e ParseEventError) Error() string { return "unable to parse event: " + e.Line }

type decodedEvent struct {
	event *Event
	err   error
}

func (c *ircConn) decode() <-chan decodedEvent {
	ch := make(chan decodedEvent, 1)

	go func() {
		defer close(ch)

		line, err := c.io.ReadString(delim)
		if err != nil {
			ch <- decodedEvent{err: err}
			return
		}

		event := ParseEvent(line)
		if event == nil {
			ch <- decodedEvent{err: ErrParseEvent{Line: line}}
			return
		}

		ch <- decodedEvent{event: event}
	}()

	return ch
}

func (c *ircConn) encode(event *Event) error {
	if _, err := c.io.Write(event.Bytes()); err != nil {
		return err
	}
	if _, err := c.io.Write(endline); err != nil {
		return err
	}

	return c.io.Flush()
}

func (c *ircConn) newReadWriter() {
	c.io = bufio.NewReadWriter(bufio.NewReader(c.sock), bufio.NewWriter(c.sock))
}

func tlsHandshake(conn net.Conn, conf *tls.Config, server string, validate bool) net.Conn {
	if conf == nil {
		conf = &tls.Config{ServerName: server, InsecureSkipVerify: !validate} //nolint:gosec
	}

	tlsConn := tls.Client(conn, conf)
	return net.Conn(tlsConn)
}

// Close closes the underlying socket.
func (c *ircConn) Close() error {
	return c.sock.Close()
}

// Connect attempts to connect to the given IRC server. Returns only when
// an error has occurred, or a disconnect was requested with Close(). Connect
// will only return once all client-based goroutines have been closed to
// ensure there are no long-running routines becoming backed up.
//
// Connect will wait for all non-goroutine handlers to complete on error/quit,
// however it will not wait for goroutine-based handlers.
//
// If this returns nil, this means that the client requested to be closed
// (e.g. Client.Close()). Connect will panic if called when the last call has
// not completed.
func (c *Client) Connect() error {
	return c.internalConnect(nil, nil)
}

// DialerConnect allows you to specify your own custom dialer which implements
// the Dialer interface.
//
// An example of using this library would be to take advantage of the
// golang.org/x/net/proxy library:
//
//	proxyURI, _ := url.Parse("socks5://1.2.3.4:8888")
//	dialer, _ := proxy.FromURL(proxyURI, &net.Dialer{Timeout: 5 * time.Second})
//	_ = client.DialerConnect(dialer)
func (c *Client) DialerConnect(dialer Dialer) error {
	return c.internalConnect(nil, dialer)
}

// MockConnect is used to implement mocking with an IRC server. Supply a net.Conn
// that will be used to spoof the server. A useful way to do this is to so
// net.Pipe(), pass one end into MockConnect(), and the other end into
// bufio.NewReader().
//
// For example:
//
//	client := girc.New(girc.Config{
//		Server: "dummy.int",
//		Port:   6667,
//		Nick:   "test",
//		User:   "test",
//		Name:   "Testing123",
//	})
//
//	in, out := net.Pipe()
//	defer in.Close()
//	defer out.Close()
//	b := bufio.NewReader(in)
//
//	go func() {
//		if err := client.MockConnect(out); err != nil {
//			panic(err)
//		}
//	}()
//
//	defer client.Close()
//
//	for {
//		in.SetReadDeadline(time.Now().Add(300 * time.Second))
//		line, err := b.ReadString(byte('\n'))
//		if err != nil {
//			panic(err)
//		}
//
//		event := girc.ParseEvent(line)
//
//		if event == nil {
//	 		continue
//	 	}
//
//	 	// Do stuff with event here.
//	 }
func (c *Client) MockConnect(conn net.Conn) error {
	return c.internalConnect(conn, nil)
}

func (c *Client) internalConnect(mock net.Conn, dialer Dialer) error {
	// We want to be the only one handling connects/disconnects right now.
	c.mu.Lock()

	if c.conn != nil {
		panic("use of connect more than once")
	}

	// Reset the state.
	c.state.reset(false)

	addr := c.server()

	resumed := c.resume
	c.resume = nil

	switch {
	case resumed != nil:
		c.conn = newResumedConn(resumed.conn, resumed.recvBuf)
	case mock == nil:
		// Validate info, and actually make the connection.
		c.debug.Printf("connecting to %s... (config-ssl: %v)", addr, c.Config.SSL)
		conn, err := newConn(c.Config, dialer, addr)
		if err != nil {
			c.mu.Unlock()
			return err
		}

		c.conn = conn
	default:
		c.conn = newMockConn(mock)
	}
	c.mu.Unlock()

	var ctx context.Context
	ctx, c.stop = context.WithCancel(context.Background())

	group, gctx := errgroup.WithContext(ctx)

	readCtx, readStop := context.WithCancel(gctx)
	pingCtx, pingStop := context.WithCancel(gctx)
	c.mu.Lock()
	c.readStop = readStop
	c.pingStop = pingStop
	c.mu.Unlock()

	group.Go(func() error { return c.execLoop(gctx) })
	group.Go(func() error { return c.readLoop(readCtx) })
	group.Go(func() error { return c.sendLoop(gctx) })
	group.Go(func() error { return c.pingLoop(pingCtx) })

	var regErr error
	if resumed != nil {
		// A hand-off receive skips the registration handshake entirely --
		// the sender already completed it, and the server has no idea a
		// new process now owns the socket.
		c.nickState.forceCurrent(c.Config.Nick)
		c.RunHandlers(&Event{Command: INITIALIZED, Params: []string{addr}})
		c.resyncChannels(resumed.channels)
	} else {
		// Registration (spec C9 startup): gate the send queue to priority
		// <= PriorityRegistration so nothing else can cut in front of or
		// interleave with PASS/NICK/USER, and register startup-only sync
		// handlers for WELCOME and NICKNAMEINUSE -- the regular nick-collision
		// rule is removed until registration ends, since normal quiescence
		// probing is not yet safe pre-registration. The nick lock is not held
		// during registration; the startup collision handler sets
		// Config.Nick directly.
		c.RemoveRule("builtin:nick-collide")
		c.sendQ.SetCeiling(PriorityRegistration, true)

		welcomed := make(chan struct{})
		welcomeName := c.AddRule(HandlerRule{
			Name:     "conn:welcome",
			Match:    []MatchSpec{{Command: MatchFold(RPL_WELCOME)}},
			internal: true,
			Callback: func(client *Client, e Event) {
				select {
				case <-welcomed:
				default:
					close(welcomed)
				}
			},
		})
		collideName := c.AddRule(HandlerRule{
			Name:     "conn:collide",
			Match:    []MatchSpec{{Command: MatchFold(ERR_NICKNAMEINUSE)}},
			internal: true,
			Callback: func(client *Client, e Event) {
				next := incrementNick(client.Config.Nick)
				client.Config.Nick = next
				client.write(&Event{Command: NICK, Params: []string{next}}, PriorityRegistration)
			},
		})

		if c.Config.WebIRC.Password != "" {
			c.write(&Event{Command: WEBIRC, Params: c.Config.WebIRC.Params(), Sensitive: true}, PriorityRegistration)
		}

		if c.Config.ServerPass != "" {
			c.write(&Event{Command: PASS, Params: []string{c.Config.ServerPass}, Sensitive: true}, PriorityRegistration)
		}

		// List the IRCv3 capabilities, specifically with the max protocol we
		// support. The IRCv3 specification doesn't directly state if this should
		// be called directly before registration, or if it should be called
		// after NICK/USER requests. It looks like non-supporting networks
		// should ignore this, and some IRCv3 capable networks require this to
		// occur before NICK/USER registration.
		c.listCAP()

		// Then nickname.
		c.write(&Event{Command: NICK, Params: []string{c.Config.Nick}}, PriorityRegistration)

		// Then username and realname.
		if c.Config.Name == "" {
			c.Config.Name = c.Config.User
		}

		c.write(&Event{Command: USER, Params: []string{c.Config.User, "*", "*"}, Trailing: c.Config.Name}, PriorityRegistration)

		// Send a virtual event allowing hooks for successful socket connection.
		c.RunHandlers(&Event{Command: INITIALIZED, Params: []string{addr}})

		select {
		case <-welcomed:
			c.nickState.forceCurrent(c.Config.Nick)
		case <-time.After(c.Config.RegistrationTimeout):
			c.debug.Print("timed out waiting for RPL_WELCOME during registration")
			regErr = errors.New("timed out waiting for RPL_WELCOME during registration")
			c.stop()
		case <-gctx.Done():
		}

		c.RemoveRule(welcomeName)
		c.RemoveRule(collideName)
		c.builtinRule("nick-collide", nickCollisionHandler, ERR_NICKNAMEINUSE, ERR_NICKCOLLISION, ERR_UNAVAILRESOURCE)
		c.sendQ.SetCeiling(0, false)
	}

	// Wait for the first error.
	err := group.Wait()
	if err == nil && regErr != nil {
		err = regErr
	}
	if err != nil {
		c.debug.Printf("received error, beginning cleanup: %v", err)
	} else {
		c.debug.Print("received request to close, beginning clean up")

		c.RunHandlers(&Event{Command: CLOSED, Params: []string{addr}})
	}

	// Make sure that the connection is closed if not already.
	c.mu.RLock()
	if c.stop != nil {
		c.stop()
	}
	c.conn.mu.Lock()
	c.conn.connected = false
	_ = c.conn.Close()
	c.conn.mu.Unlock()
	c.mu.RUnlock()

	c.RunHandlers(&Event{Command: DISCONNECTED, Params: []string{addr}})

	// This helps ensure that the end user isn't improperly using the client
	// more than once. If they want to do this, they should be using multiple
	// clients, not multiple instances of Connect().
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()

	return err
}

// readLoop sets a timeout of 300 seconds, and then attempts to read from the
// IRC server. If there is an error, it returns it, which ends the connection.
func (c *Client) readLoop(ctx context.Context) error {
	c.debug.Print("starting readLoop")
	defer c.debug.Print("closing readLoop")

	var de decodedEvent

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			_ = c.conn.sock.SetReadDeadline(time.Now().Add(300 * time.Second))

			select {
			case <-ctx.Done():
				return nil
			case de = <-c.conn.decode():
			}

			if de.err != nil {
				return de.err
			}

			if de.event.Command != PING && de.event.Command != PONG && de.event.Command != WHO {
				c.conn.mu.Lock()
				c.conn.lastActive = time.Now()
				c.conn.mu.Unlock()
			}

			// Check if it's an echo-message.
			if !c.Config.disableTracking {
				de.event.Echo = (de.event.Command == PRIVMSG || de.event.Command == NOTICE) &&
					de.event.Source != nil && de.event.Source.ID() == c.GetID()
			}

			c.receive(ctx, de.event)
		}
	}
}

// receive hands a decoded event off to execLoop for dispatch, blocking
// until there's room on the inbound queue or ctx is cancelled.
func (c *Client) receive(ctx context.Context, event *Event) {
	select {
	case c.rx <- event:
	case <-ctx.Done():
	}
}

// Send sends an event to the server at the default user-message priority
// (PriorityDefault). Send will split events if the event is longer than
// what the server supports, and is an event that supports splitting. Use
// Client.RunHandlers() if you are simply looking to trigger handlers with an event.
func (c *Client) Send(event *Event) error {
	return c.SendPriority(event, PriorityDefault)
}

// SendPriority is much like Send, however it allows specifying the queue
// priority the event is admitted at. Lower values are sent first; see the
// Priority* constants in queue.go for the reserved bands.
func (c *Client) SendPriority(event *Event, priority int) error {
	var delay time.Duration

	if c.Config.GlobalFormat && len(event.Params) > 0 && event.Params[len(event.Params)-1] != "" &&
		(event.Command == PRIVMSG || event.Command == TOPIC || event.Command == NOTICE) {
		event.Params[len(event.Params)-1] = Fmt(event.Params[len(event.Params)-1])
	}

	events := splitEvent(c, event)

	for _, e := range events {
		if !c.Config.AllowFlood {
			c.mu.RLock()

			// Drop the event early as we're disconnected, this way we don't have to wait
			// the (potentially long) rate limit delay before dropping.
			if c.conn == nil {
				c.debugLogEvent(e, true)
				c.mu.RUnlock()
				return ErrNotConnected
			}

			c.conn.mu.Lock()
			delay = c.conn.rate(e.Len())
			c.conn.mu.Unlock()
			c.mu.RUnlock()
		}

		<-time.After(delay)
		c.write(e, priority)
	}

	return nil
}

// write is the lower level function to enqueue an event onto the
// prioritised send queue. It does not have a write-delay when sending
// events. If the queue currently has an admission ceiling below priority
// (see sendQueue.SetCeiling, used during registration and hand-off
// drain), the event is dropped and logged rather than sent out of order.
func (c *Client) write(event *Event, priority int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn == nil {
		// Drop the event if disconnected.
		c.debugLogEvent(event, true)
		return
	}

	if ok := c.sendQ.Push(event, priority); !ok {
		c.debug.Printf("dropping event above current send queue ceiling: %s", StripRaw(event.String()))
		c.debugLogEvent(event, true)
	}
}

// rate allows limiting events based on how frequent the event is being sent,
// as well as how many characters each event has.
func (c *ircConn) rate(chars int) time.Duration {
	_time := time.Second + ((time.Duration(chars) * time.Second) / 100)

	if c.writeDelay += _time - time.Since(c.lastWrite); c.writeDelay < 0 {
		c.writeDelay = 0
	}

	if c.writeDelay > (8 * time.Second) {
		return _time
	}

	return 0
}

// sendLoop pops the highest-priority queued event, serialises it, and
// sends it -- a sent QUIT causes a clean stop once it has gone out, and
// any write error (e.g. EPIPE) stops the loop with that error.
func (c *Client) sendLoop(ctx context.Context) error {
	c.debug.Print("starting sendLoop")
	defer c.debug.Print("closing sendLoop")

	var err error

	for {
		event, qerr := c.sendQ.Next(ctx)
		if qerr != nil {
			return nil
		}

		// Check if tags exist on the event. If they do, and message-tags
		// isn't a supported capability, remove them from the event.
		if event.Tags != nil {
			c.state.RLock()
			var in bool
			for i := 0; i < len(c.state.enabledCap); i++ {
				if c.state.enabledCap[i] == "message-tags" {
					in = true
					break
				}
			}
			c.state.RUnlock()

			if !in {
				event.Tags = Tags{}
			}
		}

		c.debugLogEvent(event, false)

		c.conn.mu.Lock()
		c.conn.lastWrite = time.Now()

		if event.Command != PING && event.Command != PONG && event.Command != WHO {
			c.conn.lastActive = c.conn.lastWrite
		}
		c.conn.mu.Unlock()

		// Write the raw line.
		_, err = c.conn.io.Write(event.Bytes())
		if err == nil {
			// And the \r\n.
			_, err = c.conn.io.Write(endline)
			if err == nil {
				// Lastly, flush everything to the socket.
				err = c.conn.io.Flush()
			}
		}

		if event.Command == QUIT {
			c.Close()
			return nil
		}

		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// ErrTimedOut is aliased to TimedOutError.
//
// Deprecated: use TimedOutError instead.
type ErrTimedOut = TimedOutError //nolint:errname

// TimedOutError is returned by the idle watchdog when a quiescence probe
// goes unanswered within Config.IdlePingTimeout, meaning the connection
// has probably dropped.
type TimedOutError struct {
	// TimeSinceSuccess is how long ago we received a successful pong.
	TimeSinceSuccess time.Duration
	// LastPong is the time we received our last successful pong.
	LastPong time.Time
	// LastPing is the last time we sent a ping request.
	LastPing time.Time
	// IdleFreq is the configured idle delay that triggered the probe.
	IdleFreq time.Duration
}

func (TimedOutError) Error() string { return "timed out waiting for a requested PING response" }

// pingLoop is the idle watchdog (spec C9): if no activity (successful
// send or receive) has been observed for Config.IdlePingFreq, it issues a
// message-quiescence probe; if no PONG arrives within Config.IdlePingTimeout,
// the connection is considered dropped.
func (c *Client) pingLoop(ctx context.Context) error {
	if c.Config.IdlePingFreq < 0 {
		return nil
	}

	c.debug.Print("starting pingLoop")
	defer c.debug.Print("closing pingLoop")

	c.conn.touchPing()
	c.conn.touchPong()

	tick := time.NewTicker(c.Config.IdlePingFreq)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			c.conn.mu.RLock()
			idle := time.Since(c.conn.lastActive)
			c.conn.mu.RUnlock()

			if idle < c.Config.IdlePingFreq {
				continue
			}

			c.conn.touchPing()

			if ok := c.waitForMessagesTimeout(PriorityControl, c.Config.IdlePingTimeout); !ok {
				return TimedOutError{
					TimeSinceSuccess: time.Since(c.conn.getLastPong()),
					LastPong:         c.conn.getLastPong(),
					LastPing:         c.conn.getLastPing(),
					IdleFreq:         c.Config.IdlePingFreq,
				}
			}

			c.conn.touchPong()
		case <-ctx.Done():
			return nil
		}
	}
}
