// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package girc

import (
	"strings"
	"time"
)

// DefaultWaitForMessagesTimeout is how long waitForMessages waits for its
// PONG reply before giving up, if Config.WaitForMessagesTimeout is unset.
const DefaultWaitForMessagesTimeout = 10 * time.Second

// waitForMessages is the message-quiescence probe described by the spec:
// it sends a PING carrying a random token at the given priority, and
// blocks until a matching PONG is observed, or Config.WaitForMessagesTimeout
// elapses. Since the server processes a single client's messages in
// order, a PONG answering this probe means every message this client
// enqueued ahead of the probe has already been processed by the server --
// making this the library's primary ordering barrier, used by both nick
// changes (C7) and the idle watchdog (C9).
func (c *Client) waitForMessages(priority int) bool {
	timeout := c.Config.WaitForMessagesTimeout
	if timeout <= 0 {
		timeout = DefaultWaitForMessagesTimeout
	}

	return c.waitForMessagesTimeout(priority, timeout)
}

// waitForMessagesTimeout is waitForMessages with an explicit timeout,
// used by the idle watchdog (pingLoop, C9) which has its own configured
// Config.IdlePingTimeout distinct from Config.WaitForMessagesTimeout.
func (c *Client) waitForMessagesTimeout(priority int, timeout time.Duration) bool {
	token := randString(8)

	matched := make(chan struct{})

	name, _ := c.addTmpRule(PONG, timeout, func(client *Client, e Event) bool {
		if e.Trailing != "" && strings.EqualFold(strings.TrimSpace(e.Trailing), token) {
			close(matched)
			return true
		}
		for _, p := range e.Params {
			if strings.EqualFold(p, token) {
				close(matched)
				return true
			}
		}
		return false
	})
	defer c.RemoveRule(name)

	c.SendPriority(&Event{Command: PING, Params: []string{token}}, priority)

	select {
	case <-matched:
		return true
	case <-time.After(timeout):
		return false
	}
}
