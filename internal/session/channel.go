package session

import (
	"context"

	"github.com/pion/webrtc/v4"
)

const (
	highWaterMark = 256 * 1024 // pause sending when bufferedAmount exceeds this
	lowWaterMark  = 64 * 1024  // resume sending when bufferedAmount drops below this
)

// channel wraps a pion DataChannel with backpressure control, satisfying
// transfer.ChannelSender for the two file channels.
type channel struct {
	raw       *webrtc.DataChannel
	sendReady chan struct{}
}

func newChannel(raw *webrtc.DataChannel) *channel {
	c := &channel{
		raw:       raw,
		sendReady: make(chan struct{}, 1),
	}
	raw.SetBufferedAmountLowThreshold(uint64(lowWaterMark))
	raw.OnBufferedAmountLow(func() {
		select {
		case c.sendReady <- struct{}{}:
		default:
		}
	})
	return c
}

func (c *channel) BufferedAmount() uint64 { return c.raw.BufferedAmount() }

func (c *channel) SendBinary(data []byte) error {
	return c.send(context.Background(), data)
}

func (c *channel) SendText(text string) error {
	if c.raw.BufferedAmount() > uint64(highWaterMark) {
		<-c.sendReady
	}
	return c.raw.SendText(text)
}

func (c *channel) send(ctx context.Context, data []byte) error {
	if c.raw.BufferedAmount() > uint64(highWaterMark) {
		select {
		case <-c.sendReady:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.raw.Send(data)
}

func (c *channel) OnMessage(fn func(webrtc.DataChannelMessage)) { c.raw.OnMessage(fn) }
func (c *channel) OnOpen(fn func())                             { c.raw.OnOpen(fn) }
func (c *channel) OnClose(fn func())                            { c.raw.OnClose(fn) }
