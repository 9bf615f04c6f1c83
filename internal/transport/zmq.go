package transport

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"

	"simcapture-go/internal/types"
)

// ZMQ reads CBOR events from a PULL socket and pushes outbound events on a
// PUSH socket. Both sockets connect to the controller's endpoints.
type ZMQ struct {
	inboundEndpoint  string
	outboundEndpoint string
	logEvery         int
	logCounter       atomic.Uint64

	mu   sync.Mutex
	push *zmq4.Socket
}

func NewZMQ(inboundEndpoint, outboundEndpoint string, logEvery int) *ZMQ {
	if logEvery < 1 {
		logEvery = 1
	}
	return &ZMQ{
		inboundEndpoint:  inboundEndpoint,
		outboundEndpoint: outboundEndpoint,
		logEvery:         logEvery,
	}
}

// Start connects both sockets and delivers inbound events to fn until ctx is
// done.
func (z *ZMQ) Start(ctx context.Context, fn InboundFunc) error {
	pull, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return err
	}
	if err := pull.SetRcvtimeo(250 * time.Millisecond); err != nil {
		_ = pull.Close()
		return err
	}
	if err := pull.Connect(z.inboundEndpoint); err != nil {
		_ = pull.Close()
		return fmt.Errorf("connect %s: %w", z.inboundEndpoint, err)
	}

	push, err := zmq4.NewSocket(zmq4.PUSH)
	if err != nil {
		_ = pull.Close()
		return err
	}
	if err := push.SetSndtimeo(writeWait); err != nil {
		_ = pull.Close()
		_ = push.Close()
		return err
	}
	if err := push.Connect(z.outboundEndpoint); err != nil {
		_ = pull.Close()
		_ = push.Close()
		return fmt.Errorf("connect %s: %w", z.outboundEndpoint, err)
	}
	z.mu.Lock()
	z.push = push
	z.mu.Unlock()

	go func() {
		defer pull.Close()
		defer z.closePush()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msg, err := pull.RecvBytes(0)
			if err != nil {
				if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
					continue
				}
				z.logEveryN("transport: zmq recv error: %v", err)
				continue
			}
			ev, err := DecodeCBOREvent(msg)
			if err != nil {
				z.logEveryN("transport: zmq decode skipped message: %v", err)
				continue
			}
			if fn != nil {
				fn(ev)
			}
		}
	}()
	return nil
}

func (z *ZMQ) Send(ev types.Event) error {
	payload, err := EncodeCBOREvent(ev)
	if err != nil {
		return err
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.push == nil {
		return ErrNoPeers
	}
	_, err = z.push.SendBytes(payload, 0)
	return err
}

func (z *ZMQ) closePush() {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.push != nil {
		_ = z.push.Close()
		z.push = nil
	}
}

func (z *ZMQ) logEveryN(format string, args ...any) {
	if z.logCounter.Add(1)%uint64(z.logEvery) == 0 {
		log.Printf(format, args...)
	}
}
