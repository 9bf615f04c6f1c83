// Package controller is a scripted remote controller for exercising the
// capture service without a trained model. It answers every telemetry frame
// with a synthetic detection (or track) result.
package controller

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"simcapture-go/internal/transport"
	"simcapture-go/internal/types"
)

type Mode string

const (
	ModeDetect Mode = "detect"
	ModeTrack  Mode = "track"
)

type Options struct {
	URL  string
	Mode Mode
	// ImageDir, when set, receives every telemetry frame as <timestamp>.jpg.
	ImageDir string
	Now      func() time.Time
}

type Controller struct {
	opts Options

	frames  atomic.Uint64
	manuals atomic.Uint64
}

func New(opts Options) *Controller {
	if opts.Mode == "" {
		opts.Mode = ModeDetect
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{opts: opts}
}

// Greeting is sent once after connecting.
func (c *Controller) Greeting() types.Event {
	if c.opts.Mode == ModeTrack {
		return trackEvent(0, 0, 0, 0)
	}
	return detectEvent(false)
}

// Respond returns the reply to an inbound event, if any. Telemetry without
// an image is answered with manual.
func (c *Controller) Respond(ev types.Event) (types.Event, bool, error) {
	if ev.Name != types.EventTelemetry {
		return types.Event{}, false, nil
	}
	encoded, _ := ev.Data["image"].(string)
	if encoded == "" {
		c.manuals.Add(1)
		return types.Event{Name: types.EventManual, Data: map[string]any{}}, true, nil
	}
	image, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return types.Event{}, false, fmt.Errorf("decode telemetry image: %w", err)
	}
	c.frames.Add(1)
	if err := c.saveFrame(image); err != nil {
		log.Printf("controller: save frame: %v", err)
	}

	if c.opts.Mode == ModeTrack {
		return trackEvent(1, 2, 3, 4), true, nil
	}
	// Flips every ten seconds of wall-clock time.
	return detectEvent((c.opts.Now().Second()/10)%2 == 1), true, nil
}

func (c *Controller) Frames() uint64  { return c.frames.Load() }
func (c *Controller) Manuals() uint64 { return c.manuals.Load() }

func (c *Controller) saveFrame(image []byte) error {
	if c.opts.ImageDir == "" {
		return nil
	}
	name := c.opts.Now().UTC().Format("2006_01_02_15_04_05.000") + ".jpg"
	return os.WriteFile(filepath.Join(c.opts.ImageDir, name), image, 0o644)
}

// Run dials the capture service and answers until ctx is done or the
// connection drops.
func (c *Controller) Run(ctx context.Context) error {
	if c.opts.ImageDir != "" {
		if err := os.MkdirAll(c.opts.ImageDir, 0o755); err != nil {
			return err
		}
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	defer conn.Close()
	log.Printf("controller: connected to %s (%s mode)", c.opts.URL, c.opts.Mode)

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	if err := c.send(conn, c.Greeting()); err != nil {
		return err
	}
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		ev, err := transport.DecodeJSONEvent(payload)
		if err != nil {
			log.Printf("controller: %v", err)
			continue
		}
		reply, ok, err := c.Respond(ev)
		if err != nil {
			log.Printf("controller: %v", err)
			continue
		}
		if !ok {
			continue
		}
		if err := c.send(conn, reply); err != nil {
			return err
		}
	}
}

func (c *Controller) send(conn *websocket.Conn, ev types.Event) error {
	payload, err := transport.EncodeJSONEvent(ev)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func detectEvent(detected bool) types.Event {
	return types.Event{Name: types.EventDetect, Data: map[string]any{"hasDetection": detected}}
}

func trackEvent(x, y, w, h float64) types.Event {
	return types.Event{Name: types.EventTrack, Data: map[string]any{
		"positionX":  x,
		"positionY":  y,
		"sizeWidth":  w,
		"sizeHeight": h,
	}}
}
