// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/inertial_activity/internal/activity"
	"github.com/relabs-tech/inertial_activity/internal/httputil"
)

// Controls are the runtime switches exposed on /api/controls.
type Controls interface {
	InferenceEnabled() bool
	SetInferenceEnabled(on bool)
	Remote() bool
	SetRemote(on bool) error
}

// ControlState is the body of /api/controls.
type ControlState struct {
	Inference *bool `json:"inference,omitempty"`
	Remote    *bool `json:"remote,omitempty"`
}

// StatusResponse is the body of /api/status.
type StatusResponse struct {
	InFlight         int64  `json:"in_flight"`
	Dispatched       uint64 `json:"dispatched"`
	Failed           uint64 `json:"failed"`
	LastElapsedMS    int64  `json:"last_elapsed_ms"`
	LastError        string `json:"last_error,omitempty"`
	InferenceEnabled bool   `json:"inference_enabled"`
	Remote           bool   `json:"remote"`
}

const wsWriteWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// WebPresenter serves the latest result, status, controls, a websocket
// stream and a radar chart.
type WebPresenter struct {
	controls Controls
	stats    Stats

	mu        sync.RWMutex
	last      ResultMessage
	lastError string

	clientsMu sync.Mutex
	clients   map[*wsClient]struct{}
}

// NewWebPresenter starts with the all-zero vector.
func NewWebPresenter(controls Controls, stats Stats) *WebPresenter {
	return &WebPresenter{
		controls: controls,
		stats:    stats,
		last:     ZeroMessage(),
		clients:  make(map[*wsClient]struct{}),
	}
}

// Present stores successful results and pushes every message to the
// websocket clients. Slow clients are dropped.
func (w *WebPresenter) Present(msg ResultMessage) {
	w.mu.Lock()
	if msg.OK() {
		w.last = msg
	} else {
		w.lastError = msg.Error
	}
	w.mu.Unlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("web: marshal error: %v", err)
		return
	}

	w.clientsMu.Lock()
	defer w.clientsMu.Unlock()
	for c := range w.clients {
		select {
		case c.send <- payload:
		default:
			log.Printf("web: dropping slow websocket client %s", c.conn.RemoteAddr())
			delete(w.clients, c)
			close(c.send)
		}
	}
}

// Latest returns the most recent successful result, or the zero message.
func (w *WebPresenter) Latest() ResultMessage {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}

// Handler returns the HTTP routes.
func (w *WebPresenter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/activity", w.handleActivity)
	mux.HandleFunc("/api/status", w.handleStatus)
	mux.HandleFunc("/api/controls", w.handleControls)
	mux.HandleFunc("/ws", w.handleWS)
	mux.HandleFunc("/chart", w.handleChart)
	mux.HandleFunc("/", func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(rw, r)
			return
		}
		http.Redirect(rw, r, "/chart", http.StatusFound)
	})
	return mux
}

// Close disconnects all websocket clients.
func (w *WebPresenter) Close() {
	w.clientsMu.Lock()
	defer w.clientsMu.Unlock()
	for c := range w.clients {
		delete(w.clients, c)
		close(c.send)
	}
}

func (w *WebPresenter) handleActivity(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(rw, http.MethodGet)
		return
	}
	httputil.WriteJSONOK(rw, w.Latest())
}

func (w *WebPresenter) handleStatus(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(rw, http.MethodGet)
		return
	}

	w.mu.RLock()
	resp := StatusResponse{
		LastElapsedMS: w.last.ElapsedMillis,
		LastError:     w.lastError,
	}
	w.mu.RUnlock()

	if w.stats != nil {
		resp.InFlight = w.stats.InFlight()
		resp.Dispatched = w.stats.Dispatched()
		resp.Failed = w.stats.Failed()
	}
	if w.controls != nil {
		resp.InferenceEnabled = w.controls.InferenceEnabled()
		resp.Remote = w.controls.Remote()
	}
	httputil.WriteJSONOK(rw, resp)
}

func (w *WebPresenter) controlState() ControlState {
	inference := w.controls.InferenceEnabled()
	remote := w.controls.Remote()
	return ControlState{Inference: &inference, Remote: &remote}
}

func (w *WebPresenter) handleControls(rw http.ResponseWriter, r *http.Request) {
	if w.controls == nil {
		httputil.Unavailable(rw, "controls not available")
		return
	}

	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(rw, w.controlState())

	case http.MethodPost:
		var req ControlState
		if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 1<<10)).Decode(&req); err != nil {
			httputil.BadRequest(rw, "invalid JSON body: "+err.Error())
			return
		}
		if req.Remote != nil {
			if err := w.controls.SetRemote(*req.Remote); err != nil {
				httputil.Conflict(rw, err.Error())
				return
			}
		}
		if req.Inference != nil {
			w.controls.SetInferenceEnabled(*req.Inference)
		}
		log.Printf("web: controls updated: inference=%v remote=%v", w.controls.InferenceEnabled(), w.controls.Remote())
		httputil.WriteJSONOK(rw, w.controlState())

	default:
		httputil.MethodNotAllowed(rw, http.MethodGet, http.MethodPost)
	}
}

func (w *WebPresenter) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, 16)}
	if initial, err := json.Marshal(w.Latest()); err == nil {
		c.send <- initial
	}

	w.clientsMu.Lock()
	w.clients[c] = struct{}{}
	w.clientsMu.Unlock()

	go w.writeLoop(c)
	w.readLoop(c)
}

// readLoop discards client messages and unregisters the client on close.
func (w *WebPresenter) readLoop(c *wsClient) {
	defer func() {
		w.clientsMu.Lock()
		if _, ok := w.clients[c]; ok {
			delete(w.clients, c)
			close(c.send)
		}
		w.clientsMu.Unlock()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("web: websocket read error: %v", err)
			}
			return
		}
	}
}

func (w *WebPresenter) writeLoop(c *wsClient) {
	defer c.conn.Close()
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("web: websocket write error: %v", err)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
}

func (w *WebPresenter) handleChart(rw http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := RenderRadar(&buf, w.Latest()); err != nil {
		log.Printf("web: chart render error: %v", err)
		http.Error(rw, "chart render failed", http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = rw.Write(buf.Bytes())
}

// RenderRadar writes an HTML radar chart of msg's probabilities.
func RenderRadar(out io.Writer, msg ResultMessage) error {
	if len(msg.Probabilities) != activity.LabelCount {
		return errors.New("chart: probability vector does not match labels")
	}

	indicators := make([]*opts.Indicator, 0, activity.LabelCount)
	for _, label := range activity.Labels {
		indicators = append(indicators, &opts.Indicator{Name: label, Max: 1})
	}

	subtitle := "waiting for first result"
	if msg.OK() {
		subtitle = fmt.Sprintf("%s %.2f (%s, %dms)", msg.Label, msg.Probability, msg.Backend, msg.ElapsedMillis)
	}

	radar := charts.NewRadar()
	radar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Activity Probability Web", Width: "720px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Activity Probability Web", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithRadarComponentOpts(opts.RadarComponent{
			Indicator:   indicators,
			Shape:       "polygon",
			SplitNumber: 5,
		}),
	)
	radar.AddSeries("probabilities", []opts.RadarData{{Name: "Probabilities", Value: msg.Probabilities}})
	return radar.Render(out)
}
