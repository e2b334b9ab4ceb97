package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/samirrijal/aparka/internal/core/domain"
	"github.com/samirrijal/aparka/internal/core/ports"
	"github.com/samirrijal/aparka/internal/core/usecases"
	"github.com/samirrijal/aparka/internal/pkg/metrics"
)

// The WebSocket protocol drives one navigation session per connection.
// The client streams inputs (positions, clicks, commands); the server
// streams render operations (markers, circles, lines, view changes) and
// toasts. The map engine runs entirely server-side; the client is a dumb
// renderer.

// wsClientMessage is sent from client to server.
type wsClientMessage struct {
	Type string `json:"type"` // position | position_error | click | marker_click | drag_end | select | navigate | close_route | create_start | create_confirm | create_cancel | arrival
	// position
	Lat      float64 `json:"lat,omitempty"`
	Lon      float64 `json:"lon,omitempty"`
	Accuracy float64 `json:"accuracy,omitempty"`
	// position_error
	Reason string `json:"reason,omitempty"` // permission_denied | unavailable | timeout
	// marker_click / select / drag_end
	MarkerID string `json:"marker_id,omitempty"`
	// create_confirm
	DisplayName    string `json:"display_name,omitempty"`
	AvailableSpots int    `json:"available_spots,omitempty"`
	// arrival
	Found bool `json:"found,omitempty"`
}

// wsServerMessage is a render operation or notification sent to the client.
type wsServerMessage struct {
	Type string `json:"type"` // add_marker | move_marker | marker_icon | remove_marker | add_circle | remove_circle | draw_line | remove_line | set_center | fit_bounds | toast | spot_created | error

	ID      string               `json:"id,omitempty"`
	At      *domain.GeoPoint     `json:"at,omitempty"`
	Options *ports.MarkerOptions `json:"options,omitempty"`
	Icon    string               `json:"icon,omitempty"`
	Radius  float64              `json:"radius,omitempty"`
	Line    []domain.GeoPoint    `json:"line,omitempty"`
	Bounds  *domain.Bounds       `json:"bounds,omitempty"`
	Padding float64              `json:"padding,omitempty"`

	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`

	Spot *domain.PublicSpot `json:"spot,omitempty"`
}

// wsConn is a write-locked wrapper shared by the surface, notifier and
// session loop. Fiber's websocket conn is not safe for concurrent writes.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) send(msg wsServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.PingMessage, nil)
}

// wsSurface implements ports.MapSurface by emitting render ops.
// Input handlers are dispatched from the connection's read loop.
type wsSurface struct {
	out *wsConn

	mu         sync.Mutex
	nextID     int
	clicks     map[int]func(domain.GeoPoint)
	markerTaps map[int]func(string)
	dragEnds   map[int]func(string, domain.GeoPoint)
}

func newWSSurface(out *wsConn) *wsSurface {
	return &wsSurface{
		out:        out,
		clicks:     make(map[int]func(domain.GeoPoint)),
		markerTaps: make(map[int]func(string)),
		dragEnds:   make(map[int]func(string, domain.GeoPoint)),
	}
}

func (s *wsSurface) AddMarker(id string, at domain.GeoPoint, opts ports.MarkerOptions) {
	s.out.send(wsServerMessage{Type: "add_marker", ID: id, At: &at, Options: &opts})
}

func (s *wsSurface) MoveMarker(id string, to domain.GeoPoint) {
	s.out.send(wsServerMessage{Type: "move_marker", ID: id, At: &to})
}

func (s *wsSurface) SetMarkerIcon(id, icon string) {
	s.out.send(wsServerMessage{Type: "marker_icon", ID: id, Icon: icon})
}

func (s *wsSurface) RemoveMarker(id string) {
	s.out.send(wsServerMessage{Type: "remove_marker", ID: id})
}

func (s *wsSurface) AddCircle(id string, center domain.GeoPoint, radiusMeters float64) {
	s.out.send(wsServerMessage{Type: "add_circle", ID: id, At: &center, Radius: radiusMeters})
}

func (s *wsSurface) RemoveCircle(id string) {
	s.out.send(wsServerMessage{Type: "remove_circle", ID: id})
}

func (s *wsSurface) DrawLine(id string, line domain.GeoLineString) {
	s.out.send(wsServerMessage{Type: "draw_line", ID: id, Line: line.Coordinates})
}

func (s *wsSurface) RemoveLine(id string) {
	s.out.send(wsServerMessage{Type: "remove_line", ID: id})
}

func (s *wsSurface) SetCenter(at domain.GeoPoint) {
	s.out.send(wsServerMessage{Type: "set_center", At: &at})
}

func (s *wsSurface) FitBounds(bounds domain.Bounds, paddingMeters float64) {
	s.out.send(wsServerMessage{Type: "fit_bounds", Bounds: &bounds, Padding: paddingMeters})
}

func (s *wsSurface) OnClick(fn func(at domain.GeoPoint)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.clicks[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.clicks, id)
	}
}

func (s *wsSurface) OnMarkerClick(fn func(markerID string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.markerTaps[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.markerTaps, id)
	}
}

func (s *wsSurface) OnMarkerDragEnd(fn func(markerID string, to domain.GeoPoint)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.dragEnds[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.dragEnds, id)
	}
}

func (s *wsSurface) dispatchClick(at domain.GeoPoint) {
	s.mu.Lock()
	fns := make([]func(domain.GeoPoint), 0, len(s.clicks))
	for _, fn := range s.clicks {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(at)
	}
}

func (s *wsSurface) dispatchMarkerClick(id string) {
	s.mu.Lock()
	fns := make([]func(string), 0, len(s.markerTaps))
	for _, fn := range s.markerTaps {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

func (s *wsSurface) dispatchDragEnd(id string, to domain.GeoPoint) {
	s.mu.Lock()
	fns := make([]func(string, domain.GeoPoint), 0, len(s.dragEnds))
	for _, fn := range s.dragEnds {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(id, to)
	}
}

// wsNotifier implements ports.Notifier over the socket.
type wsNotifier struct {
	out *wsConn
}

func (n *wsNotifier) Toast(level, message string) {
	n.out.send(wsServerMessage{Type: "toast", Level: level, Message: message})
}

// wsGeoSource implements ports.GeolocationSource from client position
// messages.
type wsGeoSource struct {
	mu       sync.Mutex
	onUpdate func(domain.GeoPoint, float64)
	onError  func(domain.GeoErrorReason)
}

func (g *wsGeoSource) Subscribe(
	onUpdate func(point domain.GeoPoint, accuracyMeters float64),
	onError func(reason domain.GeoErrorReason),
) (func(), error) {
	g.mu.Lock()
	g.onUpdate = onUpdate
	g.onError = onError
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		g.onUpdate = nil
		g.onError = nil
		g.mu.Unlock()
	}, nil
}

func (g *wsGeoSource) feed(point domain.GeoPoint, accuracy float64) {
	g.mu.Lock()
	fn := g.onUpdate
	g.mu.Unlock()
	if fn != nil {
		fn(point, accuracy)
	}
}

func (g *wsGeoSource) fail(reason domain.GeoErrorReason) {
	g.mu.Lock()
	fn := g.onError
	g.mu.Unlock()
	if fn != nil {
		fn(reason)
	}
}

// sessions tracks every live navigator so a broker refresh event can be
// fanned out without waiting for each session's next poll tick.
var sessions = struct {
	mu   sync.Mutex
	navs map[string]*usecases.Navigator
}{navs: make(map[string]*usecases.Navigator)}

func registerSession(id string, nav *usecases.Navigator) {
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	sessions.navs[id] = nav
}

func unregisterSession(id string) {
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	delete(sessions.navs, id)
}

// BroadcastRefresh forces an immediate spot snapshot refresh on every
// connected session. Wired to the broker's spot refresh subject.
func BroadcastRefresh(ctx context.Context) {
	sessions.mu.Lock()
	navs := make([]*usecases.Navigator, 0, len(sessions.navs))
	for _, nav := range sessions.navs {
		navs = append(navs, nav)
	}
	sessions.mu.Unlock()
	for _, nav := range navs {
		nav.RefreshNow(ctx)
	}
}

func geoReason(s string) domain.GeoErrorReason {
	switch s {
	case "permission_denied":
		return domain.GeoPermissionDenied
	case "timeout":
		return domain.GeoTimeout
	default:
		return domain.GeoUnavailable
	}
}

// SessionHandler upgrades to WebSocket and runs one navigation session
// for the lifetime of the connection.
func SessionHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		userID, _ := c.Locals("userID").(string)
		isAdmin, _ := c.Locals("isAdmin").(bool)
		if userID == "" {
			userID = "anonymous"
		}
		sessionID := uuid.NewString()

		log := slog.Default().With("session", sessionID, "user", userID)
		log.Info("ws session connected", "remote", c.RemoteAddr().String())
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		out := &wsConn{conn: c}
		surface := newWSSurface(out)
		notifier := &wsNotifier{out: out}
		source := &wsGeoSource{}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		nav := usecases.NewNavigator(
			sessionID, userID, isAdmin,
			surface, notifier, source,
			deps.Routing, deps.Publisher, deps.Spots,
			log, deps.Engine,
		)
		if err := nav.Start(ctx); err != nil {
			log.Error("navigator start", "error", err)
			out.send(wsServerMessage{Type: "error", Message: "session failed to start"})
			return
		}
		defer nav.Close()
		registerSession(sessionID, nav)
		defer unregisterSession(sessionID)

		// Keep-alive ping
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := out.ping(); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var msg wsClientMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				out.send(wsServerMessage{Type: "error", Message: "invalid JSON"})
				continue
			}

			switch msg.Type {
			case "position":
				source.feed(domain.GeoPoint{Lat: msg.Lat, Lon: msg.Lon}, msg.Accuracy)

			case "position_error":
				source.fail(geoReason(msg.Reason))

			case "click":
				surface.dispatchClick(domain.GeoPoint{Lat: msg.Lat, Lon: msg.Lon})

			case "marker_click":
				surface.dispatchMarkerClick(msg.MarkerID)

			case "drag_end":
				surface.dispatchDragEnd(msg.MarkerID, domain.GeoPoint{Lat: msg.Lat, Lon: msg.Lon})

			case "select":
				nav.SelectMarker(ctx, msg.MarkerID)

			case "navigate":
				if err := nav.StartNavigating(); err != nil {
					out.send(wsServerMessage{Type: "error", Message: err.Error()})
				}

			case "close_route":
				nav.CloseRoute()

			case "create_start":
				nav.EnterCreationMode()

			case "create_cancel":
				nav.LeaveCreationMode()

			case "create_confirm":
				spot, err := nav.ConfirmPlacement(ctx, msg.DisplayName, msg.AvailableSpots)
				if err != nil {
					continue // navigator already toasted the reason
				}
				out.send(wsServerMessage{Type: "spot_created", Spot: spot})

			case "arrival":
				_ = nav.ConfirmArrival(ctx, msg.Found)

			default:
				out.send(wsServerMessage{Type: "error", Message: "unknown message type: " + msg.Type})
			}
		}

		log.Info("ws session disconnected")
	}
}
