package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/spleefx/spleefx/internal/domain"
	"github.com/spleefx/spleefx/internal/host"
	"github.com/spleefx/spleefx/internal/listener"
	"github.com/spleefx/spleefx/internal/message"
	"github.com/spleefx/spleefx/internal/player"
	"github.com/spleefx/spleefx/internal/team"
)

// Client operations on the play socket
const (
	OpJoin       = "join"
	OpLeave      = "leave"
	OpMove       = "move"
	OpBreak      = "break"
	OpJump       = "jump"
	OpChat       = "chat"
	OpScoreboard = "scoreboard"
)

// PlayRequest is one operation sent by a player client
type PlayRequest struct {
	Op    string  `json:"op"`
	Arena string  `json:"arena,omitempty"`
	Team  string  `json:"team,omitempty"`
	World string  `json:"world,omitempty"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
	Z     float64 `json:"z,omitempty"`
	Yaw   float32 `json:"yaw,omitempty"`
	Pitch float32 `json:"pitch,omitempty"`
	Text  string  `json:"text,omitempty"`
}

// PlayResponse is sent to a player client. Type is "notice" for things the
// game shows the player and "result" or "scoreboard" in reply to a request.
type PlayResponse struct {
	Type       string            `json:"type"`
	Op         string            `json:"op,omitempty"`
	OK         bool              `json:"ok,omitempty"`
	Error      string            `json:"error,omitempty"`
	Notice     *host.Notice      `json:"notice,omitempty"`
	Scoreboard map[string]string `json:"scoreboard,omitempty"`
}

var (
	errNotTracked  = errors.New("player is not connected")
	errRateLimited = errors.New("too many requests")
	errUnknownOp   = errors.New("unknown op")
	errUnknownTeam = errors.New("unknown team")
)

// playClient is one player connected over the play socket
type playClient struct {
	r       *Router
	conn    *websocket.Conn
	vp      *host.VirtualPlayer
	send    chan PlayResponse
	limiter *rate.Limiter
	done    chan struct{}
}

// handlePlay connects a player client. The player is identified by the JWT
// in the token query parameter or the Authorization header.
func (r *Router) handlePlay(w http.ResponseWriter, req *http.Request) {
	claims := r.getAuthClaims(req)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id, err := claims.PlayerID()
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	c := &playClient{
		r:       r,
		conn:    conn,
		vp:      host.NewVirtualPlayer(id, claims.Name),
		send:    make(chan PlayResponse, 256),
		limiter: rate.NewLimiter(r.playRate, r.playBurst),
		done:    make(chan struct{}),
	}
	if claims.IsAdmin {
		c.vp.Grant(listener.CommandExemptPermission)
	}
	c.vp.OnNotice(func(n host.Notice) {
		c.push(PlayResponse{Type: "notice", Notice: &n})
	})

	if err := r.onTick(context.Background(), func() { r.listener.OnJoin(c.vp) }); err != nil {
		log.Printf("Warning: player %s could not join: %v", claims.Name, err)
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		conn.Close()
		return
	}
	log.Printf("Player %s connected from %s", claims.Name, getClientIP(req))

	go c.writePump()
	c.readPump()
}

// push queues a response without blocking the tick goroutine
func (c *playClient) push(resp PlayResponse) {
	select {
	case <-c.done:
	case c.send <- resp:
	default:
		log.Printf("Warning: dropping %s for %s, send buffer full", resp.Type, c.vp.Name())
	}
}

func (c *playClient) readPump() {
	defer func() {
		close(c.done)
		c.vp.SetOnline(false)
		if err := c.r.onTick(context.Background(), func() { c.r.listener.OnDisconnect(c.vp) }); err != nil {
			log.Printf("Warning: disconnect of %s: %v", c.vp.Name(), err)
		}
		c.conn.Close()
		log.Printf("Player %s disconnected", c.vp.Name())
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var req PlayRequest
		if err := c.conn.ReadJSON(&req); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.push(PlayResponse{Type: "result", Error: "malformed request"})
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handle(req)
	}
}

func (c *playClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case resp := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(resp); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle runs one request and replies with its result
func (c *playClient) handle(req PlayRequest) {
	resp := PlayResponse{Type: "result", Op: req.Op}
	if !c.limiter.Allow() {
		resp.Error = errRateLimited.Error()
		c.push(resp)
		return
	}

	var ok bool
	var opErr error
	err := c.r.onTick(context.Background(), func() {
		p := c.r.manager.Services().Players.Get(c.vp.ID())
		if p == nil {
			opErr = errNotTracked
			return
		}
		switch req.Op {
		case OpJoin:
			ok, opErr = c.join(p, req)
		case OpLeave:
			ok, opErr = c.leave(p)
		case OpMove:
			ok = c.move(req)
		case OpBreak:
			ok = c.r.listener.OnBlockBreak(&listener.BlockBreakEvent{
				Player: c.vp,
				World:  c.world(req.World),
				Pos:    host.Location{X: req.X, Y: req.Y, Z: req.Z}.Block(),
			})
		case OpJump:
			ok = c.jump(p)
		case OpChat:
			ok = c.chat(p, req.Text)
		case OpScoreboard:
			resp.Type = "scoreboard"
			resp.Scoreboard, ok = c.scoreboard(p)
		default:
			opErr = fmt.Errorf("%w %q", errUnknownOp, req.Op)
		}
	})
	if err == nil {
		err = opErr
	}
	resp.OK = ok
	if err != nil {
		resp.Error = err.Error()
	}
	c.push(resp)
}

func (c *playClient) world(name string) string {
	if name != "" {
		return name
	}
	return c.vp.Location().World
}

func (c *playClient) join(p *player.ArenaPlayer, req PlayRequest) (bool, error) {
	e, err := c.r.manager.Get(req.Arena)
	if err != nil {
		c.sendMessage(message.UnknownArena, req.Arena)
		return false, nil
	}
	var t *team.Team
	if req.Team != "" {
		color := domain.TeamColor(strings.ToUpper(req.Team))
		for _, candidate := range e.Teams() {
			if candidate.Color == color {
				t = candidate
			}
		}
		if t == nil {
			return false, errUnknownTeam
		}
	}
	return e.Join(p, t)
}

func (c *playClient) leave(p *player.ArenaPlayer) (bool, error) {
	e := c.r.manager.EngineOf(p)
	if e == nil {
		c.sendMessage(message.NotInArena, "")
		return false, nil
	}
	if err := e.Quit(p); err != nil {
		return false, err
	}
	return true, nil
}

// move updates the position. Falling below the death level is detected by
// the arena's elimination sweep.
func (c *playClient) move(req PlayRequest) bool {
	c.vp.MoveTo(host.Location{
		World: c.world(req.World),
		X:     req.X,
		Y:     req.Y,
		Z:     req.Z,
		Yaw:   req.Yaw,
		Pitch: req.Pitch,
	})
	return true
}

func (c *playClient) jump(p *player.ArenaPlayer) bool {
	e := c.r.manager.EngineOf(p)
	if e == nil {
		return false
	}
	before := e.Ability(p.ID(), domain.AbilityDoubleJump)
	if !c.r.listener.OnToggleFlight(c.vp) {
		return false
	}
	return e.Ability(p.ID(), domain.AbilityDoubleJump) < before
}

// chat runs slash commands through the in-game command filter and relays
// plain text to the other players of the arena
func (c *playClient) chat(p *player.ArenaPlayer, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if strings.HasPrefix(text, "/") {
		if c.r.listener.OnCommand(c.vp, text) {
			return false
		}
		if err := c.r.manager.Services().Commands.Dispatch(host.SenderPlayer, c.vp, text); err != nil {
			log.Printf("Warning: command %q of %s failed: %v", text, c.vp.Name(), err)
			return false
		}
		return true
	}
	line := fmt.Sprintf("<%s> %s", c.vp.Name(), text)
	e := c.r.manager.EngineOf(p)
	if e == nil {
		c.vp.SendMessage(line)
		return true
	}
	for _, other := range e.Players() {
		other.SendMessage(line)
	}
	return true
}

func (c *playClient) scoreboard(p *player.ArenaPlayer) (map[string]string, bool) {
	e := c.r.manager.EngineOf(p)
	if e == nil {
		return nil, false
	}
	values := make(map[string]string)
	for k, fn := range e.ScoreboardMap(p) {
		values[k] = fn()
	}
	return values, true
}

func (c *playClient) sendMessage(key message.Key, extra string) {
	c.r.manager.Services().Messages.Send(c.vp, key, message.Context{
		Player: c.vp.Name(),
		Extra:  extra,
		Number: -1,
	})
}
