package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"agribank-quiz/internal/app"
	"agribank-quiz/internal/domain"
	"agribank-quiz/internal/quiz"
)

// WSHandler serves the quiz socket. Each connection plays one session at a time.
type WSHandler struct {
	service  *app.QuizService
	auth     Authenticator
	presence *app.Presence
	upgrader websocket.Upgrader
}

// NewWSHandler builds the socket handler. presence may be nil to skip single-device checks.
func NewWSHandler(service *app.QuizService, authn Authenticator, presence *app.Presence) *WSHandler {
	return &WSHandler{
		service:  service,
		auth:     authn,
		presence: presence,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	TemplateID     string         `json:"templateId"`
	Mode           domain.Mode    `json:"mode"`
	TimeLimit      int            `json:"timeLimit"`
	TotalQuestions int            `json:"totalQuestions"`
	Categories     map[string]int `json:"categories"`
}

type answerPayload struct {
	Position int `json:"position"`
	Option   int `json:"option"`
}

type positionPayload struct {
	Position int `json:"position"`
}

type navigatePayload struct {
	Direction string `json:"direction"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type recoverPayload struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type tickPayload struct {
	Remaining int `json:"remaining"`
}

// publicQuestion is what players see while answering: never the answer key.
type publicQuestion struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Category string   `json:"category"`
}

type startedPayload struct {
	Session   quiz.View        `json:"session"`
	Questions []publicQuestion `json:"questions"`
}

// ServeWS authenticates the player, upgrades the connection and runs the quiz protocol.
// The token comes from the Authorization header or the token query parameter; the
// optional device parameter is the login session watched for takeovers.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	claims, err := h.auth.Authenticate(token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	c := &wsClient{
		handler: h,
		conn:    conn,
		userID:  claims.UserID(),
		send:    make(chan outboundMessage[any], 32),
		done:    make(chan struct{}),
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		broken := false
		// Keeps draining after a failure so pushes never block.
		for msg := range c.send {
			if broken {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				broken = true
				_ = conn.Close()
				continue
			}
			if msg.Type == "terminated" {
				// Unblocks the read loop below.
				broken = true
				_ = conn.Close()
			}
		}
	}()

	if device := r.URL.Query().Get("device"); device != "" && h.presence != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			h.presence.Watch(ctx, c.userID, device, func() {
				c.push("terminated", errorPayload{Message: domain.ErrSessionTerminated.Error()})
			})
		}()
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		c.handle(ctx, inbound)
	}

	cancel()
	c.release()
	close(c.done)
	c.wg.Wait()
	close(c.send)
	<-writerDone
}

type wsClient struct {
	handler *WSHandler
	conn    *websocket.Conn
	userID  string
	send    chan outboundMessage[any]
	done    chan struct{}
	wg      sync.WaitGroup

	// session and unsubscribe are only touched by the read loop.
	session     *quiz.Session
	unsubscribe func()
}

func (c *wsClient) push(typ string, payload any) {
	select {
	case c.send <- outboundMessage[any]{Type: typ, Payload: payload}:
	case <-c.done:
	}
}

func (c *wsClient) handle(ctx context.Context, in inboundMessage) {
	svc := c.handler.service
	if in.Type == "start" {
		var p startPayload
		if err := decodePayload(in.Payload, &p); err != nil {
			c.push("error", errorPayload{Message: "invalid start payload"})
			return
		}
		var (
			session *quiz.Session
			err     error
		)
		if p.TemplateID != "" {
			session, err = svc.StartTemplate(ctx, c.userID, p.TemplateID)
		} else {
			session, err = svc.StartQuiz(ctx, c.userID, domain.QuizConfig{
				Mode:           p.Mode,
				TimeLimit:      p.TimeLimit,
				TotalQuestions: p.TotalQuestions,
				Categories:     p.Categories,
			})
		}
		if err != nil {
			c.fail(err)
			return
		}
		c.attach(session)
		return
	}

	s := c.session
	if s == nil {
		c.push("error", errorPayload{Message: domain.ErrSessionNotStarted.Error()})
		return
	}

	var err error
	switch in.Type {
	case "answer":
		var p answerPayload
		if err := decodePayload(in.Payload, &p); err != nil {
			c.push("error", errorPayload{Message: "invalid answer payload"})
			return
		}
		var fb quiz.Feedback
		if fb, err = s.Answer(p.Position, p.Option); err == nil && fb.Revealed {
			c.push("feedback", fb)
		}
	case "mark":
		var p positionPayload
		if err := decodePayload(in.Payload, &p); err != nil {
			c.push("error", errorPayload{Message: "invalid mark payload"})
			return
		}
		err = s.ToggleMark(p.Position)
	case "navigate":
		var p navigatePayload
		if err := decodePayload(in.Payload, &p); err != nil {
			c.push("error", errorPayload{Message: "invalid navigate payload"})
			return
		}
		switch p.Direction {
		case "next":
			_, err = s.Next()
		case "prev":
			_, err = s.Prev()
		default:
			c.push("error", errorPayload{Message: "direction must be next or prev"})
			return
		}
		if err == nil {
			_, _, err = s.Current()
		}
	case "jump":
		var p positionPayload
		if err := decodePayload(in.Payload, &p); err != nil {
			c.push("error", errorPayload{Message: "invalid jump payload"})
			return
		}
		if _, err = s.Jump(p.Position); err == nil {
			_, _, err = s.Current()
		}
	case "pause":
		err = s.Pause()
	case "resume":
		err = s.Resume()
	case "state":
	case "submit":
		// A first submit is announced through the subscription; repeats are answered directly.
		already := s.State() == quiz.StateSubmitted
		var result domain.QuizResult
		if result, err = svc.Submit(ctx, s.ID()); err == nil && already {
			c.push("result", result)
		}
		if err == nil {
			return
		}
	case "review":
		var review *quiz.Session
		if review, err = svc.Review(ctx, s.ID()); err == nil {
			c.attach(review)
			return
		}
	case "restart":
		var restarted *quiz.Session
		if restarted, err = svc.Restart(ctx, s.ID()); err == nil {
			c.push("started", started(restarted))
			return
		}
	default:
		c.push("error", errorPayload{Message: "unsupported message type"})
		return
	}

	if err != nil {
		c.fail(err)
		return
	}
	c.push("state", s.View())
}

// fail reports err to the player. A corrupted session is offered a restart instead.
func (c *wsClient) fail(err error) {
	if errors.Is(err, domain.ErrSessionCorrupted) && c.session != nil {
		c.push("recover", recoverPayload{SessionID: c.session.ID(), Message: err.Error()})
		return
	}
	c.push("error", errorPayload{Message: err.Error()})
}

// attach makes session the connection's current one and forwards its events.
func (c *wsClient) attach(session *quiz.Session) {
	c.release()
	c.session = session

	events, unsubscribe := session.Subscribe()
	c.unsubscribe = unsubscribe
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for ev := range events {
			switch ev.Type {
			case quiz.EventTick:
				c.push("tick", tickPayload{Remaining: ev.Remaining})
			case quiz.EventSubmitted:
				c.push("result", ev.Result)
			}
		}
	}()
	c.push("started", started(session))
}

// release stops forwarding events and abandons the current session. Submitted
// exam results are already persisted by then.
func (c *wsClient) release() {
	if c.session == nil {
		return
	}
	c.unsubscribe()
	c.handler.service.Abandon(c.session.ID())
	c.session = nil
	c.unsubscribe = nil
}

func started(s *quiz.Session) startedPayload {
	questions := s.Questions()
	public := make([]publicQuestion, len(questions))
	for i, q := range questions {
		public[i] = publicQuestion{ID: q.ID, Question: q.Question, Options: q.Options, Category: q.Category}
	}
	return startedPayload{Session: s.View(), Questions: public}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
