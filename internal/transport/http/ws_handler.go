package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"readquest-service/internal/app"
	"readquest-service/internal/auth"
	"readquest-service/internal/domain"
)

// WSHandler drives reading and quizzing over a websocket. One connection
// serves one user (identified by an optional guest token); connections
// without a valid identity can still read and quiz, but progress is not
// tracked for them.
type WSHandler struct {
	service  *app.QuizService
	syncer   *app.SyncCoordinator
	issuer   *auth.GuestIssuer
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, syncer *app.SyncCoordinator, issuer *auth.GuestIssuer) *WSHandler {
	return &WSHandler{
		service: service,
		syncer:  syncer,
		issuer:  issuer,
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

type actionPayload struct {
	AthleteID        int    `json:"athleteId"`
	Option           string `json:"option,omitempty"`
	TimeSpentSeconds int    `json:"timeSpentSeconds,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// reading/quizzing use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := h.identify(r.URL.Query().Get("token"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	if userID != "" {
		if err := h.service.HydrateProgress(r.Context(), userID); err != nil {
			log.Printf("ws: progress hydrate failed for %s: %v", userID, err)
		}
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	statusDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// Forward best-effort sync notifications ("progress may not be saved
	// right now") for this user's records.
	var cancelStatuses func()
	if h.syncer != nil && userID != "" {
		statuses, cancel := h.syncer.Subscribe(userID)
		cancelStatuses = cancel
		go func() {
			defer close(statusDone)
			for {
				select {
				case status, ok := <-statuses:
					if !ok {
						return
					}
					select {
					case send <- outboundMessage[any]{Type: "syncStatus", Payload: status}:
					case <-closeSignals:
						return
					}
				case <-closeSignals:
					return
				}
			}
		}()
	} else {
		close(statusDone)
	}

	send <- outboundMessage[any]{Type: "ready", Payload: map[string]any{"userId": userID}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		var payload actionPayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid payload"}}
				continue
			}
		}
		h.dispatch(r, send, userID, inbound.Type, payload)
	}

	close(closeSignals)
	if cancelStatuses != nil {
		cancelStatuses()
	}
	<-statusDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(r *http.Request, send chan outboundMessage[any], userID, msgType string, payload actionPayload) {
	ctx := r.Context()
	switch msgType {
	case "start":
		view, err := h.service.StartQuiz(ctx, userID, payload.AthleteID)
		h.sendViewOrError(send, view, err)
	case "select":
		view, err := h.service.SelectOption(ctx, userID, payload.AthleteID, payload.Option)
		h.sendViewOrError(send, view, err)
	case "submit":
		result, submitted, err := h.service.SubmitAnswer(ctx, userID, payload.AthleteID)
		if err != nil {
			h.sendError(send, err)
			return
		}
		if !submitted {
			// Submit without a selection is a no-op; re-send the unchanged view.
			view, err := h.service.CurrentQuestion(userID, payload.AthleteID)
			h.sendViewOrError(send, view, err)
			return
		}
		send <- outboundMessage[any]{Type: "answerResult", Payload: result}
	case "advance":
		view, result, err := h.service.Advance(ctx, userID, payload.AthleteID)
		if err != nil {
			h.sendError(send, err)
			return
		}
		if result != nil {
			send <- outboundMessage[any]{Type: "quizComplete", Payload: *result}
			return
		}
		send <- outboundMessage[any]{Type: "question", Payload: view}
	case "restart":
		view, err := h.service.Restart(ctx, userID, payload.AthleteID)
		h.sendViewOrError(send, view, err)
	case "storyRead":
		rec, err := h.service.MarkStoryRead(ctx, userID, payload.AthleteID, payload.TimeSpentSeconds)
		if err != nil {
			h.sendError(send, err)
			return
		}
		send <- outboundMessage[any]{Type: "progress", Payload: rec}
	case "progress":
		if payload.AthleteID != 0 {
			rec, ok := h.service.Progress(userID, payload.AthleteID)
			send <- outboundMessage[any]{Type: "progress", Payload: map[string]any{"found": ok, "record": rec}}
			return
		}
		send <- outboundMessage[any]{Type: "progressList", Payload: h.service.ProgressList(userID)}
	default:
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
	}
}

func (h *WSHandler) sendViewOrError(send chan outboundMessage[any], view domain.QuestionView, err error) {
	if err != nil {
		h.sendError(send, err)
		return
	}
	send <- outboundMessage[any]{Type: "question", Payload: view}
}

func (h *WSHandler) sendError(send chan outboundMessage[any], err error) {
	msg := "internal error"
	if errors.Is(err, domain.ErrAthleteNotFound) || errors.Is(err, domain.ErrSessionNotFound) {
		msg = err.Error()
	}
	send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// identify resolves an optional guest token to a user ID. Absent or invalid
// tokens mean an anonymous connection, never a rejected one.
func (h *WSHandler) identify(token string) string {
	if token == "" || h.issuer == nil {
		return ""
	}
	userID, err := h.issuer.Verify(token)
	if err != nil {
		log.Printf("ws: ignoring invalid token: %v", err)
		return ""
	}
	return userID
}
