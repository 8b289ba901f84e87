package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"readquest-service/internal/app"
	"readquest-service/internal/auth"
	"readquest-service/internal/domain"
	"readquest-service/internal/infra/memory"
)

func TestWebSocketQuizFlow(t *testing.T) {
	issuer := auth.NewGuestIssuer("ws-test-secret", time.Hour)
	server := newWSServer(t, issuer)
	defer server.Close()

	token, userID, err := issuer.Issue()
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	conn := dialWS(t, server, token)
	defer conn.Close()

	_, payload := readNext(conn, t, "ready")
	if payload["userId"] != userID {
		t.Fatalf("expected identity %q, got %v", userID, payload["userId"])
	}

	writeAction(conn, t, "start", map[string]any{"athleteId": 1})
	_, payload = readNext(conn, t, "question")
	if payload["prompt"] != "What position does Patrick play?" {
		t.Fatalf("unexpected first question %v", payload)
	}

	// Submit without a selection is a no-op; the question comes back unchanged.
	writeAction(conn, t, "submit", map[string]any{"athleteId": 1})
	readNext(conn, t, "question")

	answers := []string{"Quarterback", "Super Bowl", "Gives money to schools"}
	for i, option := range answers {
		writeAction(conn, t, "select", map[string]any{"athleteId": 1, "option": option})
		readNext(conn, t, "question")

		writeAction(conn, t, "submit", map[string]any{"athleteId": 1})
		_, payload = readNext(conn, t, "answerResult")
		if payload["correct"] != true {
			t.Fatalf("answer %d: expected correct, got %v", i, payload)
		}

		writeAction(conn, t, "advance", map[string]any{"athleteId": 1})
		if i < len(answers)-1 {
			readNext(conn, t, "question")
		}
	}

	_, payload = readNext(conn, t, "quizComplete")
	if payload["score"] != float64(3) || payload["perfect"] != true {
		t.Fatalf("expected perfect 3/3, got %v", payload)
	}

	// The score landed in the progress store.
	writeAction(conn, t, "progress", map[string]any{"athleteId": 1})
	_, payload = readNext(conn, t, "progress")
	if payload["found"] != true {
		t.Fatalf("expected progress record, got %v", payload)
	}
}

func TestWebSocketStoryReadAndProgressList(t *testing.T) {
	issuer := auth.NewGuestIssuer("ws-test-secret", time.Hour)
	server := newWSServer(t, issuer)
	defer server.Close()

	token, _, err := issuer.Issue()
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	conn := dialWS(t, server, token)
	defer conn.Close()
	readNext(conn, t, "ready")

	writeAction(conn, t, "storyRead", map[string]any{"athleteId": 1, "timeSpentSeconds": 95})
	_, payload := readNext(conn, t, "progress")
	if payload["storyRead"] != true || payload["athleteName"] != "Patrick Mahomes" {
		t.Fatalf("unexpected progress payload %v", payload)
	}

	writeAction(conn, t, "progress", map[string]any{})
	readNext(conn, t, "progressList")
}

func TestWebSocketAnonymousConnectionStillQuizzes(t *testing.T) {
	server := newWSServer(t, auth.NewGuestIssuer("ws-test-secret", time.Hour))
	defer server.Close()

	conn := dialWS(t, server, "")
	defer conn.Close()

	_, payload := readNext(conn, t, "ready")
	if payload["userId"] != "" {
		t.Fatalf("expected anonymous identity, got %v", payload["userId"])
	}

	writeAction(conn, t, "start", map[string]any{"athleteId": 1})
	readNext(conn, t, "question")
}

func TestWebSocketUnknownAthleteError(t *testing.T) {
	server := newWSServer(t, auth.NewGuestIssuer("ws-test-secret", time.Hour))
	defer server.Close()

	conn := dialWS(t, server, "")
	defer conn.Close()
	readNext(conn, t, "ready")

	writeAction(conn, t, "start", map[string]any{"athleteId": 999})
	_, payload := readNext(conn, t, "error")
	if payload["message"] == "" {
		t.Fatalf("expected error message, got %v", payload)
	}
}

func newWSServer(t *testing.T, issuer *auth.GuestIssuer) *httptest.Server {
	t.Helper()
	catalog := memory.NewCatalog(memory.NewStaticCatalogLoader(map[int]domain.Athlete{
		1: wsSampleAthlete(),
	}), time.Minute)
	progress := app.NewProgressService(nil, 1)
	service := app.NewQuizService(catalog, memory.NewSessionStore(), progress)
	handler := NewWSHandler(service, nil, issuer)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.ServeWS)
	return httptest.NewServer(mux)
}

func dialWS(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws"
	if token != "" {
		u += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func writeAction(conn *websocket.Conn, t *testing.T, msgType string, payload map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": msgType, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	var payload map[string]any
	if len(msg.Payload) > 0 && msg.Payload[0] == '{' {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
	}
	return msg.Type, payload
}

func wsSampleAthlete() domain.Athlete {
	return domain.Athlete{
		ID:         1,
		Name:       "Patrick Mahomes",
		Sport:      "Football",
		ImageGlyph: "🏈",
		Story:      "Patrick throws the ball in amazing ways and helps kids learn.",
		Questions: []domain.Question{
			{
				ID:            "q1",
				Prompt:        "What position does Patrick play?",
				Options:       []string{"Quarterback", "Goalkeeper", "Pitcher"},
				CorrectOption: "Quarterback",
				Explanation:   "Patrick is a quarterback.",
			},
			{
				ID:            "q2",
				Prompt:        "Which big game has Patrick won?",
				Options:       []string{"World Series", "Super Bowl", "Stanley Cup"},
				CorrectOption: "Super Bowl",
				Explanation:   "The Super Bowl is football's championship game.",
			},
			{
				ID:            "q3",
				Prompt:        "How does Patrick help kids?",
				Options:       []string{"Gives money to schools", "Teaches math", "Coaches soccer"},
				CorrectOption: "Gives money to schools",
				Explanation:   "His foundation supports schools and kids' programs.",
			},
		},
	}
}
