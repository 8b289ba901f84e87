package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"readquest-service/internal/app"
	"readquest-service/internal/auth"
	"readquest-service/internal/domain"
)

// HandleListAthletes serves the catalog index.
func HandleListAthletes(service *app.QuizService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := service.ListAthletes(r.Context())
		if err != nil {
			http.Error(w, "catalog unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, index)
	}
}

// HandleGetAthlete serves one athlete record with story and questions.
// The correct answers travel with the record; scoring authority still lives
// server-side in the quiz session.
func HandleGetAthlete(service *app.QuizService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		athleteID, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			http.Error(w, "invalid athlete id", http.StatusBadRequest)
			return
		}
		athlete, err := service.GetAthlete(r.Context(), athleteID)
		if errors.Is(err, domain.ErrAthleteNotFound) {
			http.Error(w, "athlete not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "catalog unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, athlete)
	}
}

// HandleGuestLogin issues a fresh guest identity token.
func HandleGuestLogin(issuer *auth.GuestIssuer) http.HandlerFunc {
	type out struct {
		Token  string `json:"token"`
		UserID string `json:"userId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		token, userID, err := issuer.Issue()
		if err != nil {
			log.Printf("guest login: %v", err)
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, out{Token: token, UserID: userID})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
