package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"quizzy-service/internal/app"
	"quizzy-service/internal/domain"
)

type profileResponse struct {
	Message  string `json:"message,omitempty"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
	Stars    int64  `json:"stars"`
	Streak   int    `json:"quizStreak"`
}

func newProfileResponse(p domain.Profile, message string) profileResponse {
	return profileResponse{
		Message:  message,
		Name:     p.Name,
		ImageURL: p.ImageURL,
		Stars:    p.Stars,
		Streak:   p.Streak,
	}
}

type updateProfileRequest struct {
	Name     *string `json:"name"`
	ImageURL *string `json:"imageUrl"`
}

type completionRequest struct {
	StarsEarned float64 `json:"starsEarned"`
}

type completionResponse struct {
	Message string `json:"message"`
	Stars   int64  `json:"stars"`
	Streak  int    `json:"quizStreak"`
}

type uploadResponse struct {
	ImageURL string `json:"imageUrl"`
}

type questionResponse struct {
	Question domain.Question `json:"question"`
}

// ProfileHandler serves profiles, avatar upload, the leaderboard and quiz endpoints.
type ProfileHandler struct {
	profiles       *app.ProfileService
	questions      *app.QuestionBank
	metrics        *Metrics
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewProfileHandler(profiles *app.ProfileService, questions *app.QuestionBank, metrics *Metrics, maxUploadBytes int64, logger *zap.Logger) *ProfileHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 5 << 20
	}
	return &ProfileHandler{
		profiles:       profiles,
		questions:      questions,
		metrics:        metrics,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		writeError(w, h.logger, "get profile", domain.ErrInvalidUserID, "")
		return
	}
	profile, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, "get profile", err, "Failed to fetch profile")
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(profile, ""))
}

func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFrom(r.Context())
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "update profile", err, "Failed to update profile")
		return
	}
	profile, err := h.profiles.UpdateProfile(r.Context(), session.UserID, app.ProfileUpdate{
		Name:     req.Name,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		writeError(w, h.logger, "update profile", err, "Failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(profile, "Profile updated successfully"))
}

func (h *ProfileHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFrom(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, h.logger, "upload image", domain.ErrFileTooLarge, "")
			return
		}
		writeError(w, h.logger, "upload image", domain.ErrNoFileUploaded, "")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, h.logger, "upload image", domain.ErrNoFileUploaded, "")
		return
	}
	defer file.Close()

	ref, err := h.profiles.UploadAvatar(r.Context(), session.UserID, header.Filename, file)
	if err != nil {
		writeError(w, h.logger, "upload image", err, "Image upload failed")
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{ImageURL: ref})
}

func (h *ProfileHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.profiles.Leaderboard(r.Context())
	if err != nil {
		writeError(w, h.logger, "leaderboard", err, "Failed to fetch leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *ProfileHandler) CompleteQuiz(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFrom(r.Context())
	var req completionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "quiz completed", domain.ErrInvalidStars, "")
		return
	}
	if req.StarsEarned <= 0 || req.StarsEarned != math.Trunc(req.StarsEarned) || req.StarsEarned > math.MaxInt32 {
		writeError(w, h.logger, "quiz completed", domain.ErrInvalidStars, "")
		return
	}

	res, err := h.profiles.RecordQuizCompletion(r.Context(), session.UserID, int64(req.StarsEarned))
	if err != nil {
		writeError(w, h.logger, "quiz completed", err, "Server error")
		return
	}
	if h.metrics != nil {
		h.metrics.completions.Inc()
	}
	message := "Stars and quiz streak updated"
	if res.First {
		message = "Stars added and streak started"
	}
	writeJSON(w, http.StatusOK, completionResponse{
		Message: message,
		Stars:   res.Profile.Stars,
		Streak:  res.Profile.Streak,
	})
}

func (h *ProfileHandler) RandomQuestion(w http.ResponseWriter, r *http.Request) {
	question, err := h.questions.Random()
	if err != nil {
		writeError(w, h.logger, "random question", err, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, questionResponse{Question: question})
}
