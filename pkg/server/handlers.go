package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chatlens/pkg/analytics"
	"chatlens/pkg/chatlog"
)

type errorBody struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

type errorResponse struct {
	Error     errorBody `json:"error"`
	RequestID string    `json:"request_id"`
}

type wordsRequest struct {
	Passcode string `json:"passcode"`
}

type countRequest struct {
	String string `json:"string"`
}

type countResponse struct {
	String string `json:"string"`
	Count  int    `json:"count"`
}

type participantWindowRequest struct {
	Participant string `json:"participant"`
	Days        int    `json:"days"`
	Mode        string `json:"mode"`
}

func (s *Service) handleList(c *gin.Context) {
	conversations, err := s.analyzer.Conversations(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	if conversations == nil {
		conversations = []chatlog.ConversationSummary{}
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (s *Service) handleAnalyze(c *gin.Context) {
	result, err := s.analyzer.Analyze(c.Request.Context(), c.Param("code"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Service) handleWords(c *gin.Context) {
	var req wordsRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	words, err := s.analyzer.Words(c.Request.Context(), c.Param("code"), c.Param("id"), req.Passcode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"words": words})
}

func (s *Service) handleEmojis(c *gin.Context) {
	emojis, err := s.analyzer.Emojis(c.Request.Context(), c.Param("code"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"emojis": emojis})
}

func (s *Service) handleCount(c *gin.Context) {
	var req countRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	count, err := s.analyzer.CountSubstring(c.Request.Context(), c.Param("code"), c.Param("id"), req.String)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, countResponse{String: strings.ToLower(req.String), Count: count})
}

func (s *Service) handleParticipantWindow(c *gin.Context) {
	var req participantWindowRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	mode, ok := analytics.ParseWindowMode(strings.ToLower(strings.TrimSpace(req.Mode)))
	if !ok {
		respondError(c, chatlog.Errorf(chatlog.ErrorInvalidArgument, "unknown mode %q", req.Mode))
		return
	}
	if req.Days == 0 {
		req.Days = 1
	}

	window, err := s.analyzer.ParticipantWindow(c.Request.Context(), c.Param("code"), c.Param("id"), req.Participant, req.Days, mode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, window)
}

// bindOptionalJSON decodes the request body into dst; an empty body leaves dst
// at its zero value.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	respondError(c, chatlog.Errorf(chatlog.ErrorInvalidArgument, "invalid request body: %v", err))
	return false
}

func respondError(c *gin.Context, err error) {
	category := chatlog.CategoryFromError(err)
	_ = c.Error(err)

	message := err.Error()
	var categorized *chatlog.Error
	if errors.As(err, &categorized) && categorized.Detail != "" {
		message = categorized.Detail
	}

	c.AbortWithStatusJSON(statusForCategory(category), errorResponse{
		Error:     errorBody{Category: category, Message: message},
		RequestID: c.GetString(requestIDKey),
	})
}

func statusForCategory(category string) int {
	switch category {
	case chatlog.ErrorMalformedInput:
		return http.StatusUnprocessableEntity
	case chatlog.ErrorNotFound:
		return http.StatusNotFound
	case chatlog.ErrorResourceGuard:
		return http.StatusForbidden
	case chatlog.ErrorInvalidArgument, chatlog.ErrorInvalidPath:
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}
