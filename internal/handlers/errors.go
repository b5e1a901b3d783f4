package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/kunskapsportal-search-api/internal/chat"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is the body of chat failures
type ErrorResponse struct {
	Error     string         `json:"error"`
	Kind      chat.ErrorKind `json:"kind,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
}

var chatErrorMessages = map[chat.ErrorKind]struct {
	status  int
	message string
}{
	chat.KindRateLimit: {http.StatusTooManyRequests,
		"AI-tjänsten är hårt belastad just nu. Vänta en stund och försök igen."},
	chat.KindAuth: {http.StatusServiceUnavailable,
		"Chatten kunde inte autentisera mot AI-tjänsten. Kontakta administratören."},
	chat.KindVectorStore: {http.StatusServiceUnavailable,
		"Kunskapsbanken går inte att söka i just nu. Försök igen om en stund."},
	chat.KindEmbedding: {http.StatusServiceUnavailable,
		"Frågan kunde inte tolkas för sökning i kunskapsbanken. Försök igen om en stund."},
	chat.KindTimeout: {http.StatusGatewayTimeout,
		"Det tog för lång tid att ta fram ett svar. Försök igen."},
	chat.KindUnknown: {http.StatusInternalServerError,
		"Något gick fel när svaret skulle tas fram. Försök igen."},
}

// chatError renders a chat failure with a Swedish message chosen by its kind
func chatError(c echo.Context, err error) error {
	kind := chat.Classify(err)
	entry, ok := chatErrorMessages[kind]
	if !ok {
		entry = chatErrorMessages[chat.KindUnknown]
	}
	resp := ErrorResponse{Error: entry.message, Kind: kind}
	var chatErr *chat.Error
	if errors.As(err, &chatErr) {
		resp.RequestID = chatErr.RequestID
	}
	return c.JSON(entry.status, resp)
}

// parseIDs parses a comma-separated list of integer ids
func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseList splits a comma-separated list, dropping blanks
func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// intParam reads a non-negative integer query parameter, clamped to max when max > 0
func intParam(c echo.Context, name string, def, max int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Ogiltigt värde för "+name)
	}
	if max > 0 && v > max {
		v = max
	}
	return v, nil
}
