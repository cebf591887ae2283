package bot

import (
	"errors"

	"spacehub/internal/client"
	"spacehub/internal/models"
	"spacehub/internal/session"
)

// getErrorMessage shapes any backend or validation error for the chat.
func (b *Bot) getErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, session.ErrNoSession) {
		return "⚠️ Your session has expired. Please /login again."
	}

	var fieldErrs models.FieldErrors
	if errors.As(err, &fieldErrs) {
		return "⚠️ " + firstFieldMessage(fieldErrs)
	}

	return "❌ " + client.Humanize(err)
}

func firstFieldMessage(errs models.FieldErrors) string {
	// Стабильный порядок полей формы для показа первой ошибки
	order := []string{
		"event_name", "space_id", "start_datetime", "end_datetime",
		"organizer_name", "organizer_email", "event_type", "attendance",
	}
	for _, field := range order {
		if msg, ok := errs[field]; ok {
			return msg
		}
	}
	for _, msg := range errs {
		return msg
	}
	return client.GenericErrorMessage
}
