package bot

import (
	"context"
	"strconv"
	"strings"
	"time"

	"spacehub/internal/guard"
	"spacehub/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Префиксы callback-данных inline-клавиатур.
const (
	cbBookSpace   = "book_space_"
	cbSpacesPage  = "spaces_page_"
	cbApprove     = "approve_"
	cbReject      = "reject_"
	cbCancel      = "cancelbk_"
	cbConfirm     = "confirm_booking"
	cbAbort       = "abort_booking"
	cbSpacePrice  = "space_price_"
	cbSpaceDelete = "space_del_"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, update tgbotapi.Update) {
	query := update.CallbackQuery
	userID := query.From.ID
	chatID := query.Message.Chat.ID
	data := query.Data
	l := zerolog.Ctx(ctx)

	l.Debug().Int64("user_id", userID).Str("data", data).Msg("Handling callback")

	// Убираем "часики" на кнопке
	if _, err := b.tgService.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Debug().Err(err).Msg("answer callback failed")
	}

	switch {
	case strings.HasPrefix(data, cbBookSpace):
		b.callbackPickSpace(ctx, userID, chatID, strings.TrimPrefix(data, cbBookSpace))

	case strings.HasPrefix(data, cbSpacesPage):
		page, _ := strconv.Atoi(strings.TrimPrefix(data, cbSpacesPage))
		b.handleSpaces(ctx, userID, chatID, page, query.Message.MessageID)

	case data == cbConfirm:
		b.callbackConfirmBooking(ctx, userID, chatID)

	case data == cbAbort:
		b.clearState(ctx, userID)
		b.sendMessage(chatID, "Booking cancelled. Nothing was sent.")

	case strings.HasPrefix(data, cbCancel):
		b.callbackCancelBooking(ctx, userID, chatID, strings.TrimPrefix(data, cbCancel))

	case strings.HasPrefix(data, cbApprove):
		b.callbackDecide(ctx, userID, chatID, strings.TrimPrefix(data, cbApprove), true)

	case strings.HasPrefix(data, cbReject):
		b.callbackDecide(ctx, userID, chatID, strings.TrimPrefix(data, cbReject), false)

	case strings.HasPrefix(data, cbSpacePrice):
		b.callbackEditSpacePrice(ctx, userID, chatID, strings.TrimPrefix(data, cbSpacePrice))

	case strings.HasPrefix(data, cbSpaceDelete):
		b.callbackDeleteSpace(ctx, userID, chatID, strings.TrimPrefix(data, cbSpaceDelete))

	default:
		b.logger.Warn().Str("data", data).Msg("unknown callback")
	}
}

func (b *Bot) callbackPickSpace(ctx context.Context, userID, chatID int64, rawID string) {
	if !b.requireAccess(ctx, userID, chatID, guard.RequireAuthenticated) {
		return
	}

	spaceID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || spaceID == 0 {
		return
	}

	space := b.spaces.Find(spaceID)
	data := map[string]interface{}{"space_id": spaceID}
	b.setState(ctx, userID, StateBookEventName, data)

	if space != nil {
		b.sendMessage(chatID, "Booking "+space.Name+". What is the event called?")
	} else {
		b.sendMessage(chatID, "What is the event called?")
	}
}

func (b *Bot) callbackConfirmBooking(ctx context.Context, userID, chatID int64) {
	state, err := b.stateService.GetUserState(ctx, userID)
	if err != nil || state == nil || state.CurrentStep != StateBookConfirm {
		b.sendMessage(chatID, "That booking draft has expired. /book to start again.")
		return
	}

	form := bookingFormFromData(state)

	// Проверяем форму вместе с вместимостью площадки до отправки.
	if errs := form.Validate(b.spaces.Find(form.SpaceID), time.Now()); errs != nil {
		b.clearState(ctx, userID)
		b.sendMessage(chatID, "⚠️ "+firstFieldMessage(errs)+" /book to start over.")
		return
	}

	booking, err := b.bookings.Create(ctx, userID, form)
	if err != nil {
		b.clearState(ctx, userID)
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	b.clearState(ctx, userID)
	b.notifier.Show(chatID, "Booking request submitted! You will be notified once it is reviewed.", models.ToastSuccess, 0)
	b.logger.Info().Int64("user_id", userID).Int64("booking_id", booking.ID).Msg("booking created")
}

func (b *Bot) callbackCancelBooking(ctx context.Context, userID, chatID int64, rawID string) {
	if !b.requireAccess(ctx, userID, chatID, guard.RequireAuthenticated) {
		return
	}

	bookingID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || bookingID == 0 {
		return
	}

	if err := b.bookings.Cancel(ctx, userID, bookingID); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	b.notifier.Show(chatID, "Booking cancelled.", models.ToastInfo, 0)
}

func (b *Bot) callbackEditSpacePrice(ctx context.Context, userID, chatID int64, rawID string) {
	if !b.requireAccess(ctx, userID, chatID, guard.RequireAdmin) {
		return
	}

	spaceID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || spaceID == 0 {
		return
	}

	b.setState(ctx, userID, StateSpaceEditPrice, map[string]interface{}{"space_id": spaceID})
	b.sendMessage(chatID, "What should the new price per hour be?")
}

func (b *Bot) callbackDeleteSpace(ctx context.Context, userID, chatID int64, rawID string) {
	if !b.requireAccess(ctx, userID, chatID, guard.RequireAdmin) {
		return
	}

	spaceID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || spaceID == 0 {
		return
	}

	if err := b.spaces.Delete(ctx, userID, spaceID); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	b.notifier.Show(chatID, "Space removed.", models.ToastInfo, 0)
}

func (b *Bot) callbackDecide(ctx context.Context, userID, chatID int64, rawID string, approve bool) {
	if !b.requireAccess(ctx, userID, chatID, guard.RequireAdmin) {
		return
	}

	bookingID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || bookingID == 0 {
		return
	}

	if approve {
		err = b.bookings.Approve(ctx, userID, bookingID)
	} else {
		err = b.bookings.Reject(ctx, userID, bookingID)
	}
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	if approve {
		b.notifier.Show(chatID, "Booking approved.", models.ToastSuccess, 0)
	} else {
		b.notifier.Show(chatID, "Booking rejected.", models.ToastInfo, 0)
	}
}
