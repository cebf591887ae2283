package bot

import (
	"fmt"
	"strings"

	"spacehub/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", cbConfirm),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", cbAbort),
		),
	)
}

// renderSpacePicker lists spaces as buttons for the booking dialog.
func (b *Bot) renderSpacePicker(chatID int64, spaces []models.Space) {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, space := range spaces {
		label := fmt.Sprintf("%s (up to %d)", space.Name, space.Capacity)
		btn := tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s%d", cbBookSpace, space.ID))
		keyboard = append(keyboard, []tgbotapi.InlineKeyboardButton{btn})
	}

	b.sendMessageWithKeyboard(chatID, "Which space would you like to book?", tgbotapi.NewInlineKeyboardMarkup(keyboard...))
}

// renderSpacesPage renders one page of the space catalog with navigation.
func (b *Bot) renderSpacesPage(chatID int64, messageID int, spaces []models.Space, page int) {
	perPage := b.config.Bot.PaginationSize
	if perPage <= 0 {
		perPage = models.DefaultPaginationSize
	}

	totalPages := (len(spaces) + perPage - 1) / perPage
	if page >= totalPages {
		page = totalPages - 1
	}
	if page < 0 {
		page = 0
	}

	startIdx := page * perPage
	endIdx := startIdx + perPage
	if endIdx > len(spaces) {
		endIdx = len(spaces)
	}

	var sb strings.Builder
	sb.WriteString("🏢 Spaces\n\n")
	if totalPages > 1 {
		sb.WriteString(fmt.Sprintf("Page %d of %d\n\n", page+1, totalPages))
	}
	for _, space := range spaces[startIdx:endIdx] {
		sb.WriteString(fmt.Sprintf("• %s — %s\n", space.Name, space.Location))
		sb.WriteString(fmt.Sprintf("  👥 up to %d  💰 %.2f/hour\n", space.Capacity, space.PricePerHour))
		if len(space.Features) > 0 {
			sb.WriteString("  ✨ " + strings.Join(space.Features, ", ") + "\n")
		}
		sb.WriteString("\n")
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Prev", fmt.Sprintf("%s%d", cbSpacesPage, page-1)))
	}
	if endIdx < len(spaces) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", fmt.Sprintf("%s%d", cbSpacesPage, page+1)))
	}

	var keyboard [][]tgbotapi.InlineKeyboardButton
	if len(nav) > 0 {
		keyboard = append(keyboard, nav)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(keyboard...)

	if messageID != 0 && len(keyboard) > 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, sb.String(), markup)
		if _, err := b.tgService.Send(edit); err != nil {
			b.logger.Error().Err(err).Msg("edit spaces page failed")
		}
		return
	}

	if len(keyboard) > 0 {
		b.sendMessageWithKeyboard(chatID, sb.String(), markup)
	} else {
		b.sendMessage(chatID, sb.String())
	}
}

func (b *Bot) renderBookingList(chatID int64, title string, bookings []models.Booking, cancellable bool) {
	var sb strings.Builder
	sb.WriteString(title + "\n\n")

	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, booking := range bookings {
		sb.WriteString(fmt.Sprintf("%s #%d %s\n", statusEmoji(booking.Status), booking.ID, booking.EventName))
		sb.WriteString(fmt.Sprintf("   🏢 %s\n", spaceTitle(&booking)))
		sb.WriteString(fmt.Sprintf("   🕒 %s — %s\n\n", booking.Start.Format(dialogTimeLayout), booking.End.Format("15:04")))

		if cancellable && (booking.Status == models.StatusPending || booking.Status == models.StatusConfirmed) {
			btn := tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("❌ Cancel #%d %s", booking.ID, booking.EventName),
				fmt.Sprintf("%s%d", cbCancel, booking.ID),
			)
			keyboard = append(keyboard, []tgbotapi.InlineKeyboardButton{btn})
		}
	}

	if len(keyboard) > 0 {
		b.sendMessageWithKeyboard(chatID, sb.String(), tgbotapi.NewInlineKeyboardMarkup(keyboard...))
		return
	}
	b.sendMessage(chatID, sb.String())
}

func (b *Bot) renderPendingBooking(chatID int64, booking *models.Booking) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⏳ Request #%d: %s\n", booking.ID, booking.EventName))
	sb.WriteString(fmt.Sprintf("🏢 %s\n", spaceTitle(booking)))
	sb.WriteString(fmt.Sprintf("🕒 %s — %s\n", booking.Start.Format(dialogTimeLayout), booking.End.Format("15:04")))
	sb.WriteString(fmt.Sprintf("👤 %s (%s)\n", booking.OrganizerName, booking.OrganizerEmail))
	sb.WriteString(fmt.Sprintf("👥 %d people", booking.Attendance))

	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", fmt.Sprintf("%s%d", cbApprove, booking.ID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", fmt.Sprintf("%s%d", cbReject, booking.ID)),
		),
	)
	b.sendMessageWithKeyboard(chatID, sb.String(), markup)
}

func (b *Bot) renderManagedSpace(chatID int64, space *models.Space) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🏢 %s — %s\n", space.Name, space.Location))
	sb.WriteString(fmt.Sprintf("👥 up to %d  💰 %.2f/hour", space.Capacity, space.PricePerHour))
	if len(space.Features) > 0 {
		sb.WriteString("\n✨ " + strings.Join(space.Features, ", "))
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Price", fmt.Sprintf("%s%d", cbSpacePrice, space.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", fmt.Sprintf("%s%d", cbSpaceDelete, space.ID)),
		),
	)
	b.sendMessageWithKeyboard(chatID, sb.String(), markup)
}

func spaceTitle(b *models.Booking) string {
	if b.SpaceName != "" {
		return b.SpaceName
	}
	return fmt.Sprintf("Space #%d", b.SpaceID)
}

func statusEmoji(status string) string {
	switch status {
	case models.StatusConfirmed:
		return "✅"
	case models.StatusRejected:
		return "❌"
	case models.StatusCancelled:
		return "🚫"
	case models.StatusCompleted:
		return "🏁"
	default:
		return "⏳"
	}
}
