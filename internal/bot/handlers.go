package bot

import (
	"context"
	"fmt"
	"strings"

	"spacehub/internal/guard"
	"spacehub/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func (b *Bot) handleMessage(ctx context.Context, update tgbotapi.Update) {
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)
	l := zerolog.Ctx(ctx)

	l.Debug().
		Int64("user_id", userID).
		Str("username", update.Message.From.UserName).
		Str("text", text).
		Msg("Handling message")

	switch {
	case text == "/start" || text == "/help":
		b.clearState(ctx, userID)
		b.sendWelcome(ctx, userID, chatID)
		return
	case text == "/cancel" || strings.EqualFold(text, "cancel"):
		b.clearState(ctx, userID)
		b.sendMessage(chatID, "Okay, cancelled. /help to see what I can do.")
		return
	case text == "/login":
		b.startLogin(ctx, userID, chatID)
		return
	case text == "/register":
		b.startRegister(ctx, userID, chatID)
		return
	case text == "/reset":
		b.startPasswordReset(ctx, userID, chatID)
		return
	case text == "/logout":
		b.handleLogout(ctx, userID, chatID)
		return
	case text == "/spaces":
		b.handleSpaces(ctx, userID, chatID, 0, 0)
		return
	case text == "/book":
		b.startBooking(ctx, userID, chatID)
		return
	case text == "/mybookings":
		b.handleMyBookings(ctx, userID, chatID)
		return
	case text == "/upcoming":
		b.handleUpcoming(ctx, userID, chatID)
		return
	case text == "/export":
		b.handleExport(ctx, userID, chatID)
		return
	case text == "/pending":
		b.handlePending(ctx, userID, chatID)
		return
	case text == "/sync":
		b.handleSync(ctx, userID, chatID)
		return
	case text == "/addspace":
		b.startAddSpace(ctx, userID, chatID)
		return
	case text == "/managespaces":
		b.handleManageSpaces(ctx, userID, chatID)
		return
	}

	// Не команда: продолжаем активный диалог, если он есть.
	state, err := b.stateService.GetUserState(ctx, userID)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to load dialog state")
		b.sendMessage(chatID, "❌ Something went wrong. Please try again.")
		return
	}
	if state == nil {
		b.sendMessage(chatID, "I did not get that. /help lists the commands.")
		return
	}

	b.handleDialogStep(ctx, userID, chatID, text, state)
}

// requireAccess runs the route guard and reports denials to the chat.
func (b *Bot) requireAccess(ctx context.Context, userID, chatID int64, req guard.Requirement) bool {
	res := b.guard.Authorize(ctx, userID, req)
	switch res.Decision {
	case guard.DecisionAllowed:
		return true
	case guard.DecisionDenied:
		if res.Redirect == guard.RedirectLogin {
			b.sendMessage(chatID, "🔒 Please /login first.")
		} else {
			b.sendMessage(chatID, "⛔ This action is for administrators. /mybookings shows your own bookings.")
		}
	}
	return false
}

func (b *Bot) sendWelcome(ctx context.Context, userID, chatID int64) {
	var lines []string
	if sess, err := b.sessions.Resolve(ctx, userID); err == nil && sess.Authenticated() {
		lines = append(lines,
			fmt.Sprintf("Hi, %s! 👋", sess.FullName),
			"",
			"/spaces — browse spaces",
			"/book — request a booking",
			"/mybookings — your bookings",
			"/upcoming — upcoming events",
			"/export — download your bookings as Excel",
			"/logout — sign out",
		)
		if sess.IsAdmin() {
			lines = append(lines, "", "Admin:",
				"/pending — review booking requests",
				"/addspace — add a space",
				"/managespaces — edit or remove spaces",
				"/sync — refresh the spreadsheet mirror")
		}
	} else {
		lines = append(lines,
			"Welcome to the space booking assistant! 👋",
			"",
			"/login — sign in",
			"/register — create an account",
			"/reset — reset your password",
			"/spaces — browse spaces",
		)
	}
	b.sendMessage(chatID, strings.Join(lines, "\n"))
}

func (b *Bot) handleLogout(ctx context.Context, userID, chatID int64) {
	if !b.requireAccess(ctx, userID, chatID, guard.RequireAuthenticated) {
		return
	}

	b.sessions.Logout(ctx, userID)
	b.clearState(ctx, userID)
	b.notifier.Show(chatID, "You have been signed out.", models.ToastInfo, 0)
}

func (b *Bot) handleSpaces(ctx context.Context, userID, chatID int64, page int, messageID int) {
	spaces, err := b.spaces.FetchAll(ctx, userID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if len(spaces) == 0 {
		b.sendMessage(chatID, "No spaces are available yet.")
		return
	}

	b.renderSpacesPage(chatID, messageID, spaces, page)
}

func (b *Bot) handleMyBookings(ctx context.Context, userID, chatID int64) {
	if !b.requireAccess(ctx, userID, chatID, guard.RequireAuthenticated) {
		return
	}

	bookings, err := b.bookings.FetchMyEvents(ctx, userID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if len(bookings) == 0 {
		b.sendMessage(chatID, "You have no bookings yet. /book to create one.")
		return
	}

	b.renderBookingList(chatID, "📋 Your bookings", bookings, true)
}

func (b *Bot) handleUpcoming(ctx context.Context, userID, chatID int64) {
	if !b.requireAccess(ctx, userID, chatID, guard.RequireAuthenticated) {
		return
	}

	bookings, err := b.bookings.FetchUpcoming(ctx, userID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if len(bookings) == 0 {
		b.sendMessage(chatID, "Nothing coming up.")
		return
	}

	b.renderBookingList(chatID, "📅 Upcoming events", bookings, false)
}

func (b *Bot) handleExport(ctx context.Context, userID, chatID int64) {
	if !b.requireAccess(ctx, userID, chatID, guard.RequireAuthenticated) {
		return
	}

	bookings, err := b.bookings.FetchMyEvents(ctx, userID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	path, err := b.exporter.BookingsFile(userID, bookings)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("export failed")
		b.sendMessage(chatID, "❌ Could not build the export file. Please try again later.")
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = "Your bookings"
	if _, err := b.tgService.Send(doc); err != nil {
		b.logger.Error().Err(err).Str("path", path).Msg("send export failed")
	}
}

func (b *Bot) handlePending(ctx context.Context, userID, chatID int64) {
	if !b.requireAccess(ctx, userID, chatID, guard.RequireAdmin) {
		return
	}

	pending, err := b.bookings.FetchPending(ctx, userID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if len(pending) == 0 {
		b.sendMessage(chatID, "No pending requests. 🎉")
		return
	}

	for i := range pending {
		b.renderPendingBooking(chatID, &pending[i])
	}
}

func (b *Bot) handleSync(ctx context.Context, userID, chatID int64) {
	if !b.requireAccess(ctx, userID, chatID, guard.RequireAdmin) {
		return
	}

	if b.sheetsWorker == nil {
		b.sendMessage(chatID, "Spreadsheet mirroring is not configured.")
		return
	}

	if err := b.sheetsWorker.EnqueueFullSync(ctx); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	b.notifier.Show(chatID, "Spreadsheet sync scheduled.", models.ToastInfo, 0)
}

func (b *Bot) handleManageSpaces(ctx context.Context, userID, chatID int64) {
	if !b.requireAccess(ctx, userID, chatID, guard.RequireAdmin) {
		return
	}

	spaces, err := b.spaces.FetchAll(ctx, userID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if len(spaces) == 0 {
		b.sendMessage(chatID, "No spaces yet. /addspace to create one.")
		return
	}

	for i := range spaces {
		b.renderManagedSpace(chatID, &spaces[i])
	}
}

func (b *Bot) clearState(ctx context.Context, userID int64) {
	if err := b.stateService.ClearUserState(ctx, userID); err != nil {
		b.logger.Warn().Err(err).Int64("user_id", userID).Msg("failed to clear dialog state")
	}
}

func (b *Bot) setState(ctx context.Context, userID int64, step string, data map[string]interface{}) {
	if err := b.stateService.SetUserState(ctx, userID, step, data); err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Str("step", step).Msg("failed to save dialog state")
	}
}
