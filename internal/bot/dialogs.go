package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"spacehub/internal/guard"
	"spacehub/internal/models"
)

// dialogTimeLayout is what users type for start and end times.
const dialogTimeLayout = "02.01.2006 15:04"

func (b *Bot) startLogin(ctx context.Context, userID, chatID int64) {
	if res := b.guard.Authorize(ctx, userID, guard.RequireAnonymous); res.Decision != guard.DecisionAllowed {
		b.sendMessage(chatID, "You are already signed in. /logout first to switch accounts.")
		return
	}

	b.setState(ctx, userID, StateLoginEmail, nil)
	b.sendMessage(chatID, "Let's sign you in. What is your email?")
}

func (b *Bot) startRegister(ctx context.Context, userID, chatID int64) {
	if res := b.guard.Authorize(ctx, userID, guard.RequireAnonymous); res.Decision != guard.DecisionAllowed {
		b.sendMessage(chatID, "You are already signed in.")
		return
	}

	b.setState(ctx, userID, StateRegisterEmail, nil)
	b.sendMessage(chatID, "Let's create your account. What is your email?")
}

func (b *Bot) startPasswordReset(ctx context.Context, userID, chatID int64) {
	b.setState(ctx, userID, StateResetEmail, nil)
	b.sendMessage(chatID, "What is the email of your account?")
}

// startBooking shows the space list; the actual dialog begins when the user
// picks a space from the inline keyboard.
func (b *Bot) startBooking(ctx context.Context, userID, chatID int64) {
	if !b.requireAccess(ctx, userID, chatID, guard.RequireAuthenticated) {
		return
	}

	spaces, err := b.spaces.FetchAll(ctx, userID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if len(spaces) == 0 {
		b.sendMessage(chatID, "No spaces are available to book right now.")
		return
	}

	b.renderSpacePicker(chatID, spaces)
}

func (b *Bot) startAddSpace(ctx context.Context, userID, chatID int64) {
	if !b.requireAccess(ctx, userID, chatID, guard.RequireAdmin) {
		return
	}

	b.setState(ctx, userID, StateSpaceName, nil)
	b.sendMessage(chatID, "Adding a space. What is it called?")
}

func (b *Bot) handleDialogStep(ctx context.Context, userID, chatID int64, text string, state *models.UserState) {
	data := state.TempData
	if data == nil {
		data = map[string]interface{}{}
	}

	switch state.CurrentStep {
	case StateLoginEmail:
		data["email"] = text
		b.setState(ctx, userID, StateLoginPassword, data)
		b.sendMessage(chatID, "And your password?")

	case StateLoginPassword:
		b.finishLogin(ctx, userID, chatID, state.GetString("email"), text)

	case StateRegisterEmail:
		data["email"] = text
		b.setState(ctx, userID, StateRegisterName, data)
		b.sendMessage(chatID, "What is your full name?")

	case StateRegisterName:
		data["full_name"] = text
		b.setState(ctx, userID, StateRegisterPassword, data)
		b.sendMessage(chatID, "Choose a password.")

	case StateRegisterPassword:
		b.finishRegister(ctx, userID, chatID, state.GetString("email"), state.GetString("full_name"), text)

	case StateResetEmail:
		b.clearState(ctx, userID)
		if err := b.auth.RequestPasswordReset(ctx, text); err != nil {
			b.sendMessage(chatID, b.getErrorMessage(err))
			return
		}
		b.sendMessage(chatID, "📧 If that account exists, a reset link is on its way.")

	case StateBookEventName:
		data["event_name"] = text
		b.setState(ctx, userID, StateBookEventType, data)
		b.sendMessage(chatID, "What kind of event is it? (meeting, workshop, party, ...)")

	case StateBookEventType:
		data["event_type"] = text
		b.setState(ctx, userID, StateBookStart, data)
		b.sendMessage(chatID, "When does it start? Format: DD.MM.YYYY HH:MM")

	case StateBookStart:
		start, err := time.ParseInLocation(dialogTimeLayout, text, time.Local)
		if err != nil {
			b.sendMessage(chatID, "⚠️ I could not read that. Please use DD.MM.YYYY HH:MM, e.g. 15.09.2026 14:00")
			return
		}
		data["start"] = start.Format(time.RFC3339)
		b.setState(ctx, userID, StateBookEnd, data)
		b.sendMessage(chatID, "And when does it end?")

	case StateBookEnd:
		end, err := time.ParseInLocation(dialogTimeLayout, text, time.Local)
		if err != nil {
			b.sendMessage(chatID, "⚠️ I could not read that. Please use DD.MM.YYYY HH:MM, e.g. 15.09.2026 16:00")
			return
		}
		data["end"] = end.Format(time.RFC3339)
		b.setState(ctx, userID, StateBookOrganizerName, data)
		b.sendMessage(chatID, "Who is the organizer?")

	case StateBookOrganizerName:
		data["organizer_name"] = text
		b.setState(ctx, userID, StateBookOrganizerMail, data)
		b.sendMessage(chatID, "Organizer's email?")

	case StateBookOrganizerMail:
		data["organizer_email"] = text
		b.setState(ctx, userID, StateBookAttendance, data)
		b.sendMessage(chatID, "How many people are you expecting?")

	case StateBookAttendance:
		attendance, err := strconv.Atoi(text)
		if err != nil || attendance <= 0 {
			b.sendMessage(chatID, "⚠️ Please send the expected attendance as a number.")
			return
		}
		data["attendance"] = attendance
		b.setState(ctx, userID, StateBookConfirm, data)
		b.renderBookingSummary(chatID, bookingFormFromData(&models.UserState{TempData: data}))

	case StateSpaceName:
		data["name"] = text
		b.setState(ctx, userID, StateSpaceLocation, data)
		b.sendMessage(chatID, "Where is it located?")

	case StateSpaceLocation:
		data["location"] = text
		b.setState(ctx, userID, StateSpaceCapacity, data)
		b.sendMessage(chatID, "How many people does it hold?")

	case StateSpaceCapacity:
		capacity, err := strconv.Atoi(text)
		if err != nil || capacity <= 0 {
			b.sendMessage(chatID, "⚠️ Please send the capacity as a number.")
			return
		}
		data["capacity"] = capacity
		b.setState(ctx, userID, StateSpacePrice, data)
		b.sendMessage(chatID, "Price per hour?")

	case StateSpacePrice:
		price, err := strconv.ParseFloat(text, 64)
		if err != nil || price < 0 {
			b.sendMessage(chatID, "⚠️ Please send the price as a number, e.g. 25 or 12.50")
			return
		}
		data["price_per_hour"] = price
		b.setState(ctx, userID, StateSpaceFeatures, data)
		b.sendMessage(chatID, "List the features, comma separated. Send \"-\" if there are none.")

	case StateSpaceFeatures:
		b.finishAddSpace(ctx, userID, chatID, text, state)

	case StateSpaceEditPrice:
		price, err := strconv.ParseFloat(text, 64)
		if err != nil || price < 0 {
			b.sendMessage(chatID, "⚠️ Please send the price as a number, e.g. 25 or 12.50")
			return
		}
		spaceID := state.GetInt64("space_id")
		b.clearState(ctx, userID)
		if _, err := b.spaces.Update(ctx, userID, spaceID, map[string]interface{}{"price_per_hour": price}); err != nil {
			b.sendMessage(chatID, b.getErrorMessage(err))
			return
		}
		b.notifier.Show(chatID, "Price updated.", models.ToastSuccess, 0)

	default:
		b.clearState(ctx, userID)
		b.sendMessage(chatID, "I lost track of that conversation, sorry. /help to start over.")
	}
}

func (b *Bot) finishAddSpace(ctx context.Context, userID, chatID int64, featuresText string, state *models.UserState) {
	b.clearState(ctx, userID)

	var features []string
	if trimmed := strings.TrimSpace(featuresText); trimmed != "" && trimmed != "-" {
		for _, f := range strings.Split(trimmed, ",") {
			if f = strings.TrimSpace(f); f != "" {
				features = append(features, f)
			}
		}
	}

	space := &models.Space{
		Name:         state.GetString("name"),
		Location:     state.GetString("location"),
		Capacity:     state.GetInt("capacity"),
		PricePerHour: state.GetFloat("price_per_hour"),
		Features:     features,
	}

	created, err := b.spaces.Create(ctx, userID, space)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	b.notifier.Show(chatID, fmt.Sprintf("Space %q added.", created.Name), models.ToastSuccess, 0)
}

func (b *Bot) finishLogin(ctx context.Context, userID, chatID int64, email, password string) {
	b.clearState(ctx, userID)

	sess, err := b.sessions.Login(ctx, userID, email, password)
	if err != nil {
		if b.metrics != nil {
			b.metrics.LoginsTotal.WithLabelValues("failure").Inc()
		}
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	if b.metrics != nil {
		b.metrics.LoginsTotal.WithLabelValues("success").Inc()
	}
	b.notifier.Show(chatID, fmt.Sprintf("Welcome back, %s!", sess.FullName), models.ToastSuccess, 0)
	b.sendWelcome(ctx, userID, chatID)
}

func (b *Bot) finishRegister(ctx context.Context, userID, chatID int64, email, fullName, password string) {
	b.clearState(ctx, userID)

	if err := b.auth.Register(ctx, email, fullName, password); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	b.notifier.Show(chatID, "Account created! Check your inbox to verify your email, then /login.", models.ToastSuccess, 0)
}

// bookingFormFromData rebuilds the form from accumulated dialog state.
func bookingFormFromData(state *models.UserState) *models.BookingForm {
	return &models.BookingForm{
		EventName:      state.GetString("event_name"),
		SpaceID:        state.GetInt64("space_id"),
		Start:          state.GetTime("start"),
		End:            state.GetTime("end"),
		OrganizerName:  state.GetString("organizer_name"),
		OrganizerEmail: state.GetString("organizer_email"),
		EventType:      state.GetString("event_type"),
		Attendance:     state.GetInt("attendance"),
	}
}

func (b *Bot) renderBookingSummary(chatID int64, form *models.BookingForm) {
	var sb strings.Builder
	sb.WriteString("Please confirm your booking request:\n\n")
	sb.WriteString(fmt.Sprintf("🎪 %s (%s)\n", form.EventName, form.EventType))
	sb.WriteString(fmt.Sprintf("🏢 Space #%d\n", form.SpaceID))
	sb.WriteString(fmt.Sprintf("🕒 %s — %s\n", form.Start.Format(dialogTimeLayout), form.End.Format(dialogTimeLayout)))
	sb.WriteString(fmt.Sprintf("👤 %s (%s)\n", form.OrganizerName, form.OrganizerEmail))
	sb.WriteString(fmt.Sprintf("👥 %d people\n", form.Attendance))

	b.sendMessageWithKeyboard(chatID, sb.String(), confirmKeyboard())
}
