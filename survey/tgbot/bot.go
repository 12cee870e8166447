// Package tgbot adapts the survey service to telebot: it registers commands
// and callbacks, routes free text to the active survey and renders prompts
// as inline keyboards.
package tgbot

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/vldos/telegram-survey-bot/core/logger"
	tg "github.com/vldos/telegram-survey-bot/core/telegram"
	"github.com/vldos/telegram-survey-bot/core/telegram/callbacks"
	"github.com/vldos/telegram-survey-bot/core/telegram/format"
	tghelpers "github.com/vldos/telegram-survey-bot/core/telegram/helpers"
	"github.com/vldos/telegram-survey-bot/core/telegram/middleware"
	"github.com/vldos/telegram-survey-bot/core/telegram/router"
	"github.com/vldos/telegram-survey-bot/survey/catalog"
	"github.com/vldos/telegram-survey-bot/survey/flow"
	"github.com/vldos/telegram-survey-bot/survey/service"

	tele "gopkg.in/telebot.v4"
)

const component = "tg.survey"

var _ router.Conversation = (*Bot)(nil)

// Options configure the adapter.
type Options struct {
	// AdminID restricts /stats; zero leaves it open.
	AdminID int64
}

// Bot is the Telegram face of the survey service.
type Bot struct {
	svc   *service.Service
	cat   *catalog.Catalog
	admin middleware.AdminOptions
}

// New builds the adapter.
func New(svc *service.Service, opts Options) *Bot {
	return &Bot{
		svc:   svc,
		cat:   svc.Catalog(),
		admin: middleware.AdminOptions{AdminID: opts.AdminID},
	}
}

// Register adds the survey commands and callbacks to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	if err := reg.RegisterCommand("/start", tg.Command{
		Handler:     b.onStart,
		Description: "Start the survey",
	}); err != nil {
		return err
	}
	if err := reg.RegisterCommand("/stats", tg.Command{
		Handler:     b.onStats,
		Description: "Survey statistics",
		AdminOnly:   true,
		Aliases:     []string{"statistics"},
	}); err != nil {
		return err
	}

	handlers := []struct {
		key string
		h   tele.HandlerFunc
	}{
		{cbStart, b.onStartSurvey},
		{cbSingle, b.onSingle},
		{cbMulti, b.onMulti},
		{cbFinish, b.onFinish},
		{cbSkip, b.onSkip},
	}
	for _, e := range handlers {
		if err := reg.RegisterCallback(e.key, e.h); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(b.UnknownCallback())
	return nil
}

// Active reports whether free text from the user belongs to a survey.
func (b *Bot) Active(userID int64) bool {
	return b.svc.InProgress(userID)
}

// HandleText feeds a text message into the active survey. A message equal
// to the skip or back label counts as the skip sentinel.
func (b *Bot) HandleText(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID
	text := strings.TrimSpace(c.Text())

	var (
		out service.Outcome
		err error
	)
	if text == b.cat.Messages.SkipButton || text == b.cat.Messages.BackButton {
		out, err = b.svc.Skip(ctx, userID)
	} else {
		out, err = b.svc.SubmitText(ctx, userID, text)
	}
	return b.respond(c, out, err, true)
}

// UnknownText answers text outside a survey.
func (b *Bot) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, b.cat.Messages.NoSession)
	}
}

// UnknownDocument answers files outside a survey.
func (b *Bot) UnknownDocument() tele.HandlerFunc {
	return b.UnknownText()
}

// UnknownCallback answers buttons nobody handles.
func (b *Bot) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: b.cat.Messages.Unsupported})
	}
}

// RejectAdmin answers a non-admin calling an admin-only command.
func (b *Bot) RejectAdmin(c tele.Context) error {
	return tghelpers.SendText(c, b.cat.Messages.Unsupported)
}

func (b *Bot) onStart(c tele.Context) error {
	name := c.Sender().FirstName
	if name == "" {
		name = displayName(c.Sender())
	}
	text := b.cat.Messages.WelcomeFor(format.Bold(name))
	return tghelpers.SendMD(c, text, welcomeMarkup(b.cat))
}

func (b *Bot) onStartSurvey(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	out, err := b.svc.Start(ctx, c.Sender().ID, displayName(c.Sender()))
	return b.respond(c, out, err, false)
}

func (b *Bot) onSingle(c tele.Context) error {
	qid, idx, err := callbacks.KeyIndex(c)
	if err != nil {
		return b.rerender(c)
	}
	ctx := tghelpers.BuildContext(c)
	out, err := b.svc.SelectSingle(ctx, c.Sender().ID, qid, idx)
	return b.respond(c, out, err, false)
}

func (b *Bot) onMulti(c tele.Context) error {
	qid, idx, err := callbacks.KeyIndex(c)
	if err != nil {
		return b.rerender(c)
	}
	ctx := tghelpers.BuildContext(c)
	out, err := b.svc.ToggleMulti(ctx, c.Sender().ID, qid, idx)
	return b.respond(c, out, err, false)
}

func (b *Bot) onFinish(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	out, err := b.svc.FinishMulti(ctx, c.Sender().ID, callbacks.Payload(c))
	return b.respond(c, out, err, false)
}

func (b *Bot) onSkip(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	out, err := b.svc.Skip(ctx, c.Sender().ID)
	return b.respond(c, out, err, false)
}

func (b *Bot) onStats(c tele.Context) error {
	if !b.admin.IsAdmin(c) {
		return b.RejectAdmin(c)
	}
	ctx := tghelpers.BuildContext(c)
	st, err := b.svc.Stats(ctx)
	if err != nil {
		logger.Warn(ctx, component, "stats.read",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", "STORAGE_READ_FAILED"),
		)
		return tghelpers.SendText(c, b.cat.Messages.StatsEmpty)
	}
	if st.Total == 0 {
		return tghelpers.SendText(c, b.cat.Messages.StatsEmpty)
	}
	return tghelpers.SendText(c, renderStats(b.cat, st))
}

// rerender shows the current prompt again, or the /start hint without a session.
func (b *Bot) rerender(c tele.Context) error {
	out, err := b.svc.Current(c.Sender().ID)
	return b.respond(c, out, err, false)
}

// respond renders the outcome of an event. Rejected events always produce a
// visible reply. A persist failure is rendered and then returned so the
// router logs it.
func (b *Bot) respond(c tele.Context, out service.Outcome, err error, fromText bool) error {
	msgs := b.cat.Messages
	switch {
	case errors.Is(err, flow.ErrNoActiveSession):
		return tghelpers.SendText(c, msgs.NoSession)
	case errors.Is(err, flow.ErrInvalidTransition):
		if fromText && out.Prompt.Kind == flow.PromptChoice {
			if sendErr := tghelpers.SendText(c, msgs.UseButtons); sendErr != nil {
				return sendErr
			}
		}
		return b.show(c, out.Prompt, fromText)
	case out.Done():
		text := completionText(b.cat, out)
		var sendErr error
		if fromText {
			sendErr = tghelpers.SendText(c, text)
		} else {
			sendErr = tghelpers.EditOrSendText(c, text, nil)
		}
		if err != nil {
			return err
		}
		return sendErr
	case err != nil:
		return err
	}
	return b.show(c, out.Prompt, fromText)
}

func (b *Bot) show(c tele.Context, p flow.Prompt, fromText bool) error {
	text, markup := renderPrompt(b.cat, p)
	if fromText {
		return tghelpers.SendText(c, text, &tele.SendOptions{ReplyMarkup: markup})
	}
	return tghelpers.EditOrSendText(c, text, markup)
}

// displayName is what gets stored with a response: the username, or the
// first name when the user has none.
func displayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
