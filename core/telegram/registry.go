package telegram

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/vldos/telegram-survey-bot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Registration errors.
var (
	ErrInvalidHandler = errors.New("telegram: invalid handler registration")
	ErrDuplicate      = errors.New("telegram: already registered")
)

// Command is a slash command served by the bot.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are guarded by the admin middleware and left out of
	// the public menu.
	AdminOnly bool
	Hidden    bool
	// Aliases are accepted as plain text, with or without the slash.
	Aliases []string
}

// Registry maps commands and callback keys to handlers. It is filled while
// wiring and read concurrently once updates flow.
type Registry struct {
	mu           sync.RWMutex
	commands     map[string]Command
	aliases      map[string]string
	callbacks    map[string]tele.HandlerFunc
	notFound     tele.HandlerFunc
	textFallback tele.HandlerFunc
}

// NewRegistry returns an empty registry whose unknown-callback handler just
// answers the button press.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]Command),
		aliases:   make(map[string]string),
		callbacks: make(map[string]tele.HandlerFunc),
		notFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

func commandName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	// "/stats@my_bot args" addresses the same command as "/stats".
	if i := strings.IndexAny(s, " @"); i > 0 {
		s = s[:i]
	}
	return "/" + strings.TrimPrefix(s, "/")
}

// RegisterCommand adds cmd under name, which must start with a slash.
func (r *Registry) RegisterCommand(name string, cmd Command) error {
	if !strings.HasPrefix(name, "/") || len(name) < 2 || cmd.Handler == nil || cmd.Description == "" {
		logger.Warn(logger.Background(), "tg.wire", "register.command",
			slog.String("status", "skip"),
			slog.String("name", name),
		)
		return fmt.Errorf("%w: command %q", ErrInvalidHandler, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[name]; ok {
		return fmt.Errorf("%w: command %s", ErrDuplicate, name)
	}
	r.commands[name] = cmd
	for _, a := range cmd.Aliases {
		if a = commandName(a); a != "" && a != name {
			r.aliases[a] = name
		}
	}
	return nil
}

// RegisterCallback binds handler to a callback unique key.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		return fmt.Errorf("%w: callback %q", ErrInvalidHandler, key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.callbacks[key]; ok {
		return fmt.Errorf("%w: callback %s", ErrDuplicate, key)
	}
	r.callbacks[key] = handler
	return nil
}

// LookupCommand resolves text to a registered command through its name or an
// alias, returning the canonical name.
func (r *Registry) LookupCommand(text string) (string, Command, bool) {
	name := commandName(text)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if target, ok := r.aliases[name]; ok {
		name = target
	}
	cmd, ok := r.commands[name]
	return name, cmd, ok
}

// Commands returns a copy of the registered commands keyed by name.
func (r *Registry) Commands() map[string]Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

// Menu lists the public commands in name order.
func (r *Registry) Menu() []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var menu []tele.Command
	for name, cmd := range r.commands {
		if cmd.Hidden || cmd.AdminOnly {
			continue
		}
		menu = append(menu, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: cmd.Description})
	}
	sort.Slice(menu, func(i, j int) bool { return menu[i].Text < menu[j].Text })
	return menu
}

// Callback returns the handler bound to key.
func (r *Registry) Callback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// CallbackKeys returns the registered callback keys, sorted.
func (r *Registry) CallbackKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCallbackNotFound replaces the handler for unknown callback keys.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.notFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the handler for unknown callback keys.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.notFound
}

// SetTextFallback sets the handler for text no route claims.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

// TextFallback returns the handler for text no route claims.
func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// menuSetter is the part of *tele.Bot used to publish the command menu.
type menuSetter interface {
	SetCommands(opts ...any) error
}

// PublishMenu uploads the public command menu. Failures are logged only.
func PublishMenu(bot menuSetter, reg *Registry) {
	menu := reg.Menu()
	if err := bot.SetCommands(menu); err != nil {
		logger.Warn(logger.Background(), "tg.wire", "menu.publish",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return
	}
	logger.Info(logger.Background(), "tg.wire", "menu.publish",
		slog.String("status", "ok"),
		slog.Int("total", len(menu)),
	)
}
