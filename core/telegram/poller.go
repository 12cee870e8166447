package telegram

import (
	"net"
	"strconv"
	"strings"

	coreconfig "github.com/vldos/telegram-survey-bot/core/config"

	tele "gopkg.in/telebot.v4"
)

// NewPoller returns the update source for the configured run mode.
func NewPoller(tc coreconfig.TelegramConfig, hook coreconfig.WebhookConfig) tele.Poller {
	if strings.EqualFold(strings.TrimSpace(tc.RunMode), coreconfig.RunModeWebhook) {
		return &tele.Webhook{
			Listen:      net.JoinHostPort(hook.Listen, strconv.Itoa(hook.Port)),
			SecretToken: hook.Secret,
			Endpoint:    &tele.WebhookEndpoint{PublicURL: hook.URL},
		}
	}
	return &tele.LongPoller{Timeout: tc.PollTimeout()}
}
