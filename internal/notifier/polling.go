package notifier

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	pollTimeout = 30 // seconds the server holds a getUpdates call open
	pollRetry   = 5 * time.Second
)

// CommandHandler answers a bot command. An empty reply sends nothing.
type CommandHandler func(ctx context.Context, command string) string

type getUpdatesParams struct {
	Offset         int      `json:"offset"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates"`
}

type update struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// parseCommand reduces "/status@RegimeBot extra" to "/status". Text that is
// not a command yields "".
func parseCommand(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(cmd)
}

// StartPolling long-polls getUpdates and passes commands from the configured
// chat to handler. Messages from other chats are ignored. Blocks until ctx is
// cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	offset := 0
	for ctx.Err() == nil {
		var updates []update
		err := t.call(ctx, "getUpdates", getUpdatesParams{
			Offset:         offset,
			Timeout:        pollTimeout,
			AllowedUpdates: []string{"message"},
		}, &updates)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warn().Err(err).Dur("retry_in", pollRetry).Msg("telegram polling failed")
			select {
			case <-ctx.Done():
			case <-time.After(pollRetry):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message == nil || strconv.FormatInt(u.Message.Chat.ID, 10) != t.ChatID {
				continue
			}
			cmd := parseCommand(u.Message.Text)
			if cmd == "" {
				continue
			}
			log.Info().Str("command", cmd).Msg("received command")
			if reply := handler(ctx, cmd); reply != "" {
				if err := t.Send(ctx, reply); err != nil {
					log.Error().Err(err).Str("command", cmd).Msg("send reply")
				}
			}
		}
	}
	log.Info().Msg("telegram polling stopped")
}
