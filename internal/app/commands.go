package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"tubewatch/internal/storage"
	kit "tubewatch/internal/transport"
	"tubewatch/internal/youtube"
	"tubewatch/pkg/logx"
)

type access int

const (
	accessEveryone access = iota
	accessAdminOnly
)

type command struct {
	route       string
	description string
	usage       string
	access      access
	handle      func(ctx context.Context, msg *kit.Message, args []string) error
}

// Commands is the chat front end: subscribe/unsubscribe/filters plus a few
// operational commands. It consumes the adapter's update channel; the watch
// engine never sees any of this.
type Commands struct {
	log     logx.Logger
	adapter kit.Adapter
	store   storage.Store
	yt      *youtube.Service

	admins []int64

	// requestShutdown cancels the app's run context (admin /shutdown).
	requestShutdown func()

	cmds map[string]command
}

func NewCommands(adapter kit.Adapter, store storage.Store, yt *youtube.Service, admins []int64, requestShutdown func(), log logx.Logger) *Commands {
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Commands{
		log:             log,
		adapter:         adapter,
		store:           store,
		yt:              yt,
		admins:          admins,
		requestShutdown: requestShutdown,
	}
	c.cmds = map[string]command{
		"help": {
			route:       "help",
			description: "Information on how to use the bot",
			handle:      c.helpCommand,
		},
		"ping": {
			route:       "ping",
			description: "Measure the bot's response time",
			handle:      c.pingCommand,
		},
		"subscribe": {
			route:       "subscribe",
			description: "Get notified about new uploads from a YouTube channel in this chat",
			usage:       "/subscribe <channel url>",
			handle:      c.subscribeCommand,
		},
		"unsubscribe": {
			route:       "unsubscribe",
			description: "Stop notifications from a YouTube channel in this chat",
			usage:       "/unsubscribe <channel url>",
			handle:      c.unsubscribeCommand,
		},
		"filters": {
			route:       "filters",
			description: "Toggle live/vod/shorts notifications for a subscription",
			usage:       "/filters <channel url> <live|vod|shorts> <on|off>",
			handle:      c.filtersCommand,
		},
		"howmany": {
			route:       "howmany",
			description: "How many playlists are tracked, and how often each is checked",
			handle:      c.howmanyCommand,
		},
		"shutdown": {
			route:       "shutdown",
			description: "Shut down the bot",
			access:      accessAdminOnly,
			handle:      c.shutdownCommand,
		},
	}
	return c
}

// MenuCommands returns the command list for the platform menu, stable order.
func (c *Commands) MenuCommands() []kit.BotCommand {
	routes := make([]string, 0, len(c.cmds))
	for r := range c.cmds {
		routes = append(routes, r)
	}
	sort.Strings(routes)

	out := make([]kit.BotCommand, 0, len(routes))
	for _, r := range routes {
		out = append(out, kit.BotCommand{Command: "/" + r, Description: c.cmds[r].description})
	}
	return out
}

// Run consumes updates until ctx is cancelled.
func (c *Commands) Run(ctx context.Context, updates <-chan kit.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			if up.Message == nil {
				continue
			}
			c.handleMessage(ctx, up.Message)
		}
	}
}

func (c *Commands) handleMessage(ctx context.Context, msg *kit.Message) {
	route, args, ok := parseCommand(msg.Text)
	if !ok {
		return
	}
	cmd, known := c.cmds[route]
	if !known {
		c.reply(ctx, msg, "Unknown command. Try /help")
		return
	}
	if cmd.access == accessAdminOnly && !c.isAdmin(msg.FromID) {
		c.reply(ctx, msg, "You do not have permission.")
		return
	}

	start := time.Now()
	err := cmd.handle(ctx, msg, args)
	if err != nil {
		c.log.Warn("command failed",
			logx.String("command", route), logx.Int64("chat", msg.ChatID),
			logx.Duration("took", time.Since(start)), logx.Err(err))
		return
	}
	c.log.Debug("command handled",
		logx.String("command", route), logx.Int64("chat", msg.ChatID),
		logx.Duration("took", time.Since(start)))
}

// parseCommand splits "/route arg arg" into its parts. The route may carry a
// @botname suffix in group chats.
func parseCommand(text string) (route string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil, false
	}
	route = fields[0]
	if i := strings.IndexByte(route, '@'); i >= 0 {
		route = route[:i]
	}
	if route == "" {
		return "", nil, false
	}
	return strings.ToLower(route), fields[1:], true
}

func (c *Commands) isAdmin(userID int64) bool {
	// An empty admin list means anyone may use admin commands; a warning is
	// logged once at startup.
	if len(c.admins) == 0 {
		return true
	}
	for _, id := range c.admins {
		if id == userID {
			return true
		}
	}
	return false
}

func (c *Commands) reply(ctx context.Context, msg *kit.Message, text string) {
	if _, err := c.adapter.SendText(ctx, msg.ChatID, text, nil); err != nil {
		c.log.Warn("reply failed", logx.Int64("chat", msg.ChatID), logx.Err(err))
	}
}

// ---- handlers ----

func (c *Commands) helpCommand(ctx context.Context, msg *kit.Message, _ []string) error {
	var b strings.Builder
	b.WriteString("Subscribe this chat to a YouTube channel and I'll post every new upload or stream here once.\n\n")
	routes := make([]string, 0, len(c.cmds))
	for r := range c.cmds {
		routes = append(routes, r)
	}
	sort.Strings(routes)
	for _, r := range routes {
		cmd := c.cmds[r]
		if cmd.usage != "" {
			b.WriteString(cmd.usage)
		} else {
			b.WriteString("/" + cmd.route)
		}
		b.WriteString(" - ")
		b.WriteString(cmd.description)
		b.WriteString("\n")
	}
	c.reply(ctx, msg, b.String())
	return nil
}

func (c *Commands) pingCommand(ctx context.Context, msg *kit.Message, _ []string) error {
	start := time.Now()
	ref, err := c.adapter.SendText(ctx, msg.ChatID, "...", nil)
	if err != nil {
		return err
	}
	took := time.Since(start).Milliseconds()
	return c.adapter.EditText(ctx, ref, fmt.Sprintf("%d ms", took), nil)
}

func (c *Commands) resolveArg(ctx context.Context, msg *kit.Message, args []string) (string, bool) {
	if len(args) < 1 {
		c.reply(ctx, msg, "Please give me a channel URL, e.g. https://www.youtube.com/@somechannel")
		return "", false
	}
	playlistID, err := c.yt.ResolveUploadsPlaylist(ctx, args[0])
	if err != nil {
		c.reply(ctx, msg, resolveErrorText(err, args[0]))
		return "", false
	}
	return playlistID, true
}

func resolveErrorText(err error, input string) string {
	var se *youtube.StatusError
	switch {
	case errors.Is(err, youtube.ErrBadChannelURL):
		return fmt.Sprintf("That doesn't look like a YouTube channel URL. Received: %s", input)
	case errors.Is(err, youtube.ErrChannelIDNotFound):
		return fmt.Sprintf("Could not find a channel id on the page at %s", input)
	case errors.As(err, &se):
		return fmt.Sprintf("The channel page returned HTTP %d. Please check the URL.", se.Code)
	default:
		return "Could not reach that channel page right now. Please try again later."
	}
}

func (c *Commands) subscribeCommand(ctx context.Context, msg *kit.Message, args []string) error {
	playlistID, ok := c.resolveArg(ctx, msg, args)
	if !ok {
		return nil
	}

	err := c.store.Add(ctx, playlistID, msg.ChatID)
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		c.reply(ctx, msg, "This chat is already subscribed to that channel.")
		return nil
	case err != nil:
		c.reply(ctx, msg, "Failed to save the subscription: "+err.Error())
		return err
	}
	c.reply(ctx, msg, fmt.Sprintf("Subscribed this chat to uploads playlist %s.", playlistID))
	return nil
}

func (c *Commands) unsubscribeCommand(ctx context.Context, msg *kit.Message, args []string) error {
	playlistID, ok := c.resolveArg(ctx, msg, args)
	if !ok {
		return nil
	}

	err := c.store.Delete(ctx, playlistID, msg.ChatID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.reply(ctx, msg, "This chat was not subscribed to that channel.")
		return nil
	case err != nil:
		c.reply(ctx, msg, "Failed to remove the subscription: "+err.Error())
		return err
	}
	c.reply(ctx, msg, fmt.Sprintf("Unsubscribed this chat from uploads playlist %s.", playlistID))
	return nil
}

func (c *Commands) filtersCommand(ctx context.Context, msg *kit.Message, args []string) error {
	if len(args) != 3 {
		c.reply(ctx, msg, "Usage: /filters <channel url> <live|vod|shorts> <on|off>")
		return nil
	}
	playlistID, ok := c.resolveArg(ctx, msg, args)
	if !ok {
		return nil
	}

	var on bool
	switch strings.ToLower(args[2]) {
	case "on":
		on = true
	case "off":
		on = false
	default:
		c.reply(ctx, msg, "The last argument must be on or off.")
		return nil
	}

	subs, err := c.store.Subscriptions(ctx, playlistID)
	if err != nil {
		c.reply(ctx, msg, "Failed to look up the subscription: "+err.Error())
		return err
	}
	var f storage.Filters
	found := false
	for _, s := range subs {
		if s.ChatID == msg.ChatID {
			f = s.Filters
			found = true
			break
		}
	}
	if !found {
		c.reply(ctx, msg, "This chat is not subscribed to that channel.")
		return nil
	}

	kind := strings.ToLower(args[1])
	switch kind {
	case "live":
		f.LiveAllowed = on
	case "vod":
		f.VODAllowed = on
	case "shorts":
		f.ShortsAllowed = on
	default:
		c.reply(ctx, msg, "The filter must be one of live, vod, shorts.")
		return nil
	}

	if err := c.store.SetFilters(ctx, playlistID, msg.ChatID, f); err != nil {
		c.reply(ctx, msg, "Failed to update filters: "+err.Error())
		return err
	}
	state := "off"
	if on {
		state = "on"
	}
	c.reply(ctx, msg, fmt.Sprintf("Turned %s notifications %s for this subscription.", kind, state))
	return nil
}

func (c *Commands) howmanyCommand(ctx context.Context, msg *kit.Message, _ []string) error {
	n, err := c.store.CountPlaylists(ctx)
	if err != nil {
		c.reply(ctx, msg, "Failed to count subscriptions: "+err.Error())
		return err
	}
	cadence := time.Duration(n) * c.yt.RequestInterval()
	c.reply(ctx, msg, fmt.Sprintf("Checking %d playlists, roughly one full pass every %s.", n, cadence))
	return nil
}

func (c *Commands) shutdownCommand(ctx context.Context, msg *kit.Message, _ []string) error {
	c.log.Info("shutdown requested",
		logx.Int64("user", msg.FromID), logx.String("username", msg.FromUsername))
	c.reply(ctx, msg, "Shutting down...")
	if c.requestShutdown != nil {
		c.requestShutdown()
	}
	return nil
}
