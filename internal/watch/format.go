package watch

import (
	"context"
	"html"
	"strings"

	kit "tubewatch/internal/transport"
	"tubewatch/internal/youtube"
)

const scheduledTimeFormat = "Mon, Jan 2 15:04 MST"

func htmlSendOptions() *kit.SendOptions {
	return &kit.SendOptions{ParseMode: "HTML"}
}

func stateEmoji(s youtube.LiveState) string {
	switch s {
	case youtube.StateUpcoming:
		return "⏱ "
	case youtube.StateLive:
		return "🔴 "
	case youtube.StateVOD:
		return "⭕ "
	default:
		return ""
	}
}

// formatMessage renders the notification text for one workunit: origin
// channel and category on the first line, state emoji, optional scheduled
// time, and the linked title on the second.
func (e *Engine) formatMessage(ctx context.Context, wu Workunit) string {
	ex := wu.Extras

	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(ex.ChannelTitle))
	b.WriteString("</b>")
	if title := e.src.Title(ctx, ex.CategoryID); title != "" {
		b.WriteString(" · ")
		b.WriteString(html.EscapeString(title))
	}
	b.WriteString("\n")

	b.WriteString(stateEmoji(ex.State))
	if ex.State == youtube.StateUpcoming && !ex.ScheduledAt.IsZero() {
		b.WriteString(ex.ScheduledAt.Format(scheduledTimeFormat))
		b.WriteString(" ")
	}
	b.WriteString(`<a href="https://youtu.be/`)
	b.WriteString(wu.Video.ID)
	b.WriteString(`">`)
	b.WriteString(html.EscapeString(ex.Title))
	b.WriteString("</a>")

	return b.String()
}
