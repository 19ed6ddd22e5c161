package bot

import (
	"fmt"
	"strings"

	"github.com/telemyapp/brother-bot/internal/model"
)

const reportTemplate = "📠 *Printer:* %s (%s)\n" +
	"📅 *Period:* %s → %s\n" +
	"✅ *Plan limit:* %s pages\n" +
	"🔁 *Rollover:* %s pages\n" +
	"🖨️ *Printed:* %s pages"

// markdownEscaper covers the entity characters of Telegram's legacy
// Markdown parse mode.
var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"`", "\\`",
	"[", "\\[",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// FormatReport renders r as a Telegram Markdown message. Portal values are
// escaped so a model name like "MFC_J*1" cannot open an entity.
func FormatReport(r model.StatusReport) string {
	return fmt.Sprintf(reportTemplate,
		escapeMarkdown(r.Model), escapeMarkdown(r.SerialNumber),
		escapeMarkdown(r.CycleStart), escapeMarkdown(r.CycleEnd),
		escapeMarkdown(r.PlanPages),
		escapeMarkdown(r.RolloverPages),
		escapeMarkdown(r.PrintedPages),
	)
}
