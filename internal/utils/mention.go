package utils

import (
	"fmt"
	"html"
)

// MentionHTML builds an HTML user mention for ParseMode=HTML messages.
func MentionHTML(userID int64, name string) string {
	if name == "" {
		name = "User"
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, html.EscapeString(name))
}

// MessageLink builds a t.me deep link to a message in a supergroup. Username
// takes priority; private supergroups fall back to the /c/ form.
func MessageLink(chatID int64, chatUsername string, messageID int) string {
	if chatUsername != "" {
		return fmt.Sprintf("https://t.me/%s/%d", chatUsername, messageID)
	}
	cid := fmt.Sprintf("%d", chatID)
	if len(cid) > 4 && cid[:4] == "-100" {
		cid = cid[4:]
	}
	return fmt.Sprintf("https://t.me/c/%s/%d", cid, messageID)
}
