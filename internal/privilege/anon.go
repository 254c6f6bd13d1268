package privilege

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ResumeIntent is a command parked while its anonymous sender proves
// admin rights through a callback button.
type ResumeIntent struct {
	Command string
	Args    []string
	Perm    AdminPerm
}

// Continuations holds parked anonymous-admin commands keyed by the chat
// and message that carried them. Entries expire if nobody presses the
// button.
type Continuations struct {
	parked *expirable.LRU[string, ResumeIntent]
}

func NewContinuations(ttl time.Duration) *Continuations {
	return &Continuations{
		parked: expirable.NewLRU[string, ResumeIntent](1024, nil, ttl),
	}
}

func continuationKey(chatID int64, messageID int) string {
	return fmt.Sprintf("%d/%d", chatID, messageID)
}

func (c *Continuations) Park(chatID int64, messageID int, intent ResumeIntent) {
	c.parked.Add(continuationKey(chatID, messageID), intent)
}

// Take removes and returns the parked command, so a button can only be
// redeemed once.
func (c *Continuations) Take(chatID int64, messageID int) (ResumeIntent, bool) {
	key := continuationKey(chatID, messageID)
	intent, ok := c.parked.Get(key)
	if ok {
		c.parked.Remove(key)
	}
	return intent, ok
}
