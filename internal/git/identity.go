package git

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v5/plumbing/object"
)

// Identity is the commit author used for formatting commits.
type Identity struct {
	Name  string
	Email string
}

// BotIdentity returns the identity for a bot account. An empty email falls
// back to the GitHub no-reply address for botName.
func BotIdentity(botName, email string) Identity {
	if botName == "" {
		botName = "cpp-auto-formatter"
	}
	if email == "" {
		email = fmt.Sprintf("%s@users.noreply.github.com", botName)
	}
	return Identity{Name: botName, Email: email}
}

func (id Identity) signature(when time.Time) *object.Signature {
	return &object.Signature{Name: id.Name, Email: id.Email, When: when}
}
