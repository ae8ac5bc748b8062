package scrape

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CommandStatus classifies the outcome page of a booking command.
type CommandStatus int

const (
	CommandOK CommandStatus = iota
	CommandMaxReached
	CommandStarted
	CommandAmbiguous
	CommandUnknownError
)

func (s CommandStatus) String() string {
	switch s {
	case CommandOK:
		return "ok"
	case CommandMaxReached:
		return "max-reached-error"
	case CommandStarted:
		return "started-error"
	case CommandAmbiguous:
		return "ambiguous-error"
	case CommandUnknownError:
		return "unknown-error"
	}
	return "invalid"
}

// CommandAction is the action the server confirmed.
type CommandAction int

const (
	ActionUnknown CommandAction = iota
	ActionBook
	ActionUnbook
)

func (a CommandAction) String() string {
	switch a {
	case ActionBook:
		return "book"
	case ActionUnbook:
		return "unbook"
	}
	return "unknown"
}

// CommandResult is the decoded outcome of a book/unbook command. Action is
// meaningful only when Status is CommandOK; Message carries the translated
// failure reason otherwise. Raw preserves the server's own wording.
type CommandResult struct {
	Status  CommandStatus
	Action  CommandAction
	Message string
	Raw     string
}

func (r CommandResult) OK() bool { return r.Status == CommandOK }

var actionTitle = regexp.MustCompile(`^\s*(.*)\s+utförd:\s*$`)

// The site reports outcomes in Swedish free text; these are the known
// phrasings, matched case-insensitively.
var commandActions = map[string]CommandAction{
	"bokning":   ActionBook,
	"avbokning": ActionUnbook,
}

var commandErrors = map[string]CommandStatus{
	"max antal framtida bokningar överskridet.":       CommandMaxReached,
	"inte tillåtet att avboka ett startat pass.":      CommandStarted,
	"specified argument was out of the range of valid values.\nparameter name: index": CommandAmbiguous,
}

var commandErrorMessages = map[CommandStatus]string{
	CommandMaxReached: "Maximum number of simultaneous bookings reached.",
	CommandStarted:    "You cannot unbook a time that has already started.",
	CommandAmbiguous:  "Invalid timeslot. It could be expired, not yet available or already taken.",
}

// CommandOutcome parses the response page of a booking command. A failed
// command is still a successful parse: the failure comes back in the
// result, not as an error. Only structural surprises are errors.
func CommandOutcome(html []byte) (CommandResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return CommandResult{}, err
	}

	table := doc.Find(activeTableClass)
	if table.Length() != 1 {
		return CommandResult{}, markupErrf("cannot find main response table")
	}

	title := table.Find(".bigText.headerColor").First()
	if title.Length() == 1 {
		if m := actionTitle.FindStringSubmatch(title.Text()); m != nil {
			action, ok := commandActions[strings.ToLower(m[1])]
			if !ok {
				action = ActionUnknown
			}
			return CommandResult{Status: CommandOK, Action: action, Raw: m[1]}, nil
		}
	}
	return commandError(table)
}

func commandError(table *goquery.Selection) (CommandResult, error) {
	banner := table.Find(errorBannerSel).First()
	if banner.Length() != 1 {
		return CommandResult{}, markupErrf("cannot find error text in command response")
	}
	raw := banner.Text()
	status, ok := commandErrors[strings.ToLower(raw)]
	if !ok {
		status = CommandUnknownError
	}
	msg := commandErrorMessages[status]
	if status == CommandUnknownError {
		msg = "Unknown error: " + raw
	}
	return CommandResult{Status: status, Message: msg, Raw: raw}, nil
}
