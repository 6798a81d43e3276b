package domain

// CommandAction is the verb of an outbound crawler command
type CommandAction string

const (
	ActionStart CommandAction = "start"
	ActionStop  CommandAction = "stop"
)

// StartParams tunes a crawl run
type StartParams struct {
	DomainsOnly  bool `json:"domainsOnly"`
	IgnoreRobots bool `json:"ignoreRobots"`
}

// Command is a message sent to the crawler
type Command struct {
	Action CommandAction `json:"action"`
	Domain string        `json:"domain,omitempty"`
	Params *StartParams  `json:"params,omitempty"`
}

// NewStartCommand builds a start command seeded with domain
func NewStartCommand(domain string, params StartParams) Command {
	return Command{
		Action: ActionStart,
		Domain: domain,
		Params: &params,
	}
}

// NewStopCommand builds a stop command
func NewStopCommand() Command {
	return Command{Action: ActionStop}
}
