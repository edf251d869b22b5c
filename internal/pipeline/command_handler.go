package pipeline

import (
	"context"
	"log/slog"
)

// commandHandler serves the exact-command synonym set with static,
// pre-rendered replies. It is first in the chain: the most literal match
// wins before anything more expensive runs.
type commandHandler struct {
	parser *CommandParser
	logger *slog.Logger

	joinReply string
	helpReply string
}

// NewCommandHandler creates the exact-command handler.
func NewCommandHandler(parser *CommandParser, joinReply, helpReply string, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &commandHandler{
		parser:    parser,
		logger:    logger.With("handler", "command"),
		joinReply: joinReply,
		helpReply: helpReply,
	}
}

func (h *commandHandler) Name() string { return string(TriggerCommand) }

func (h *commandHandler) Handle(ctx context.Context, req *RequestContext) (*Outcome, error) {
	cmd, ok := h.parser.Parse(req.RawText)
	if !ok {
		return nil, nil
	}

	var text string
	switch cmd {
	case CommandJoin:
		text = h.joinReply
	case CommandHelp:
		text = h.helpReply
	default:
		return nil, nil
	}

	h.logger.InfoContext(ctx, "Handling exact command", "user_id", req.UserID, "command", cmd)

	return &Outcome{
		Reply: &Reply{Text: text},
		Meta: Metadata{
			Trigger: TriggerCommand,
			Intent:  string(cmd),
		},
	}, nil
}
