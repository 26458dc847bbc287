// Package intent holds the model-backed collaborators of the pipeline: the
// turn classifier, API understanding and auth extraction.
package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/mark3labs/postai/internal/llm"
)

type Action string

const (
	ProcessAPIRequest Action = "process_api_request"
	RequestMoreInfo   Action = "request_more_info"
	ProvideHelp       Action = "provide_help"
	SwaggerOperation  Action = "swagger_operation"
	OtherOperation    Action = "other_operation"
)

func (a Action) valid() bool {
	switch a {
	case ProcessAPIRequest, RequestMoreInfo, ProvideHelp, SwaggerOperation, OtherOperation:
		return true
	}
	return false
}

// Decision is the classifier's verdict on one turn.
type Decision struct {
	Action         Action   `json:"action"`
	UserRequest    string   `json:"userRequest"`
	NextStep       string   `json:"nextStep"`
	MissingInfo    []string `json:"missingInfo,omitempty"`
	HelpMessage    string   `json:"helpMessage,omitempty"`
	SwaggerCommand string   `json:"swaggerCommand,omitempty"`
}

// ClassificationError means the model answered but no decision could be
// read from the reply.
type ClassificationError struct {
	Reply string
	Cause error
}

func (e *ClassificationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("could not determine action: %v", e.Cause)
	}
	return "could not determine action"
}

func (e *ClassificationError) Unwrap() error { return e.Cause }

const classifierPrompt = `You route turns for a conversational HTTP API client.
Classify the user's latest turn and answer with a single JSON object:
{
  "action": "process_api_request" | "request_more_info" | "provide_help" | "swagger_operation" | "other_operation",
  "userRequest": "the request restated in one sentence",
  "nextStep": "what should happen next",
  "missingInfo": ["information the user still has to give"],
  "helpMessage": "only for provide_help",
  "swaggerCommand": "only for swagger_operation, e.g. swagger load petstore"
}
Rules:
- process_api_request: the user wants to call an API endpoint now.
- request_more_info: the user wants to call an API but the target is unclear.
- provide_help: the user asks how to use the client.
- swagger_operation: the user wants to save, load, list, switch or delete API documents.
  swaggerCommand uses: swagger save <name> (saves the current document) | swagger load <name> | swagger use <name> |
  swagger list | swagger loaded | swagger delete <name> | swagger deleteall
- other_operation: anything else; put your answer in nextStep.
Answer in the user's language. Output only the JSON object.`

// Classifier decides which branch of the pipeline handles a free-form turn.
type Classifier struct {
	completer llm.Completer
	logger    hclog.Logger
}

func NewClassifier(completer llm.Completer, logger hclog.Logger) *Classifier {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Classifier{completer: completer, logger: logger.Named("classifier")}
}

// Classify sends the turn with the prior conversation. Transport failures
// are returned as is; unreadable replies as *ClassificationError.
func (c *Classifier) Classify(ctx context.Context, turn string, history []llm.Message) (Decision, error) {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.System(classifierPrompt))
	messages = append(messages, history...)
	messages = append(messages, llm.User(turn))

	reply, err := c.completer.Complete(ctx, messages)
	if err != nil {
		return Decision{}, fmt.Errorf("classify turn: %w", err)
	}
	var d Decision
	if err := llm.DecodeObject(reply, &d); err != nil {
		c.logger.Debug("unreadable classification", "reply", reply)
		return Decision{}, &ClassificationError{Reply: reply, Cause: err}
	}
	d.Action = Action(strings.ToLower(strings.TrimSpace(string(d.Action))))
	if !d.Action.valid() {
		return Decision{}, &ClassificationError{Reply: reply, Cause: fmt.Errorf("unknown action %q", d.Action)}
	}
	c.logger.Debug("classified turn", "action", d.Action)
	return d, nil
}
