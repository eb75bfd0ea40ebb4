package coachnode

import (
	"errors"
	"fmt"
	"strings"

	contractx "github.com/dhrits/job-hopper/agent/contract"
)

var ErrEmptyReply = errors.New("model returned empty reply")

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	if in.TurnErr != nil {
		return GraphOutput{}, in.TurnErr
	}

	reply := strings.TrimSpace(in.Reply.Content)
	if reply == "" {
		return GraphOutput{}, ErrEmptyReply
	}
	return GraphOutput{Reply: reply}, nil
}
