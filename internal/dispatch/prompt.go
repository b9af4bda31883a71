// ABOUTME: Instruction templating for executor calls
// ABOUTME: Derives the system prompt from the agent and the user prompt from the request

package dispatch

import (
	"fmt"

	"github.com/2389/taskdesk/internal/store"
)

// buildInstructions derives the system instruction from the agent's
// name/role and the user instruction from the request's title/description.
func buildInstructions(agent *store.Agent, req *store.Request) (system, user string) {
	if agent.Role != "" {
		system = fmt.Sprintf("You are %s, working as %s. Complete the assigned task and respond with the result only.", agent.Name, agent.Role)
	} else {
		system = fmt.Sprintf("You are %s. Complete the assigned task and respond with the result only.", agent.Name)
	}

	user = req.Title
	if req.Description != "" {
		user = req.Title + "\n\n" + req.Description
	}
	return system, user
}
