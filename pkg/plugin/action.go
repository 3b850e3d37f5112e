package plugin

import (
	"context"

	"firestige.xyz/tzspd/internal/core"
)

// Result tells the plan what to do after an action handled a message.
type Result uint8

const (
	// Continue passes the message to the next action.
	Continue Result = iota
	// Drop ends the plan for this message.
	Drop
	// Delivered reports that the message left the process; the plan counts
	// it as sent and continues.
	Delivered
)

func (r Result) String() string {
	switch r {
	case Continue:
		return "continue"
	case Drop:
		return "drop"
	case Delivered:
		return "delivered"
	default:
		return "unknown"
	}
}

// Action is one step of a capture plan. Handle is called from many
// workers at once and must not retain msg or its Data after returning.
type Action interface {
	Plugin
	Handle(ctx context.Context, msg *core.Message) (Result, error)
}

// ActionFactory creates an unconfigured action instance.
type ActionFactory func() Action
