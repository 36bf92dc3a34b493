package discord

import "context"

// Module is a feature bundle of commands registered into a Session.
type Module interface {
	Name() string
	Commands() []*Command
}

// EventModule is a Module that also listens to gateway events. Each
// handler must be a function discordgo.Session.AddHandler accepts.
type EventModule interface {
	Module
	Handlers() []any
}

// StoreReadyModule is notified once persistence has been initialized on
// the first ready event. It is not called when initialization fails.
type StoreReadyModule interface {
	Module
	StoreReady(ctx context.Context)
}
