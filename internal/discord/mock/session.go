// Package mock provides test doubles for Discord interaction testing.
package mock

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// InteractionResponder records interaction responses for test assertions.
// It implements discord.Responder.
type InteractionResponder struct {
	mu sync.Mutex

	// Responses records all InteractionRespond calls.
	Responses []*discordgo.InteractionResponse

	// FollowUps records all FollowupMessageCreate calls.
	FollowUps []*discordgo.WebhookParams

	// Err is returned by InteractionRespond and FollowupMessageCreate
	// when non-nil, allowing error injection.
	Err error
}

// InteractionRespond records the response and returns the configured error.
func (m *InteractionResponder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, resp)
	return m.Err
}

// FollowupMessageCreate records the follow-up and returns a stub message.
func (m *InteractionResponder) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, params *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FollowUps = append(m.FollowUps, params)
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "mock-followup", Content: params.Content}, nil
}

// LastResponse returns the most recently recorded response, or nil.
func (m *InteractionResponder) LastResponse() *discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Responses) == 0 {
		return nil
	}
	return m.Responses[len(m.Responses)-1]
}

// LastFollowUp returns the most recently recorded follow-up, or nil.
func (m *InteractionResponder) LastFollowUp() *discordgo.WebhookParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.FollowUps) == 0 {
		return nil
	}
	return m.FollowUps[len(m.FollowUps)-1]
}

// Messages counts user-visible messages: immediate responses carrying
// content plus follow-ups. A deferral alone is not a message.
func (m *InteractionResponder) Messages() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.FollowUps)
	for _, r := range m.Responses {
		if r.Type == discordgo.InteractionResponseChannelMessageWithSource {
			n++
		}
	}
	return n
}

// Reset clears all recorded interactions and errors.
func (m *InteractionResponder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = nil
	m.FollowUps = nil
	m.Err = nil
}

// CommandRegistrar records slash command registrations. It implements
// discord.CommandRegistrar.
type CommandRegistrar struct {
	mu sync.Mutex

	// Err is returned by both methods when non-nil.
	Err error

	// AppID and GuildID are the arguments of the last overwrite.
	AppID, GuildID string

	// Registered holds the commands of the last overwrite.
	Registered []*discordgo.ApplicationCommand

	// Deleted lists command IDs passed to ApplicationCommandDelete.
	Deleted []string
}

// ApplicationCommandBulkOverwrite records cmds and echoes them back with IDs assigned.
func (m *CommandRegistrar) ApplicationCommandBulkOverwrite(appID, guildID string, cmds []*discordgo.ApplicationCommand, _ ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.AppID, m.GuildID = appID, guildID
	out := make([]*discordgo.ApplicationCommand, 0, len(cmds))
	for _, c := range cmds {
		cp := *c
		cp.ID = "cmd-" + c.Name
		out = append(out, &cp)
	}
	m.Registered = out
	return out, nil
}

// ApplicationCommandDelete records the deleted command ID.
func (m *CommandRegistrar) ApplicationCommandDelete(_, _ string, cmdID string, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, cmdID)
	return m.Err
}
