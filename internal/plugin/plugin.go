// Package plugin wires the config loader, session parser, role resolver,
// tool guard, rate limiter, and command guard to the host's three
// event-bus hooks. The decision packages it wires (policy, session, rbac,
// ratelimit, command) never import hostbus, keeping the engine's
// dependency graph a DAG with the engine at the bottom.
package plugin

import (
	"fmt"
	"time"

	"github.com/triage-ai/rbacgate/internal/audit"
	"github.com/triage-ai/rbacgate/internal/command"
	"github.com/triage-ai/rbacgate/internal/hostbus"
	"github.com/triage-ai/rbacgate/internal/policy"
	"github.com/triage-ai/rbacgate/internal/ratelimit"
	"github.com/triage-ai/rbacgate/internal/rbac"
	"github.com/triage-ai/rbacgate/internal/session"
)

// newRecord stamps a Record with a fresh correlation id and timestamp
// before the caller fills in the kind-specific fields.
func newRecord(kind audit.Kind) audit.Record {
	return audit.Record{ID: audit.NewID(), Kind: kind, Timestamp: time.Now()}
}

// Plugin owns the loaded Policy and the per-process state (rate limiter,
// pending-block slot) that backs the three host hooks.
type Plugin struct {
	pol    *policy.Policy
	logger hostbus.Logger
	sink   audit.Sink

	limiter *ratelimit.Limiter
	pending *command.PendingBlockSlot
}

// New validates doc and, on success, returns a registered Plugin. On
// failure it logs the error and returns it — the host must not register a
// plugin that failed to load, per policy.md §4.7's "no partial state"
// rule.
func New(doc any, logger hostbus.Logger, sink audit.Sink) (*Plugin, error) {
	pol, err := policy.Load(doc)
	if err != nil {
		logger.Error(fmt.Sprintf("rbac: policy load failed: %v", err))
		return nil, err
	}

	p := &Plugin{
		pol:     pol,
		logger:  logger,
		sink:    sink,
		pending: command.NewPendingBlockSlot(),
	}
	if pol.RateLimit != nil {
		p.limiter = ratelimit.New(pol.RateLimit.MaxBlockedPerMinute)
	}

	logger.Info(fmt.Sprintf(
		"rbac: registered roles=%d defaultRole=%q failSafe=%q",
		len(pol.Roles), pol.DefaultRole, pol.FailSafe.String()))
	for _, w := range pol.Warnings {
		logger.Warn("rbac: " + w)
	}

	return p, nil
}

// Policy returns the plugin's loaded Policy, mainly for callers building
// the menu-command surface (C8) from SystemCommandsSpec.
func (p *Plugin) Policy() *policy.Policy {
	return p.pol
}

// Close releases the audit sink.
func (p *Plugin) Close() {
	p.sink.Close()
}

// BeforeToolCall implements the before-tool-call hook. A nil *Verdict
// means "no opinion" — the caller must proceed as if RBAC were not
// consulted.
func (p *Plugin) BeforeToolCall(ev hostbus.ToolCallEvent, ctx hostbus.ToolCallContext) *hostbus.Verdict {
	if ctx.SessionKey == "" {
		// Internal/system call — always allowed.
		return nil
	}

	key, ok := session.Parse(ctx.SessionKey)
	if !ok {
		if p.pol.FailSafe == policy.FailSafeAllow {
			return nil
		}
		rec := newRecord(audit.KindBlocked)
		rec.Tool = ev.ToolName
		rec.Reason = "Access denied: unrecognized session (RBAC failSafe)"
		p.sink.Write(rec)
		return &hostbus.Verdict{
			Block:       true,
			BlockReason: "Access denied: unrecognized session (RBAC failSafe)",
		}
	}

	roleName := rbac.ResolveRole(p.pol, key.PeerID, key.Channel)
	decision := rbac.CheckToolAccess(p.pol, ev.ToolName, roleName)

	if !decision.Allowed {
		p.emitBlocked(ev.ToolName, key, roleName, decision.Reason)
		reason := decision.Reason
		if reason == "" {
			reason = "Access denied by RBAC policy"
		}
		return &hostbus.Verdict{Block: true, BlockReason: reason}
	}

	if p.pol.LogAllowed {
		rec := newRecord(audit.KindAllowed)
		rec.Tool, rec.Peer, rec.Channel, rec.Role = ev.ToolName, key.PeerID, key.Channel, roleName
		p.sink.Write(rec)
	}
	return nil
}

// emitBlocked logs a BLOCKED record, subject to the rate limiter, and
// emits the one-time rate-limit-exceeded notice the first time
// suppression kicks in for this peer's current window.
func (p *Plugin) emitBlocked(tool string, key session.Key, roleName, reason string) {
	if !p.pol.LogBlocked {
		return
	}
	blockedRecord := func() audit.Record {
		rec := newRecord(audit.KindBlocked)
		rec.Tool, rec.Peer, rec.Channel, rec.Role, rec.Reason = tool, key.PeerID, key.Channel, roleName, reason
		return rec
	}

	if p.limiter == nil {
		p.sink.Write(blockedRecord())
		return
	}

	if p.limiter.ShouldLog(key.PeerID) {
		p.sink.Write(blockedRecord())
		return
	}
	if p.limiter.GetSuppressed(key.PeerID) == 1 {
		rec := newRecord(audit.KindRateLimited)
		rec.Peer = key.PeerID
		p.sink.Write(rec)
	}
}

// MessageReceived implements the message-received hook: if the incoming
// content matches a blocked/non-allowlisted command and the sender is not
// an administrator, it arms the pending block consumed by MessageSending.
func (p *Plugin) MessageReceived(ev hostbus.MessageEvent, ctx hostbus.MessageContext) {
	if p.pol.SystemCommands == nil {
		return
	}
	cmd, matched := command.MatchBlockedCommand(ev.Content, p.pol.SystemCommands)
	if !matched {
		return
	}

	key, ok := session.Parse(ctx.SessionKey)
	peerID, channel := ev.From, ctx.ChannelID
	roleName := ""
	if ok {
		peerID, channel = key.PeerID, key.Channel
		roleName = rbac.ResolveRole(p.pol, peerID, channel)
	} else {
		roleName = p.pol.DefaultRole
	}

	if command.IsAdminByTools(p.pol, roleName) {
		return
	}

	p.pending.SetPendingBlock(cmd)
	rec := newRecord(audit.KindGuard)
	rec.Command, rec.Peer, rec.Channel, rec.Role = cmd, peerID, channel, roleName
	p.sink.Write(rec)
}

// MessageSending implements the message-sending hook: if a pending block
// is armed (and not stale), it overrides the outgoing body with the
// configured block response.
func (p *Plugin) MessageSending(_ hostbus.MessageEvent) *hostbus.SendingOverride {
	cmd, ok := p.pending.ConsumePendingBlock()
	if !ok {
		return nil
	}
	return &hostbus.SendingOverride{Content: command.GetBlockResponse(cmd, p.pol.SystemCommands)}
}
