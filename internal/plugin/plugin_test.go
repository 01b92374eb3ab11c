package plugin

import (
	"strings"
	"testing"

	"github.com/triage-ai/rbacgate/internal/audit"
	"github.com/triage-ai/rbacgate/internal/hostbus"
	"github.com/triage-ai/rbacgate/internal/policy"
)

type fakeLogger struct{ lines []string }

func (f *fakeLogger) Info(msg string)  { f.lines = append(f.lines, "INFO "+msg) }
func (f *fakeLogger) Warn(msg string)  { f.lines = append(f.lines, "WARN "+msg) }
func (f *fakeLogger) Error(msg string) { f.lines = append(f.lines, "ERROR "+msg) }

type fakeSink struct{ records []audit.Record }

func (f *fakeSink) Write(rec audit.Record) { f.records = append(f.records, rec) }
func (f *fakeSink) Close()                 {}

const scenarioPolicy = `{
  "roles": {
    "admin": {"users": ["408001372", "447903128"], "tools": "*"},
    "guest-telegram": {"users": "*", "tools": ["get_recent_news", "subscribe_user", "unsubscribe_user"], "channels": ["telegram"]},
    "guest-max": {"users": "*", "tools": ["get_recent_news", "memory_search"], "channels": ["max"]},
    "guest": {"users": "*", "tools": ["get_recent_news"], "channels": "*"}
  },
  "defaultRole": "guest",
  "failSafe": "deny"
}`

func mustNewPlugin(t *testing.T, doc string) (*Plugin, *fakeLogger, *fakeSink) {
	t.Helper()
	log := &fakeLogger{}
	sink := &fakeSink{}
	raw, err := policy.DecodeJSON(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	p, err := New(raw, log, sink)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, log, sink
}

// Scenario 1: admin from telegram may exec anything.
func TestScenarioAdminAllowed(t *testing.T) {
	p, _, _ := mustNewPlugin(t, scenarioPolicy)
	v := p.BeforeToolCall(
		hostbus.ToolCallEvent{ToolName: "exec"},
		hostbus.ToolCallContext{SessionKey: "agent:main:telegram:direct:408001372"},
	)
	if v != nil {
		t.Fatalf("expected no verdict (allow), got %+v", v)
	}
}

// Scenario 2: unknown telegram peer attempting memory_search is blocked;
// reason names the resolved role and tool.
func TestScenarioGuestTelegramBlocked(t *testing.T) {
	p, _, sink := mustNewPlugin(t, scenarioPolicy)
	v := p.BeforeToolCall(
		hostbus.ToolCallEvent{ToolName: "memory_search"},
		hostbus.ToolCallContext{SessionKey: "agent:main:telegram:direct:999111222"},
	)
	if v == nil || !v.Block {
		t.Fatalf("expected block verdict, got %+v", v)
	}
	if !strings.Contains(v.BlockReason, "guest-telegram") || !strings.Contains(v.BlockReason, "memory_search") {
		t.Fatalf("reason %q missing role/tool", v.BlockReason)
	}
	if len(sink.records) != 1 || sink.records[0].Kind != audit.KindBlocked {
		t.Fatalf("expected one BLOCKED record, got %+v", sink.records)
	}
}

// Scenario 3: same peer on the "max" channel resolves to guest-max, which
// has memory_search.
func TestScenarioMaxChannelAllowed(t *testing.T) {
	p, _, _ := mustNewPlugin(t, scenarioPolicy)
	v := p.BeforeToolCall(
		hostbus.ToolCallEvent{ToolName: "memory_search"},
		hostbus.ToolCallContext{SessionKey: "agent:main:max:direct:999111222"},
	)
	if v != nil {
		t.Fatalf("expected allow, got %+v", v)
	}
}

// Scenario 4: generic guest (web channel, not covered by any specific
// role) lacks subscribe_user.
func TestScenarioGenericGuestBlocked(t *testing.T) {
	p, _, _ := mustNewPlugin(t, scenarioPolicy)
	v := p.BeforeToolCall(
		hostbus.ToolCallEvent{ToolName: "subscribe_user"},
		hostbus.ToolCallContext{SessionKey: "agent:main:web:direct:555666777"},
	)
	if v == nil || !v.Block {
		t.Fatalf("expected block, got %+v", v)
	}
}

// Scenario 5: an unparseable session key under failSafe=deny blocks.
func TestScenarioUnparseableSessionKeyDeniedByFailSafe(t *testing.T) {
	p, _, _ := mustNewPlugin(t, scenarioPolicy)
	v := p.BeforeToolCall(
		hostbus.ToolCallEvent{ToolName: "exec"},
		hostbus.ToolCallContext{SessionKey: "agent:main:main"},
	)
	if v == nil || !v.Block {
		t.Fatalf("expected block under failSafe=deny, got %+v", v)
	}
}

func TestNoSessionKeyIsAlwaysAllowed(t *testing.T) {
	p, _, _ := mustNewPlugin(t, scenarioPolicy)
	v := p.BeforeToolCall(hostbus.ToolCallEvent{ToolName: "exec"}, hostbus.ToolCallContext{})
	if v != nil {
		t.Fatalf("expected no verdict for internal call, got %+v", v)
	}
}

// Scenario 6: command guard arms a pending block for a non-admin sender,
// consumed on message-sending with the configured block response; /help
// returns guestHelp; an admin's command arms nothing.
func TestScenarioCommandGuardLifecycle(t *testing.T) {
	const doc = `{
		"roles": {
			"admin": {"users": ["408001372"], "tools": "*"},
			"guest": {"users": "*", "tools": ["get_recent_news"], "channels": "*"}
		},
		"defaultRole": "guest",
		"systemCommands": {
			"mode": "allowlist",
			"allowed": ["/start", "/stop", "/news"],
			"guestHelp": "try /start, /stop, or /news",
			"blockResponse": "that command isn't available here"
		}
	}`
	p, _, _ := mustNewPlugin(t, doc)

	p.MessageReceived(
		hostbus.MessageEvent{Content: "/status", From: "999111222"},
		hostbus.MessageContext{ChannelID: "telegram", SessionKey: "agent:main:telegram:direct:999111222"},
	)
	override := p.MessageSending(hostbus.MessageEvent{Content: "normal host reply"})
	if override == nil || override.Content != "that command isn't available here" {
		t.Fatalf("expected block response override, got %+v", override)
	}

	p.MessageReceived(
		hostbus.MessageEvent{Content: "/help", From: "999111222"},
		hostbus.MessageContext{ChannelID: "telegram", SessionKey: "agent:main:telegram:direct:999111222"},
	)
	override = p.MessageSending(hostbus.MessageEvent{Content: "normal host reply"})
	if override == nil || override.Content != "try /start, /stop, or /news" {
		t.Fatalf("expected guestHelp override, got %+v", override)
	}

	p.MessageReceived(
		hostbus.MessageEvent{Content: "/status", From: "408001372"},
		hostbus.MessageContext{ChannelID: "telegram", SessionKey: "agent:main:telegram:direct:408001372"},
	)
	override = p.MessageSending(hostbus.MessageEvent{Content: "normal host reply"})
	if override != nil {
		t.Fatalf("admin command should arm nothing, got override %+v", override)
	}
}

func TestNewRejectsInvalidPolicy(t *testing.T) {
	log := &fakeLogger{}
	sink := &fakeSink{}
	_, err := New(policy.OrderedMap{}, log, sink)
	if err == nil {
		t.Fatalf("expected error for empty document")
	}
	found := false
	for _, line := range log.lines {
		if strings.HasPrefix(line, "ERROR") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an error log line, got %v", log.lines)
	}
}
