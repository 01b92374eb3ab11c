// Command rbac-demo wires the RBAC engine to an in-memory fake event bus
// and drives the scenarios from policy.md §8 end-to-end, printing each
// verdict. It contains no business logic of its own — the point is to
// exercise session parse -> role resolve -> tool/command guard -> audit as
// a reader would see it wired by a real host.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/triage-ai/rbacgate/internal/audit"
	"github.com/triage-ai/rbacgate/internal/hostbus"
	"github.com/triage-ai/rbacgate/internal/plugin"
	"github.com/triage-ai/rbacgate/internal/policy"
	"github.com/triage-ai/rbacgate/internal/policysource"
)

const samplePolicy = `
roles:
  admin:
    users: ["408001372", "447903128"]
    tools: "*"
  guest-telegram:
    users: "*"
    tools: ["get_recent_news", "subscribe_user", "unsubscribe_user"]
    channels: ["telegram"]
  guest-max:
    users: "*"
    tools: ["get_recent_news", "memory_search"]
    channels: ["max"]
  guest:
    users: "*"
    tools: ["get_recent_news"]
    channels: "*"
defaultRole: guest
failSafe: deny
systemCommands:
  mode: allowlist
  allowed: ["/start", "/stop", "/news"]
  guestHelp: "try /start, /stop, or /news"
  blockResponse: "that command isn't available here"
`

func main() {
	policyPath := flag.String("policy", "", "path to a policy YAML/JSON file (default: embedded sample)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "optional ClickHouse DSN for durable audit records")
	logLevel := flag.String("log-level", "info", "debug|info|warn|error")
	flag.Parse()

	logger := mustBuildLogger(*logLevel)
	defer logger.Sync() //nolint:errcheck

	host := &zapLogger{logger}

	var doc any
	var err error
	if *policyPath != "" {
		doc, err = policysource.NewFileSource(*policyPath).Load(context.Background())
	} else {
		doc, err = policy.DecodeYAML(strings.NewReader(samplePolicy))
	}
	if err != nil {
		logger.Fatal("failed to load policy", zap.Error(err))
	}

	var sink audit.Sink = audit.NewLogSink(host)
	if *clickhouseDSN != "" {
		chSink, err := audit.NewClickHouseSink(*clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log sink", zap.Error(err))
		} else {
			sink = chSink
			logger.Info("clickhouse audit sink connected")
		}
	}

	p, err := plugin.New(doc, host, sink)
	if err != nil {
		logger.Fatal("plugin registration failed", zap.Error(err))
	}
	defer p.Close()

	runScenarios(p)
}

func runScenarios(p *plugin.Plugin) {
	fmt.Println("--- tool-call scenarios ---")
	toolScenarios := []struct {
		tool       string
		sessionKey string
	}{
		{"exec", "agent:main:telegram:direct:408001372"},
		{"memory_search", "agent:main:telegram:direct:999111222"},
		{"memory_search", "agent:main:max:direct:999111222"},
		{"subscribe_user", "agent:main:web:direct:555666777"},
		{"exec", "agent:main:main"},
	}
	for _, s := range toolScenarios {
		v := p.BeforeToolCall(
			hostbus.ToolCallEvent{ToolName: s.tool},
			hostbus.ToolCallContext{SessionKey: s.sessionKey},
		)
		printVerdict(s.tool, s.sessionKey, v)
	}

	fmt.Println("--- command-guard scenario ---")
	runCommandScenario(p, "999111222", "/status")
	runCommandScenario(p, "999111222", "/help")
	runCommandScenario(p, "408001372", "/status")
}

func printVerdict(tool, sessionKey string, v *hostbus.Verdict) {
	if v == nil {
		fmt.Printf("tool=%-15s session=%-40s -> ALLOW\n", tool, sessionKey)
		return
	}
	fmt.Printf("tool=%-15s session=%-40s -> BLOCK (%s)\n", tool, sessionKey, v.BlockReason)
}

func runCommandScenario(p *plugin.Plugin, peer, content string) {
	sessionKey := "agent:main:telegram:direct:" + peer
	p.MessageReceived(
		hostbus.MessageEvent{Content: content, From: peer},
		hostbus.MessageContext{ChannelID: "telegram", SessionKey: sessionKey},
	)
	override := p.MessageSending(hostbus.MessageEvent{Content: "original host reply"})
	if override == nil {
		fmt.Printf("peer=%-12s content=%-10s -> unmodified reply\n", peer, content)
		return
	}
	fmt.Printf("peer=%-12s content=%-10s -> overridden reply: %q\n", peer, content, override.Content)
}

// zapLogger adapts *zap.Logger to hostbus.Logger.
type zapLogger struct {
	z *zap.Logger
}

func (l *zapLogger) Info(msg string)  { l.z.Info(msg) }
func (l *zapLogger) Warn(msg string)  { l.z.Warn(msg) }
func (l *zapLogger) Error(msg string) { l.z.Error(msg) }

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
