// Package notify delivers proposals, heartbeats and alerts to the operator
// and turns operator replies into commands for the engine.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Alias1177/fxguard/internal/clock"
	"github.com/Alias1177/fxguard/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Severity of an alert
type Severity string

const (
	SeverityInfo      Severity = "INFO"
	SeverityWarning   Severity = "WARNING"
	SeverityError     Severity = "ERROR"
	SeverityCritical  Severity = "CRITICAL"
	SeverityEmergency Severity = "EMERGENCY"
)

var severityIcons = map[Severity]string{
	SeverityInfo:      "ℹ️",
	SeverityWarning:   "⚠️",
	SeverityError:     "❌",
	SeverityCritical:  "🚨",
	SeverityEmergency: "🆘",
}

// Proposal is an approved trade waiting for the operator
type Proposal struct {
	CycleID string
	Signal  models.Signal
	Details models.TradeDetails
}

// Heartbeat is the periodic liveness report
type Heartbeat struct {
	Time           time.Time
	Price          float64
	CircuitState   models.CircuitState
	DailyCalls     int
	MaxDailyCalls  int
	OpenPositions  int
	RemainingRisk  float64
	TotalPnL       float64
	TradingSession bool
	SessionLeft    time.Duration
}

// Notifier is implemented by every delivery sink.
// Delivery failures are logged by the sink and never returned.
type Notifier interface {
	SendSignal(ctx context.Context, p Proposal)
	SendHeartbeat(ctx context.Context, h Heartbeat)
	SendAlert(ctx context.Context, sev Severity, msg string)
	SendMessage(ctx context.Context, text string)
}

// CommandKind identifies an operator command
type CommandKind string

const (
	CmdExecuted CommandKind = "executed"
	CmdRejected CommandKind = "rejected"
	CmdPending  CommandKind = "pending"
	CmdExec     CommandKind = "exec"
	CmdStatus   CommandKind = "status"
	CmdTrades   CommandKind = "trades"
	CmdBalance  CommandKind = "balance"
	CmdHelp     CommandKind = "help"
)

// Command is an operator instruction received from a chat
type Command struct {
	Kind     CommandKind
	SignalID int64
	Price    float64
	Lots     float64
}

// HelpText lists the commands the listener understands
const HelpText = "*Commands*\n" +
	"/status - risk and governor status\n" +
	"/trades - open trades\n" +
	"/balance - closed and floating P&L\n" +
	"`EXEC <id> <price> <lots>` - report a manual execution\n" +
	"/help - this message"

// ParseCommand parses a text message into a command
func ParseCommand(text string) (Command, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	switch head := strings.ToLower(fields[0]); head {
	case "/status":
		return Command{Kind: CmdStatus}, nil
	case "/trades":
		return Command{Kind: CmdTrades}, nil
	case "/balance":
		return Command{Kind: CmdBalance}, nil
	case "/help", "/start":
		return Command{Kind: CmdHelp}, nil
	case "exec", "/exec":
		if len(fields) != 4 {
			return Command{}, fmt.Errorf("usage: EXEC <id> <price> <lots>")
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || id <= 0 {
			return Command{}, fmt.Errorf("invalid signal id %q", fields[1])
		}
		price, err := strconv.ParseFloat(fields[2], 64)
		if err != nil || price <= 0 {
			return Command{}, fmt.Errorf("invalid price %q", fields[2])
		}
		lots, err := strconv.ParseFloat(fields[3], 64)
		if err != nil || lots <= 0 {
			return Command{}, fmt.Errorf("invalid lots %q", fields[3])
		}
		return Command{Kind: CmdExec, SignalID: id, Price: price, Lots: lots}, nil
	default:
		return Command{}, fmt.Errorf("unknown command %q", fields[0])
	}
}

// ParseCallback parses inline button data such as "executed_12"
func ParseCallback(data string) (Command, error) {
	kind, rawID, ok := strings.Cut(data, "_")
	if !ok {
		return Command{}, fmt.Errorf("malformed callback %q", data)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return Command{}, fmt.Errorf("malformed callback id %q", data)
	}

	switch k := CommandKind(kind); k {
	case CmdExecuted, CmdRejected, CmdPending:
		return Command{Kind: k, SignalID: id}, nil
	default:
		return Command{}, fmt.Errorf("unknown callback %q", data)
	}
}

// FormatSignal renders a proposal as Markdown
func FormatSignal(p Proposal) string {
	d := p.Details
	icon := "🟢"
	if d.Direction == models.Short {
		icon = "🔴"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s SIGNAL #%d*\n\n", icon, d.Direction, d.SignalID)
	fmt.Fprintf(&b, "*Entry:* `%.5f` (limit)\n", d.Entry)
	fmt.Fprintf(&b, "*Stop Loss:* `%.5f`\n", d.StopLoss)
	fmt.Fprintf(&b, "*Take Profit:* `%.5f`\n", d.TakeProfit)
	fmt.Fprintf(&b, "*Lots:* `%.2f`\n", d.Lots)
	fmt.Fprintf(&b, "*Risk:* $%.2f (R:R 1:%.1f)\n", d.RiskAmount, d.RiskReward)
	if p.Signal.HasClassifier {
		fmt.Fprintf(&b, "*Confidence:* %.1f%%\n", d.Confidence*100)
	}
	fmt.Fprintf(&b, "*Remaining risk:* $%.2f, $%.2f after this trade (%.1f%% used)\n",
		d.RemainingRisk, d.RemainingAfter, d.PctUsed)
	if p.Signal.Reason != "" {
		fmt.Fprintf(&b, "\n_%s_\n", EscapeMarkdown(p.Signal.Reason))
	}
	fmt.Fprintf(&b, "\nReply `EXEC %d <price> <lots>` after manual execution.", d.SignalID)
	return b.String()
}

// FormatHeartbeat renders a heartbeat as Markdown
func FormatHeartbeat(h Heartbeat) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💓 *Heartbeat* %s UTC\n\n", h.Time.UTC().Format("2006-01-02 15:04"))
	if h.Price > 0 {
		fmt.Fprintf(&b, "*Price:* `%.5f`\n", h.Price)
	}
	fmt.Fprintf(&b, "*API:* %d/%d calls, circuit %s\n", h.DailyCalls, h.MaxDailyCalls, EscapeMarkdown(string(h.CircuitState)))
	fmt.Fprintf(&b, "*Open positions:* %d\n", h.OpenPositions)
	fmt.Fprintf(&b, "*Remaining risk:* $%.2f\n", h.RemainingRisk)
	fmt.Fprintf(&b, "*P&L:* $%.2f\n", h.TotalPnL)
	if h.TradingSession {
		fmt.Fprintf(&b, "*Session ends in:* %s", clock.FormatRemaining(h.SessionLeft))
	} else {
		b.WriteString("*Session:* closed")
	}
	return b.String()
}

// FormatAlert renders an alert as Markdown
func FormatAlert(sev Severity, msg string) string {
	icon, ok := severityIcons[sev]
	if !ok {
		icon = severityIcons[SeverityInfo]
	}
	return fmt.Sprintf("%s *%s*\n%s", icon, sev, EscapeMarkdown(msg))
}

// EscapeMarkdown makes free text safe to embed in a Markdown message
func EscapeMarkdown(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}
