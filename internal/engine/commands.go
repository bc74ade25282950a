package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Alias1177/fxguard/internal/notify"
	"github.com/Alias1177/fxguard/models"
)

// drainCommands applies every queued operator command without blocking
func (e *Engine) drainCommands(ctx context.Context) int {
	if e.deps.Commands == nil {
		return 0
	}

	n := 0
	for {
		select {
		case cmd, ok := <-e.deps.Commands:
			if !ok {
				return n
			}
			n++
			e.handleCommand(ctx, cmd)
		default:
			return n
		}
	}
}

const lotTolerance = 1e-9

// idle sleeps for d and answers operator commands while it waits
func (e *Engine) idle(ctx context.Context, d time.Duration) error {
	if e.deps.Commands == nil {
		return e.deps.Clock.Sleep(ctx, d)
	}

	done := make(chan error, 1)
	go func() { done <- e.deps.Clock.Sleep(ctx, d) }()

	commands := e.deps.Commands
	for {
		select {
		case err := <-done:
			if err != nil {
				return err
			}
			e.drainCommands(ctx)
			return nil
		case cmd, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			e.handleCommand(ctx, cmd)
		}
	}
}

func (e *Engine) handleCommand(ctx context.Context, cmd notify.Command) {
	e.logger.Info().Str("kind", string(cmd.Kind)).Int64("signal_id", cmd.SignalID).Msg("Operator command")

	switch cmd.Kind {
	case notify.CmdExec:
		e.registerExecution(ctx, cmd.SignalID, cmd.Price, cmd.Lots)
	case notify.CmdExecuted:
		p, ok := e.proposal(cmd.SignalID)
		if !ok {
			e.reply(ctx, fmt.Sprintf("Unknown signal #%d", cmd.SignalID))
			return
		}
		e.registerExecution(ctx, cmd.SignalID, p.Details.Entry, p.Details.Lots)
	case notify.CmdRejected:
		e.mu.Lock()
		_, ok := e.pending[cmd.SignalID]
		delete(e.pending, cmd.SignalID)
		e.mu.Unlock()
		if !ok {
			e.reply(ctx, fmt.Sprintf("Unknown signal #%d", cmd.SignalID))
			return
		}
		e.reply(ctx, fmt.Sprintf("❌ Signal #%d rejected", cmd.SignalID))
	case notify.CmdPending:
		if _, ok := e.proposal(cmd.SignalID); !ok {
			e.reply(ctx, fmt.Sprintf("Unknown signal #%d", cmd.SignalID))
			return
		}
		e.reply(ctx, fmt.Sprintf("⏳ Signal #%d kept pending", cmd.SignalID))
	case notify.CmdStatus:
		e.reply(ctx, e.statusText())
	case notify.CmdTrades:
		e.reply(ctx, e.tradesText())
	case notify.CmdBalance:
		e.reply(ctx, e.balanceText())
	case notify.CmdHelp:
		e.reply(ctx, notify.HelpText)
	default:
		e.logger.Warn().Str("kind", string(cmd.Kind)).Msg("Unhandled command")
	}
}

// registerExecution opens a ledger trade from a pending proposal at the reported fill
func (e *Engine) registerExecution(ctx context.Context, id int64, price, lots float64) {
	p, ok := e.proposal(id)
	if !ok {
		e.reply(ctx, fmt.Sprintf("Unknown signal #%d", id))
		return
	}

	t := models.Trade{
		SignalID:   id,
		Direction:  p.Details.Direction,
		Entry:      price,
		StopLoss:   p.Details.StopLoss,
		TakeProfit: p.Details.TakeProfit,
		Lots:       lots,
	}
	if err := e.deps.Ledger.Add(t); err != nil {
		e.logger.Error().Err(err).Int64("signal_id", id).Msg("Failed to register execution")
		e.reply(ctx, "Failed to register trade: "+notify.EscapeMarkdown(err.Error()))
		return
	}

	e.mu.Lock()
	delete(e.pending, id)
	e.mu.Unlock()

	if registered, ok := e.deps.Ledger.Trade(id); ok {
		e.journalTrade(ctx, registered)
	}
	e.persist()
	e.reply(ctx, fmt.Sprintf("✅ Trade #%d registered: %s %.2f lots @ `%.5f`", id, p.Details.Direction, lots, price))
	e.warnOffProposal(ctx, p, lots)
}

// warnOffProposal flags executions that exceed what the gate approved
func (e *Engine) warnOffProposal(ctx context.Context, p notify.Proposal, lots float64) {
	if lots > p.Details.Lots+lotTolerance {
		e.deps.Notifier.SendAlert(ctx, notify.SeverityWarning, fmt.Sprintf(
			"Trade #%d executed with %.2f lots, approved size was %.2f", p.Details.SignalID, lots, p.Details.Lots))
	}
	if rs := e.deps.Gate.RiskStatus(); rs.OpenPositions > rs.MaxOpenPositions {
		e.deps.Notifier.SendAlert(ctx, notify.SeverityWarning, fmt.Sprintf(
			"Open positions %d exceed the limit of %d", rs.OpenPositions, rs.MaxOpenPositions))
	}
}

func (e *Engine) proposal(id int64) (notify.Proposal, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pending[id]
	return p, ok
}

func (e *Engine) reply(ctx context.Context, text string) {
	e.deps.Notifier.SendMessage(ctx, text)
}

func (e *Engine) statusText() string {
	gov := e.deps.Governor.Status()
	rs := e.deps.Gate.RiskStatus()
	return fmt.Sprintf("📋 *Status*\n\n"+
		"*Circuit:* %s\n"+
		"*API calls:* %d/%d\n"+
		"*Risk:* %s, $%.2f remaining (%.1f%% used)\n"+
		"*Positions:* %d/%d\n"+
		"*Trades today:* %d/%d",
		notify.EscapeMarkdown(string(gov.State)), gov.DailyCalls, gov.MaxDailyCalls,
		notify.EscapeMarkdown(string(rs.Status)), rs.RemainingRisk, rs.PctUsed,
		rs.OpenPositions, rs.MaxOpenPositions,
		rs.DailyTrades, rs.MaxDailyTrades)
}

func (e *Engine) tradesText() string {
	open := e.deps.Ledger.OpenTrades()
	if len(open) == 0 {
		return "No open trades"
	}
	var b strings.Builder
	b.WriteString("📂 *Open trades*\n")
	for _, t := range open {
		fmt.Fprintf(&b, "\n#%d %s %.2f lots @ `%.5f` SL `%.5f` TP `%.5f` P&L $%.2f",
			t.SignalID, t.Direction, t.Lots, t.Entry, t.StopLoss, t.TakeProfit, t.PnL)
	}
	return b.String()
}

func (e *Engine) balanceText() string {
	pnl := e.deps.Ledger.TotalPnL()
	return fmt.Sprintf("💰 *Balance*\n\n"+
		"*Account:* $%.2f\n"+
		"*Closed P&L:* $%.2f\n"+
		"*Floating P&L:* $%.2f\n"+
		"*Equity:* $%.2f",
		e.opts.AccountSize+pnl.Closed, pnl.Closed, pnl.Floating,
		e.opts.AccountSize+pnl.Total)
}
