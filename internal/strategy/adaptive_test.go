package strategy

import (
	"context"
	"strings"
	"testing"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

func adaptiveForTest() *AdaptiveStrategy {
	p := DefaultParams()
	return NewAdaptiveStrategy(p, standardSet(p))
}

// recordPnL writes one final close into yesterday's perf row.
func recordPnL(t *testing.T, env *Env, strategy string, pnl float64) {
	t.Helper()
	date := domain.DateOf(testNow.AddDate(0, 0, -1).UnixMilli())
	if err := env.Perf.RecordClose(context.Background(), strategy, date, pnl, true); err != nil {
		t.Fatalf("RecordClose failed: %v", err)
	}
}

func TestAdaptive_DelegatesToBestChild(t *testing.T) {
	s := adaptiveForTest()
	env := testEnv()
	ctx := context.Background()

	recordPnL(t, env, NameCopyTrade, 10)
	recordPnL(t, env, NameSmartMoney, 50)
	recordPnL(t, env, NameMemecoin, -5)

	// A whale buy the best child (smartMoney) will copy.
	tx := buyTx("w1", "tok", domain.ChainEthereum, 2500, 2.0)
	d, err := s.Evaluate(ctx, tx, activeWallet("w1", domain.ChainEthereum, ptr(0.55)), env)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !d.Copy {
		t.Fatalf("got %+v, want delegated copy", d)
	}
	if d.Note != "via_smartMoney" {
		t.Errorf("Note = %q, want via_smartMoney", d.Note)
	}
	if !strings.HasPrefix(d.Reason, "delegated to smartMoney") {
		t.Errorf("Reason = %q, want delegated-to prefix", d.Reason)
	}
}

func TestAdaptive_SkipsPausedChildren(t *testing.T) {
	s := adaptiveForTest()
	env := testEnv()
	ctx := context.Background()

	recordPnL(t, env, NameCopyTrade, 10)
	recordPnL(t, env, NameSmartMoney, 50)
	env.IsPaused = func(name string) bool { return name == NameSmartMoney }

	tx := buyTx("w1", "tok", domain.ChainEthereum, 2500, 2.0)
	d, err := s.Evaluate(ctx, tx, activeWallet("w1", domain.ChainEthereum, ptr(0.55)), env)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !d.Copy || d.Note != "via_copyTrade" {
		t.Errorf("got %+v, want delegation to copyTrade with smartMoney paused", d)
	}
}

func TestAdaptive_SilentWithoutHistory(t *testing.T) {
	s := adaptiveForTest()
	env := testEnv()

	tx := buyTx("w1", "tok", domain.ChainEthereum, 2500, 2.0)
	d, err := s.Evaluate(context.Background(), tx, activeWallet("w1", domain.ChainEthereum, ptr(0.55)), env)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if d.Copy {
		t.Errorf("no child history: got %+v, want silence", d)
	}
}

func TestAdaptive_TieBreaksByName(t *testing.T) {
	s := adaptiveForTest()
	env := testEnv()
	ctx := context.Background()

	recordPnL(t, env, NameCopyTrade, 10)
	recordPnL(t, env, NameMemecoin, 10)

	// copyTrade and memecoin tie; copyTrade sorts first and must win.
	tx := buyTx("w1", "tok", domain.ChainEthereum, 2500, 2.0)
	d, err := s.Evaluate(ctx, tx, activeWallet("w1", domain.ChainEthereum, ptr(0.55)), env)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !d.Copy || d.Note != "via_copyTrade" {
		t.Errorf("got %+v, want deterministic delegation to copyTrade", d)
	}
}

func TestAdaptive_ExitDelegatesViaNote(t *testing.T) {
	s := adaptiveForTest()
	env := testEnv()
	ctx := context.Background()

	tr := openTrade(NameAdaptive, 1.0, 100)
	tr.Notes = "via_smartMoney"

	// smartMoney stops out at -10%; copyTrade would still hold there.
	d, err := s.Exit(ctx, tr, 0.89, env)
	if err != nil {
		t.Fatalf("Exit failed: %v", err)
	}
	if !d.Exit || d.Reason != domain.ExitReasonStopLoss {
		t.Errorf("got %+v, want smartMoney stop_loss", d)
	}

	// Without a via_ note the position holds; the engine's time stop
	// still bounds it.
	tr.Notes = ""
	if d, _ := s.Exit(ctx, tr, 0.89, env); d.Exit {
		t.Errorf("no via note: got %+v, want hold", d)
	}

	// An unknown child name holds too.
	tr.Notes = "via_retired"
	if d, _ := s.Exit(ctx, tr, 0.89, env); d.Exit {
		t.Errorf("unknown child: got %+v, want hold", d)
	}
}
