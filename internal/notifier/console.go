package notifier

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"equity-screener/internal/strategy/engine"
	"equity-screener/pkg/types"
)

// ConsoleNotifier 控制台通知器
type ConsoleNotifier struct {
	out io.Writer
}

func NewConsoleNotifier() *ConsoleNotifier {
	return &ConsoleNotifier{out: os.Stdout}
}

// NewWriterNotifier 输出到指定Writer
func NewWriterNotifier(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: out}
}

func (cn *ConsoleNotifier) SendReport(report *engine.RunReport, topN int) error {
	if report == nil {
		return nil
	}

	ranked := Top(Rank(report.Results, report.Strategy), topN)
	cn.printHeader(report)
	if len(ranked) == 0 {
		fmt.Fprintln(cn.out, "未发现符合条件的标的")
		return nil
	}
	return cn.printTable(report.Strategy, ranked)
}

func (cn *ConsoleNotifier) printHeader(report *engine.RunReport) {
	border := "╔" + strings.Repeat("═", 80) + "╗"
	bottomBorder := "╚" + strings.Repeat("═", 80) + "╝"

	fmt.Fprintln(cn.out)
	fmt.Fprintln(cn.out, border)

	title := fmt.Sprintf("🎯 %s筛选完成 - %s", strategyTitle(report.Strategy), report.Exchange)
	fmt.Fprintf(cn.out, "║ %s%s ║\n", title, strings.Repeat(" ", safePadding(title, 80)))

	s := report.Stats
	statsStr := fmt.Sprintf("📊 共%d个 信号%d 无信号%d 数据不足%d 失败%d 跳过%d",
		s.Total, s.Signals, s.NoSignal, s.Insufficient, s.Failed, s.Skipped)
	fmt.Fprintf(cn.out, "║ %s%s ║\n", statsStr, strings.Repeat(" ", safePadding(statsStr, 80)))

	timeStr := fmt.Sprintf("🕐 %s 耗时%s", report.StartedAt.Format("2006-01-02 15:04:05"), formatDuration(report.Duration))
	fmt.Fprintf(cn.out, "║ %s%s ║\n", timeStr, strings.Repeat(" ", safePadding(timeStr, 80)))

	fmt.Fprintln(cn.out, bottomBorder)
}

func (cn *ConsoleNotifier) printTable(strategy types.Strategy, results []*types.SignalResult) error {
	tw := tabwriter.NewWriter(cn.out, 0, 0, 2, ' ', 0)

	switch {
	case strategy == types.StrategyBullishZone:
		fmt.Fprintln(tw, "#\tSymbol\tClose\tSupport\tDistance%\tRSI\tTouches\tTrend")
		for i, r := range results {
			fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%.2f\t%.1f\t%d\t%s\n",
				i+1, r.Symbol, r.ClosePrice, r.Support, r.DistancePct, r.RSI, r.Touches, r.Trend)
		}
	case strategy == types.StrategyBearishZone:
		fmt.Fprintln(tw, "#\tSymbol\tClose\tResistance\tDistance%\tRSI\tTouches\tTrend")
		for i, r := range results {
			fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%.2f\t%.1f\t%d\t%s\n",
				i+1, r.Symbol, r.ClosePrice, r.Resistance, r.DistancePct, r.RSI, r.Touches, r.Trend)
		}
	case strategy == types.StrategyPriceMovement:
		fmt.Fprintln(tw, "#\tSymbol\tStart\tClose\tChange%\tVolume\tVolatility%")
		for i, r := range results {
			fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%+.2f\t%s\t%.2f\n",
				i+1, r.Symbol, r.StartPrice, r.ClosePrice, r.PercentageChange, r.VolumeTrend, r.Volatility)
		}
	default:
		fmt.Fprintln(tw, "#\tSymbol\tClose\tScore\tPatterns\tStructure\tNodes")
		for i, r := range results {
			patterns := "-"
			if len(r.Patterns) > 0 {
				patterns = strings.Join(r.Patterns, ",")
			}
			structure := string(r.MarketStructure)
			if structure == "" {
				structure = "-"
			}
			fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.1f\t%s\t%s\t%d\n",
				i+1, r.Symbol, r.ClosePrice, r.Strength, patterns, structure, len(r.VolumeNodes))
		}
	}
	return tw.Flush()
}
