package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"equity-screener/internal/notifier"
	"equity-screener/pkg/config"
	"equity-screener/pkg/logger"
	"equity-screener/pkg/types"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "screener",
	Short: "NSE/BSE equity screener",
	Long: `Batch technical screening of NSE/BSE equities.

Strategies:
• bullish_zone / bearish_zone: swing support/resistance with EMA and RSI filters
• price_action_breakout, volume_profile, market_structure, multi_factor
• price_movement: percentage move over a trailing window`,
	SilenceUsage: true,
}

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Run one screening pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, _ := cmd.Flags().GetString("strategy")
		exchangeName, _ := cmd.Flags().GetString("exchange")
		list, _ := cmd.Flags().GetString("list")
		symbols, _ := cmd.Flags().GetStringSlice("symbols")
		asJSON, _ := cmd.Flags().GetBool("json")

		app, cleanup, err := bootstrap(func(*types.Config) notifier.Interface {
			if asJSON {
				return nil
			}
			return notifier.NewConsoleNotifier()
		})
		if err != nil {
			return err
		}
		defer cleanup()
		app.CancelOnSignal()

		exchange, err := types.ParseExchange(exchangeName)
		if err != nil {
			return err
		}
		if len(symbols) == 0 {
			if list == "" {
				return &types.ConfigError{Field: "symbols", Reason: "pass --symbols or --list"}
			}
			if symbols, err = app.ListTokens(exchange, list); err != nil {
				return err
			}
		}

		req := types.AnalysisRequest{
			Strategy: types.Strategy(strategy),
			Exchange: exchange,
			Symbols:  symbols,
		}
		if st, err := types.ParseStrategy(strategy); err == nil && st == types.StrategyPriceMovement {
			params := app.config.Strategy.PriceMovement
			if cmd.Flags().Changed("duration") {
				params.DurationDays, _ = cmd.Flags().GetInt("duration")
			}
			if cmd.Flags().Changed("target") {
				params.TargetPercentage, _ = cmd.Flags().GetFloat64("target")
			}
			if cmd.Flags().Changed("direction") {
				direction, _ := cmd.Flags().GetString("direction")
				params.Direction = types.Direction(strings.ToLower(direction))
			}
			req.PriceMovement = &params
		}

		report, err := app.Screen(req)
		if report != nil && asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(report); encErr != nil {
				return encErr
			}
		}
		return err
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run scheduled screening jobs until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		runNow, _ := cmd.Flags().GetBool("run-now")

		// 定时任务的结果通过配置的通知渠道发送
		app, cleanup, err := bootstrap(func(cfg *types.Config) notifier.Interface {
			return notifier.New(cfg.Notifier)
		})
		if err != nil {
			return err
		}
		defer cleanup()

		if err := app.StartScheduler(runNow); err != nil {
			return err
		}

		zap.L().Info("✅ Equity Screener 已启动")
		app.WaitForShutdown()
		return nil
	},
}

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "Show stock lists of an exchange",
	RunE: func(cmd *cobra.Command, args []string) error {
		exchangeName, _ := cmd.Flags().GetString("exchange")
		exchange, err := types.ParseExchange(exchangeName)
		if err != nil {
			return err
		}

		app, cleanup, err := bootstrap(nil)
		if err != nil {
			return err
		}
		defer cleanup()

		names, err := app.Lists(exchange)
		if err != nil {
			return err
		}
		fmt.Printf("%-30s %s\n", "List", "Symbols")
		fmt.Println(strings.Repeat("-", 40))
		for _, name := range names {
			tokens, err := app.ListTokens(exchange, name)
			if err != nil {
				return err
			}
			fmt.Printf("%-30s %d\n", name, len(tokens))
		}
		fmt.Printf("\nTotal: %d lists\n", len(names))
		return nil
	},
}

var saveListCmd = &cobra.Command{
	Use:   "save-list NAME TOKEN...",
	Short: "Store a stock list in MySQL",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		exchangeName, _ := cmd.Flags().GetString("exchange")
		exchange, err := types.ParseExchange(exchangeName)
		if err != nil {
			return err
		}

		app, cleanup, err := bootstrap(nil)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := app.SaveWatchlist(exchange, args[0], args[1:]); err != nil {
			return err
		}
		zap.L().Info("✅ 股票池已保存", zap.String("list", args[0]), zap.Int("tokens", len(args)-1))
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync-instruments",
	Short: "Download the broker contract master into MySQL",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, _ := cmd.Flags().GetStringSlice("exchange")
		exchanges := make([]types.Exchange, 0, len(names))
		for _, name := range names {
			ex, err := types.ParseExchange(name)
			if err != nil {
				return err
			}
			exchanges = append(exchanges, ex)
		}

		app, cleanup, err := bootstrap(nil)
		if err != nil {
			return err
		}
		defer cleanup()
		app.CancelOnSignal()

		return app.SyncInstruments(exchanges)
	},
}

// bootstrap 加载配置、初始化日志并创建应用，notify 为空时不输出筛选结果
func bootstrap(notify func(*types.Config) notifier.Interface) (*App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	restore, err := logger.Init(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	var n notifier.Interface
	if notify != nil {
		n = notify(cfg)
	}
	app := NewApp(cfg)
	if err := app.Init(n); err != nil {
		restore()
		return nil, nil, err
	}
	return app, func() {
		app.Stop()
		restore()
	}, nil
}

func loadConfig() (*types.Config, error) {
	if configFile != "" {
		return config.LoadFile(configFile)
	}
	return config.Load()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")

	screenCmd.Flags().StringP("strategy", "s", string(types.StrategyBullishZone), "screening strategy")
	screenCmd.Flags().StringP("exchange", "e", string(types.ExchangeNSE), "exchange (NSE or BSE)")
	screenCmd.Flags().StringP("list", "l", "", "stock list name")
	screenCmd.Flags().StringSlice("symbols", nil, "comma separated instrument tokens")
	screenCmd.Flags().Int("duration", 0, "price_movement: duration in trading days")
	screenCmd.Flags().Float64("target", 0, "price_movement: target percentage")
	screenCmd.Flags().String("direction", "", "price_movement: up or down")
	screenCmd.Flags().Bool("json", false, "print the run report as JSON")

	watchCmd.Flags().Bool("run-now", false, "run every job once at startup")

	listsCmd.Flags().StringP("exchange", "e", string(types.ExchangeNSE), "exchange (NSE or BSE)")
	saveListCmd.Flags().StringP("exchange", "e", string(types.ExchangeNSE), "exchange (NSE or BSE)")
	syncCmd.Flags().StringSlice("exchange", []string{string(types.ExchangeNSE), string(types.ExchangeBSE)}, "exchanges to sync")

	rootCmd.AddCommand(screenCmd, watchCmd, listsCmd, saveListCmd, syncCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
