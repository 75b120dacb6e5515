package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"dejavu/internal/compare"
	"dejavu/internal/config"
	"dejavu/internal/histstore"
	"dejavu/internal/history"
	"dejavu/internal/ingest"
	"dejavu/internal/live"
	"dejavu/internal/util"
)

var (
	cfgFile string

	symbol      string
	windowStart string
	windowEnd   string
	threshold   float64
	limit       int
	queryDate   string
	offline     bool
	format      string

	fromDate string
	toDate   string
	csvPath  string
)

func main() {
	// .env is optional; real env vars win either way.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "dejavu",
		Short: "Find past trading days that resemble today's intraday price action",
		Long: `dejavu compares a trading day's price shape inside a time-of-day window
against every day in the stored historical record and ranks the closest matches
by cosine similarity.

Examples:
  dejavu compare --symbol AAPL --start 09:30 --end 10:30
  dejavu compare --symbol XYZ --date 2024-03-08 --offline --format json
  dejavu backfill --symbol AAPL --from 2022-01-01
  dejavu convert --csv exports/HEROMOTOCO_with_indicators_.csv --symbol HEROMOTOCO
  dejavu history --symbol AAPL`,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/dejavu.yaml", "config file path")

	compareCmd := &cobra.Command{
		Use:   "compare",
		Short: "Rank historical days by similarity to the query day's window",
		RunE:  runCompare,
	}
	compareCmd.Flags().StringVar(&symbol, "symbol", "", "ticker symbol (required)")
	compareCmd.Flags().StringVar(&windowStart, "start", "", "window start HH:MM (default from config)")
	compareCmd.Flags().StringVar(&windowEnd, "end", "", "window end HH:MM (default from config)")
	compareCmd.Flags().Float64Var(&threshold, "threshold", -1, "minimum similarity in [0,1] (default from config)")
	compareCmd.Flags().IntVar(&limit, "limit", 0, "maximum number of results (default from config)")
	compareCmd.Flags().StringVar(&queryDate, "date", "", "query date YYYY-MM-DD (default today)")
	compareCmd.Flags().BoolVar(&offline, "offline", false, "serve the query day from the stored history instead of the live API")
	compareCmd.Flags().StringVar(&format, "format", "table", "output format: table, json")
	_ = compareCmd.MarkFlagRequired("symbol")

	backfillCmd := &cobra.Command{
		Use:   "backfill",
		Short: "Backfill 5-minute history from Alpaca into the dataset directory",
		RunE:  runBackfill,
	}
	backfillCmd.Flags().StringVar(&symbol, "symbol", "", "ticker symbol (required)")
	backfillCmd.Flags().StringVar(&fromDate, "from", "", "start date YYYY-MM-DD (default from config)")
	backfillCmd.Flags().StringVar(&toDate, "to", "", "end date YYYY-MM-DD (default today)")
	_ = backfillCmd.MarkFlagRequired("symbol")

	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert an intraday CSV export into the Parquet dataset layout",
		RunE:  runConvert,
	}
	convertCmd.Flags().StringVar(&csvPath, "csv", "", "path to the CSV file (required)")
	convertCmd.Flags().StringVar(&symbol, "symbol", "", "ticker symbol (default: derived from file name)")
	_ = convertCmd.MarkFlagRequired("csv")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent comparison runs",
		RunE:  runHistory,
	}
	historyCmd.Flags().StringVar(&symbol, "symbol", "", "filter by ticker symbol")
	historyCmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")

	symbolsCmd := &cobra.Command{
		Use:   "symbols",
		Short: "List symbols available in the dataset directory",
		RunE:  runSymbols,
	}

	rootCmd.AddCommand(compareCmd, backfillCmd, convertCmd, historyCmd, symbolsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration, installs the logger, and returns a
// signal-cancelled context.
func setup() (*config.Config, context.Context, context.CancelFunc, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return cfg, ctx, cancel, nil
}

func newRecorder(cfg *config.Config) (history.Recorder, func(), error) {
	if cfg.Storage.SQLitePath == "" {
		return history.NoopRecorder{}, func() {}, nil
	}
	r, err := history.NewSQLiteRecorder(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening history database: %w", err)
	}
	return r, func() { _ = r.Close() }, nil
}

// ---------------------------------------------------------------------------
// compare
// ---------------------------------------------------------------------------

func runCompare(cmd *cobra.Command, _ []string) error {
	cfg, ctx, cancel, err := setup()
	if err != nil {
		return err
	}
	defer cancel()

	req := compare.Request{
		Symbol:      symbol,
		WindowStart: cfg.Compare.WindowStart,
		WindowEnd:   cfg.Compare.WindowEnd,
		Threshold:   cfg.Compare.Threshold,
		Limit:       cfg.Compare.Limit,
		QueryDate:   time.Now(),
	}
	if windowStart != "" {
		req.WindowStart = windowStart
	}
	if windowEnd != "" {
		req.WindowEnd = windowEnd
	}
	if cmd.Flags().Changed("threshold") {
		req.Threshold = threshold
	}
	if cmd.Flags().Changed("limit") {
		req.Limit = limit
	}
	if queryDate != "" {
		d, err := time.Parse("2006-01-02", queryDate)
		if err != nil {
			return fmt.Errorf("parsing --date: %w", err)
		}
		req.QueryDate = d
	}

	store := histstore.NewStore(cfg.Storage.DataDir, nil)

	var src live.Source
	if offline {
		src = live.NewReplaySource(store)
	} else {
		src = live.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Alpaca.Feed)
	}

	recorder, closeRecorder, err := newRecorder(cfg)
	if err != nil {
		return err
	}
	defer closeRecorder()

	engine := compare.NewEngine(store, src, nil)
	results, err := engine.FindSimilarPatterns(ctx, req)
	if err != nil {
		return err
	}

	entry := &history.Entry{
		Symbol:      req.Symbol,
		WindowStart: req.WindowStart,
		WindowEnd:   req.WindowEnd,
		Threshold:   req.Threshold,
		Limit:       req.Limit,
		QueryDate:   req.QueryDate.Format("2006-01-02"),
		ResultCount: len(results),
	}
	if len(results) > 0 {
		entry.TopScore = results[0].SimilarityScore
	}
	if err := recorder.Record(ctx, entry); err != nil {
		// The comparison already succeeded; a failed audit write is not
		// worth failing the command over.
		fmt.Fprintf(os.Stderr, "warning: recording history: %v\n", err)
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Printf("No historical day scored at least %.2f in window %s-%s.\n", req.Threshold, req.WindowStart, req.WindowEnd)
		return nil
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Date", "Similarity", "Window Bars", "Session Bars"}),
	)
	for _, r := range results {
		table.Append([]string{
			r.Date,
			fmt.Sprintf("%.4f", r.SimilarityScore),
			strconv.Itoa(len(r.WindowBars)),
			strconv.Itoa(len(r.FullDayBars)),
		})
	}
	table.Render()
	return nil
}

// ---------------------------------------------------------------------------
// backfill
// ---------------------------------------------------------------------------

func runBackfill(_ *cobra.Command, _ []string) error {
	cfg, ctx, cancel, err := setup()
	if err != nil {
		return err
	}
	defer cancel()

	from := cfg.Ingest.StartDate
	if fromDate != "" {
		from = fromDate
	}
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return fmt.Errorf("parsing --from: %w", err)
	}

	end := time.Now().UTC()
	if toDate != "" {
		end, err = time.Parse("2006-01-02", toDate)
		if err != nil {
			return fmt.Errorf("parsing --to: %w", err)
		}
	}
	if !end.After(start) {
		return fmt.Errorf("--to %s must be after --from %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	months := 0
	for cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); !cur.After(end); cur = cur.AddDate(0, 1, 0) {
		months++
	}

	bar := progressbar.NewOptions(months,
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Backfilling "+symbol),
	)

	b := ingest.NewBackfiller(
		cfg.Alpaca.APIKey,
		cfg.Alpaca.APISecret,
		cfg.Alpaca.DataURL,
		cfg.Alpaca.Feed,
		cfg.Storage.DataDir,
		cfg.Ingest.RateLimitPerMin,
	)
	err = b.Run(ctx, symbol, start, end, func(_ time.Time, _ int) {
		_ = bar.Add(1)
	})
	fmt.Println()
	return err
}

// ---------------------------------------------------------------------------
// convert
// ---------------------------------------------------------------------------

func runConvert(_ *cobra.Command, _ []string) error {
	cfg, _, cancel, err := setup()
	if err != nil {
		return err
	}
	defer cancel()

	sym, n, err := ingest.ConvertCSV(csvPath, cfg.Storage.DataDir, symbol)
	if err != nil {
		return err
	}
	fmt.Printf("Converted %d bars for %s into %s\n", n, sym, cfg.Storage.DataDir)
	return nil
}

// ---------------------------------------------------------------------------
// history
// ---------------------------------------------------------------------------

func runHistory(_ *cobra.Command, _ []string) error {
	cfg, ctx, cancel, err := setup()
	if err != nil {
		return err
	}
	defer cancel()

	recorder, closeRecorder, err := newRecorder(cfg)
	if err != nil {
		return err
	}
	defer closeRecorder()

	entries, err := recorder.List(ctx, symbol, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No comparison runs recorded.")
		return nil
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"When", "Symbol", "Window", "Threshold", "Results", "Top Score"}),
	)
	for _, e := range entries {
		table.Append([]string{
			e.CreatedAt.Format("2006-01-02 15:04"),
			e.Symbol,
			e.WindowStart + "-" + e.WindowEnd,
			fmt.Sprintf("%.2f", e.Threshold),
			strconv.Itoa(e.ResultCount),
			fmt.Sprintf("%.4f", e.TopScore),
		})
	}
	table.Render()
	return nil
}

// ---------------------------------------------------------------------------
// symbols
// ---------------------------------------------------------------------------

func runSymbols(_ *cobra.Command, _ []string) error {
	cfg, _, cancel, err := setup()
	if err != nil {
		return err
	}
	defer cancel()

	symbols, err := histstore.ListSymbols(cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		fmt.Printf("No datasets found in %s.\n", cfg.Storage.DataDir)
		return nil
	}
	for _, s := range symbols {
		fmt.Println(s)
	}
	return nil
}
