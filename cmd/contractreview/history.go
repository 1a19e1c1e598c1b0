package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dgallion1/contractreview/internal/history"
	"github.com/dgallion1/contractreview/internal/logger"
)

var historyFlags struct {
	search string
	limit  int
	stats  bool
	clear  bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past reviews",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		hist := history.Open(cfg.HistoryFile(), cfg.HistoryMaxRecords, logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr))

		if historyFlags.clear {
			if err := hist.Clear(); err != nil {
				return fmt.Errorf("clear history: %w", err)
			}
			color.Green("已清空审查记录")
			return nil
		}
		if historyFlags.stats {
			printHistoryStats(hist.Stats())
			return nil
		}

		var recs []history.Record
		if historyFlags.search != "" {
			recs = hist.Search(historyFlags.search)
			if historyFlags.limit > 0 && len(recs) > historyFlags.limit {
				recs = recs[:historyFlags.limit]
			}
		} else {
			recs = hist.List(historyFlags.limit)
		}
		if len(recs) == 0 {
			color.Yellow("暂无审查记录")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\t时间\t文件\t类型\t状态\t模型")
		for _, r := range recs {
			status := color.GreenString("%s", r.Status)
			if r.Status == history.StatusError {
				status = color.RedString("%s", r.Status)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", shortID(r.ID), r.Timestamp, r.FileName, r.ContractType, status, r.ModelName)
		}
		return tw.Flush()
	},
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.search, "search", "", "Keyword matched against file name, contract type and concerns")
	f.IntVar(&historyFlags.limit, "limit", 20, "Maximum number of records")
	f.BoolVar(&historyFlags.stats, "stats", false, "Show totals instead of records")
	f.BoolVar(&historyFlags.clear, "clear", false, "Delete all records")
	historyCmd.MarkFlagsMutuallyExclusive("clear", "stats", "search")
}

func printHistoryStats(s history.Stats) {
	color.Cyan("审查统计")
	fmt.Printf("  总计: %d\n", s.Total)
	fmt.Printf("  成功: %s\n", color.GreenString("%d", s.Success))
	fmt.Printf("  失败: %s\n", color.RedString("%d", s.Error))
	for model, n := range s.ModelStats {
		fmt.Printf("  %s: %d\n", model, n)
	}
	if s.LatestRecord != "" {
		fmt.Printf("  最近一次: %s\n", s.LatestRecord)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
