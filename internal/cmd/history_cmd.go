package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/suggestd/internal/config"
	"github.com/runger/suggestd/internal/log"
	"github.com/runger/suggestd/internal/shortcuts"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [prefix]",
	Short: "Show learned shortcuts",
	Long: `Show the shortcuts learned from clicked results, ranked the way
the engine would rank them for the given query prefix. With no prefix,
the most clicked shortcuts overall are shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all click history and shortcuts",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum shortcuts to show")
	historyCmd.AddCommand(historyClearCmd)
}

func openRepo() (*shortcuts.Repository, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	paths := config.DefaultPaths()
	return shortcuts.Open(cfg.ResolveDatabasePath(paths), log.Nop())
}

func runHistory(cmd *cobra.Command, args []string) error {
	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}

	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	has, err := repo.HasHistory(ctx)
	if err != nil {
		return err
	}
	if !has {
		fmt.Printf("%sNo shortcuts yet. Click some results first.%s\n", colorDim, colorReset)
		return nil
	}

	rows, err := repo.ShortcutsForQuery(ctx, prefix, historyLimit, time.Now())
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Printf("%sNo shortcuts match %q%s\n", colorDim, prefix, colorReset)
		return nil
	}

	width := getTermWidth()
	for _, row := range rows {
		fmt.Println(formatPlainRow(row.Title, row.Description, row.EffectiveIntentData(), width))
	}
	fmt.Printf("%s%d shortcut(s)%s\n", colorDim, len(rows), colorReset)
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := repo.ClearHistory(ctx); err != nil {
		return err
	}

	fmt.Printf("%sHistory cleared%s\n", colorGreen, colorReset)
	return nil
}
