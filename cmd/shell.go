package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pable/go-court-metrics/internal/model"
	"github.com/pable/go-court-metrics/internal/render"
	"github.com/pable/go-court-metrics/internal/report"
	"github.com/pable/go-court-metrics/internal/storage"
)

var (
	cPrompt   = color.New(color.FgCyan, color.Bold)
	cMuted    = color.New(color.Faint)
	cError    = color.New(color.FgRed, color.Bold)
	cWarn     = color.New(color.FgYellow)
	cHeader   = color.New(color.FgCyan, color.Bold)
	cCmd      = color.New(color.FgYellow, color.Bold)
	cGreeting = color.New(color.Bold)
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive REPL session",
	Long:  "Open a persistent session against the database. Type 'help' for available commands.",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func runShell(_ *cobra.Command, _ []string) error {
	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	cGreeting.Println("courtmetrics shell")
	cMuted.Println("type 'help' or 'exit'")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		cPrompt.Print("courtmetrics")
		cMuted.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		tokens := strings.Fields(line)
		cmd, args := tokens[0], tokens[1:]

		switch cmd {
		case "exit", "quit":
			return nil
		case "help":
			shellHelp()
		case "list":
			shellList(db)
		case "summary":
			shellSummary(db)
		case "show":
			if len(args) == 0 {
				cError.Fprintln(os.Stderr, "usage: show <hash-prefix>")
				continue
			}
			if err := showByHash(os.Stdout, db, args[0]); err != nil {
				cError.Fprintf(os.Stderr, "error: %v\n", err)
			}
		case "positions":
			if len(args) == 0 {
				cError.Fprintln(os.Stderr, "usage: positions <hash-prefix> [--player 1|2]")
				continue
			}
			var id model.Identity
			for i := 1; i+1 < len(args); i++ {
				if args[i] == "--player" {
					n, _ := strconv.Atoi(args[i+1])
					id = model.Identity(n)
				}
			}
			shellPositions(db, args[0], id)
		case "heatmap":
			if len(args) < 2 {
				cError.Fprintln(os.Stderr, "usage: heatmap <hash-prefix> <out.png>")
				continue
			}
			shellHeatmap(db, args[0], args[1])
		default:
			cWarn.Fprintf(os.Stderr, "unknown command %q, type 'help'\n", cmd)
		}
	}
	return nil
}

func shellHelp() {
	fmt.Println()
	type entry struct{ cmd, desc string }
	rows := []entry{
		{"list", "list all analysed matches"},
		{"summary", "database overview"},
		{"show <hash-prefix>", "show a match's court, dwell times and skips"},
		{"positions <hash-prefix> [--player N]", "print projected positions as CSV"},
		{"heatmap <hash-prefix> <out.png>", "render the match heatmap"},
		{"help", "show this message"},
		{"exit / quit", "close the session"},
	}
	for _, r := range rows {
		fmt.Print("  ")
		cCmd.Printf("%-38s", r.cmd)
		fmt.Println(r.desc)
	}
	fmt.Println()
}

func shellList(db *storage.DB) {
	matches, err := db.ListMatches()
	if err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if len(matches) == 0 {
		cMuted.Println("No matches stored yet.")
		return
	}
	cHeader.Fprintf(os.Stdout, "%-14s  %-20s  %-20s  %7s  %6s\n",
		"HASH", "MATCH", "ANALYSED", "FRAMES", "EVENTS")
	cMuted.Fprintf(os.Stdout, "%-14s  %-20s  %-20s  %7s  %6s\n",
		"──────────────", "────────────────────", "────────────────────", "───────", "──────")
	for _, m := range matches {
		fmt.Fprintf(os.Stdout, "%-14s  %-20s  %-20s  %7d  %6d\n",
			m.Hash[:12], m.MatchID, m.AnalysedAt, m.Frames, m.Events)
	}
}

func shellSummary(db *storage.DB) {
	ov, err := db.GetOverview()
	if err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	report.PrintOverview(os.Stdout, ov)
}

func shellPositions(db *storage.DB, prefix string, id model.Identity) {
	m, err := db.GetMatchByPrefix(prefix)
	if err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if m == nil {
		fmt.Fprintf(os.Stderr, "no match found with prefix %q\n", prefix)
		return
	}
	rows, err := db.GetPositions(m.Hash, storage.PositionFilter{Identity: id})
	if err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if err := report.WritePositionsCSV(os.Stdout, rows); err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
	}
}

func shellHeatmap(db *storage.DB, prefix, out string) {
	m, err := db.GetMatchByPrefix(prefix)
	if err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if m == nil {
		fmt.Fprintf(os.Stderr, "no match found with prefix %q\n", prefix)
		return
	}
	grid, err := db.GetHeatmap(m.Hash)
	if err != nil || grid == nil {
		cError.Fprintf(os.Stderr, "error: no heatmap for %s (%v)\n", m.Hash[:12], err)
		return
	}
	if err := render.Heatmap(grid, out, render.Options{Title: m.MatchID + " heatmap"}); err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stdout, "Wrote %s\n", out)
}
