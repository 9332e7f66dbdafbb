package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"bobbin/internal/api"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if jsonOutput {
					encoder := json.NewEncoder(out)
					encoder.SetIndent("", "  ")
					return encoder.Encode(status)
				}
				renderStatus(out, status)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit status as JSON")
	return cmd
}

func renderStatus(out io.Writer, status api.DaemonStatus) {
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	runningKind := statusError
	if status.Running {
		runningKind = statusOK
	}
	fmt.Fprintln(out, renderStatusLine("Running", runningKind, yesNo(status.Running), colorize))
	reviewKind := statusOK
	if !status.Review.Ready {
		reviewKind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Review stage", reviewKind, status.Review.Detail, colorize))

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Queue", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprint(out, renderTable(
		[]string{"Pending", "Classifying", "Classified", "Failed", "Total"},
		[][]string{{
			strconv.Itoa(status.Queue.Pending),
			strconv.Itoa(status.Queue.Classifying),
			strconv.Itoa(status.Queue.Classified),
			strconv.Itoa(status.Queue.Failed),
			strconv.Itoa(status.Queue.Total),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	fmt.Fprintln(out)

	if len(status.Groups) > 0 {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Groups", colorize) {
			fmt.Fprintln(out, line)
		}
		rows := make([][]string, 0, len(status.Groups))
		for _, group := range status.Groups {
			rows = append(rows, []string{
				group.GroupID,
				strconv.Itoa(group.ItemCount),
				yesNo(group.Ready),
				yesNo(group.Locked),
				group.Interval,
				group.LastConsumedAt,
				group.LastSkipReason,
			})
		}
		fmt.Fprint(out, renderTable(
			[]string{"Group", "Items", "Ready", "Locked", "Interval", "Last Consumed", "Last Skip"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
		))
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Counters", colorize) {
		fmt.Fprintln(out, line)
	}
	counters := []struct {
		label string
		value int64
	}{
		{"Submitted", status.Metrics.ItemsSubmitted},
		{"Duplicates", status.Metrics.DuplicatesRejected},
		{"Classified", status.Metrics.ItemsClassified},
		{"Escalations", status.Metrics.Escalations},
		{"Fallbacks", status.Metrics.Fallbacks},
		{"Failures", status.Metrics.ClassifyFailures},
		{"Snapshots", status.Metrics.Snapshots},
		{"Cadence skips", status.Metrics.CadenceSkips},
	}
	for _, counter := range counters {
		fmt.Fprintln(out, renderStatusLine(counter.label, statusInfo, strconv.FormatInt(counter.value, 10), colorize))
	}
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
