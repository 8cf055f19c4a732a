package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cspanlens/internal/analytics"
	"cspanlens/internal/render"
	"cspanlens/internal/textutil"
	"cspanlens/internal/topics"
)

const timelineTextWidth = 60

var titleCaser = cases.Title(language.English)

// topicTitle turns a candidate label into display form, "foreign affairs"
// becoming "Foreign Affairs".
func topicTitle(label string) string {
	return titleCaser.String(strings.ReplaceAll(label, "_", " "))
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// writeReport prints the analytics summary of a run.
func writeReport(w io.Writer, report analytics.Report) {
	summary := [][]string{
		{"Video duration", formatFloat(report.VideoDuration, 2) + " s"},
		{"Frames analyzed", strconv.Itoa(report.FramesAnalyzed)},
		{"Speech segments", strconv.Itoa(report.SpeechSegments)},
	}
	fmt.Fprintln(w, renderTable(w, "Analysis Summary", []string{"Metric", "Value"}, summary, []columnAlignment{alignLeft, alignRight}))

	if !report.Available {
		fmt.Fprintln(w, "Movement and speech analytics unavailable: the run produced no pose data or no transcript.")
		return
	}

	movement := make([][]string, 0, len(report.Movement))
	for _, m := range report.Movement {
		movement = append(movement, []string{m.Name, strconv.Itoa(m.Samples), formatFloat(m.Variance, 6)})
	}
	fmt.Fprintln(w, renderTable(w, "Movement", []string{"Landmark", "Samples", "Variance"}, movement,
		[]columnAlignment{alignLeft, alignRight, alignRight}))

	speech := [][]string{
		{"Total words", strconv.Itoa(report.Speech.TotalWords)},
		{"Speech duration", formatFloat(report.Speech.TotalDuration, 2) + " s"},
		{"Words per minute", formatFloat(report.Speech.WordsPerMinute, 1)},
	}
	fmt.Fprintln(w, renderTable(w, "Speech", []string{"Metric", "Value"}, speech, []columnAlignment{alignLeft, alignRight}))

	writeTopicDistribution(w, report.Topics)
}

func writeTopicDistribution(w io.Writer, shares []analytics.TopicShare) {
	if len(shares) == 0 {
		return
	}
	rows := make([][]string, 0, len(shares))
	for _, share := range shares {
		rows = append(rows, []string{
			topicTitle(share.Label),
			strconv.Itoa(share.Count),
			formatFloat(share.Share*100, 1) + "%",
		})
	}
	fmt.Fprintln(w, renderTable(w, "Dominant Topics", []string{"Topic", "Intervals", "Share"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight}))
}

// writeTimeline prints one row per context record.
func writeTimeline(w io.Writer, records []topics.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No context records")
		return
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		label, score, ok := rec.Topics.Top()
		topic := "-"
		if ok {
			topic = fmt.Sprintf("%s (%.2f)", topicTitle(label), score)
		}
		excerpt := rec.Summary
		if excerpt == "" {
			excerpt = rec.Text
		}
		if len([]rune(excerpt)) > timelineTextWidth {
			excerpt = textutil.Truncate(excerpt, timelineTextWidth, "...")
		}
		rows = append(rows, []string{render.FormatTimestamp(rec.Timestamp), topic, excerpt})
	}
	fmt.Fprintln(w, renderTable(w, "Topic Timeline", []string{"Time", "Topic", "Summary"}, rows, nil))
}
