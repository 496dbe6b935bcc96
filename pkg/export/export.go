// Package export renders scheduling responses as JSON, CSV, an aligned text
// table or an HTML bar chart.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/taskplan/core/model"
)

// Formats lists the names accepted by Write.
var Formats = []string{"table", "json", "csv", "chart"}

// Write renders resp in the named format.
func Write(w io.Writer, format string, resp model.Response) error {
	switch format {
	case "", "table":
		return WriteTable(w, resp)
	case "json":
		return WriteJSON(w, resp)
	case "csv":
		return WriteCSV(w, resp)
	case "chart":
		html, err := ChartHTML(resp)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, html)
		return err
	}
	return fmt.Errorf("unknown format %q", format)
}

// WriteJSON writes the response to w in JSON format.
func WriteJSON(w io.Writer, resp model.Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// WriteCSV writes one row per task: scheduled tasks in slot order, then
// rejected tasks with an empty slot.
func WriteCSV(w io.Writer, resp model.Response) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"status", "name", "deadline", "slot", "slot_date", "benefit", "reason"}); err != nil {
		return err
	}
	for _, e := range resp.ScheduledTasks {
		rec := []string{
			"scheduled",
			e.Name,
			strconv.Itoa(e.OriginalDeadline),
			strconv.Itoa(e.Slot),
			e.SlotDate,
			formatBenefit(e.Benefit),
			"",
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	for _, e := range resp.RejectedTasks {
		rec := []string{
			"rejected",
			e.Name,
			strconv.Itoa(e.Deadline),
			"",
			"",
			formatBenefit(e.Benefit),
			string(e.Reason),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable writes a human readable summary.
func WriteTable(w io.Writer, resp model.Response) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tDATE\tTASK\tDEADLINE\tBENEFIT")
	for _, e := range resp.ScheduledTasks {
		date := e.SlotDate
		if date == "" {
			date = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", e.Slot, date, e.Name, e.OriginalDeadline, formatBenefit(e.Benefit))
	}
	if len(resp.RejectedTasks) > 0 {
		fmt.Fprintln(tw, "\nREJECTED\t\tTASK\tDEADLINE\tBENEFIT")
		for _, e := range resp.RejectedTasks {
			fmt.Fprintf(tw, "%s\t\t%s\t%d\t%s\n", e.Reason, e.Name, e.Deadline, formatBenefit(e.Benefit))
		}
	}
	fmt.Fprintf(tw, "\nTOTAL BENEFIT\t%s\n", formatBenefit(resp.TotalBenefit))
	return tw.Flush()
}

// ChartHTML renders the benefit collected on each slot of the horizon as a
// bar chart. Free slots show as zero.
func ChartHTML(resp model.Response) (string, error) {
	horizon := resp.Horizon
	for _, e := range resp.ScheduledTasks {
		horizon = max(horizon, e.Slot)
	}
	bySlot := make(map[int]model.ScheduledEntry, len(resp.ScheduledTasks))
	for _, e := range resp.ScheduledTasks {
		bySlot[e.Slot] = e
	}

	xAxis := make([]string, 0, horizon)
	data := make([]opts.BarData, 0, horizon)
	for slot := 1; slot <= horizon; slot++ {
		e, ok := bySlot[slot]
		label := strconv.Itoa(slot)
		if ok && e.SlotDate != "" {
			label = e.SlotDate
		}
		xAxis = append(xAxis, label)
		if ok {
			data = append(data, opts.BarData{Name: e.Name, Value: e.Benefit})
		} else {
			data = append(data, opts.BarData{Value: 0})
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Schedule",
			Subtitle: fmt.Sprintf("total benefit %s, %d scheduled, %d rejected", formatBenefit(resp.TotalBenefit), len(resp.ScheduledTasks), len(resp.RejectedTasks)),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Slot"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Benefit"}),
	)
	bar.SetXAxis(xAxis).AddSeries("Benefit", data)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		return "", fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.String(), nil
}

func formatBenefit(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
