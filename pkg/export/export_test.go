package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/taskplan/core/model"
)

func sample() model.Response {
	return model.Response{
		RunID:   "r1",
		Horizon: 3,
		ScheduledTasks: []model.ScheduledEntry{
			{Name: "T3", Deadline: 1, Slot: 1, OriginalDeadline: 2, Benefit: 27},
			{Name: "T1", Deadline: 2, Slot: 2, OriginalDeadline: 2, Benefit: 100},
			{Name: "T5", Deadline: 3, Slot: 3, OriginalDeadline: 3, Benefit: 15},
		},
		RejectedTasks: []model.RejectedEntry{
			{Name: "T2", Deadline: 1, Benefit: 19, Reason: model.ReasonUnschedulable},
		},
		TotalBenefit: 142,
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"status", "name", "deadline", "slot", "slot_date", "benefit", "reason"}, rows[0])
	assert.Equal(t, []string{"scheduled", "T3", "2", "1", "", "27", ""}, rows[1])
	assert.Equal(t, []string{"rejected", "T2", "1", "", "", "19", "unschedulable"}, rows[4])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sample()))
	var back model.Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, sample(), back)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, sample()))
	out := buf.String()
	assert.Contains(t, out, "SLOT")
	assert.Contains(t, out, "T1")
	assert.Contains(t, out, "unschedulable")
	assert.Contains(t, out, "TOTAL BENEFIT  142")
}

func TestChartHTML(t *testing.T) {
	html, err := ChartHTML(sample())
	require.NoError(t, err)
	assert.True(t, strings.Contains(html, "<html"), "renders a full page")
	assert.Contains(t, html, "Schedule")
	assert.Contains(t, html, "total benefit 142")
}

func TestWriteUnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, "xml", sample()))
	for _, f := range Formats {
		assert.NoError(t, Write(&bytes.Buffer{}, f, sample()), f)
	}
}
