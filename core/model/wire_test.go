package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDeadlineJSON(t *testing.T) {
	var req Request
	body := `{"tasks":[{"name":"a","deadline":"2025-06-30","profit":100},{"name":"b","deadline":3,"benefit":7}]}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	require.Len(t, req.Tasks, 2)
	assert.Equal(t, Deadline{Date: "2025-06-30"}, req.Tasks[0].Deadline)
	assert.Equal(t, 100.0, req.Tasks[0].Value())
	assert.Equal(t, Deadline{Day: 3}, req.Tasks[1].Deadline)
	assert.Equal(t, 7.0, req.Tasks[1].Value())

	out, err := json.Marshal(req.Tasks[0].Deadline)
	require.NoError(t, err)
	assert.JSONEq(t, `"2025-06-30"`, string(out))

	var d Deadline
	assert.Error(t, json.Unmarshal([]byte(`2.5`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}

func TestDeadlineYAML(t *testing.T) {
	data := "tasks:\n  - name: a\n    deadline: 2025-06-30\n    benefit: 4\n  - name: b\n    deadline: 2\n    profit: 3\n"
	var req Request
	require.NoError(t, yaml.Unmarshal([]byte(data), &req))
	assert.True(t, req.Tasks[0].Deadline.IsDate())
	assert.Equal(t, "2025-06-30", req.Tasks[0].Deadline.Date)
	assert.Equal(t, 2, req.Tasks[1].Deadline.Day)
	assert.Equal(t, 3.0, req.Tasks[1].Value())
}

func TestWireTaskValueDefaults(t *testing.T) {
	b, p := 2.0, 9.0
	assert.Equal(t, 2.0, WireTask{Benefit: &b, Profit: &p}.Value())
	assert.Zero(t, WireTask{}.Value())
}
