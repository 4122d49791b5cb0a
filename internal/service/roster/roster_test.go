package roster

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workbook(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
	t.Helper()

	f, err := Template()
	require.NoError(t, err)
	defer f.Close()

	for i := range rows {
		cell := "A" + string(rune('2'+i))
		require.NoError(t, f.SetSheetRow(SheetName, cell, &rows[i]))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func set(keys ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}

func TestRead(t *testing.T) {
	buf := workbook(t,
		[]interface{}{"20111111", "Ana Lima", "ana@example.com", "CS", "", "pw1234"},
		[]interface{}{"２０２２２２２２", "Bo Chen", "", "", "reader", "pw1234"},
		[]interface{}{"20111111", "Ana Again", "", "", "", "pw1234"},
		[]interface{}{"20333333", "Cy", "not-an-email", "", "", "pw1234"},
		[]interface{}{"20444444", "Di", "", "Biology", "", "pw1234"},
		[]interface{}{"20555555", "", "", "", "", "pw1234"},
		[]interface{}{"20666666", "Ed", "", "", "ROOT", "pw1234"},
		[]interface{}{"20777777", "Fi", "", "", "", "pw1234"},
	)

	rows, rejected, err := Read(buf, set("CS", "Math"), set("20777777"))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, Row{
		PrintedID: "20111111",
		FullName:  "Ana Lima",
		Email:     "ana@example.com",
		Course:    "CS",
		Role:      "MEMBER",
		Password:  "pw1234",
	}, rows[0])
	assert.Equal(t, "20222222", rows[1].PrintedID)
	assert.Equal(t, "READER", rows[1].Role)

	var lines []int
	for _, r := range rejected {
		lines = append(lines, r.Row)
	}
	assert.Equal(t, []int{4, 5, 6, 7, 8, 9}, lines)
	assert.Contains(t, rejected[0].Reason, "repeats row 2")
	assert.Contains(t, rejected[2].Reason, "Biology")
	assert.Contains(t, rejected[5].Reason, "already taken")
}

func TestReadGarbage(t *testing.T) {
	_, _, err := Read(bytes.NewBufferString("not a workbook"), nil, nil)
	assert.Error(t, err)
}
