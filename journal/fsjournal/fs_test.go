package fsjournal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raulk/clock"
	"github.com/stretchr/testify/require"

	"github.com/justnobody/nobody-mesh/build"
	"github.com/justnobody/nobody-mesh/journal"
)

func readLines(t *testing.T, path string) []map[string]interface{} {
	fi, err := os.Open(path)
	require.NoError(t, err)
	defer fi.Close() //nolint:errcheck

	var out []map[string]interface{}
	sc := bufio.NewScanner(fi)
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestFsJournalRecords(t *testing.T) {
	dir := t.TempDir()

	disabled, err := journal.ParseDisabledEvents("mesh:publish")
	require.NoError(t, err)

	j, err := OpenFSJournalPath(dir, disabled, 1<<20, 3)
	require.NoError(t, err)

	evt := j.RegisterEventType("mesh", "event")
	pub := j.RegisterEventType("mesh", "publish")
	require.True(t, evt.Enabled())
	require.False(t, pub.Enabled())

	j.RecordEvent(evt, func() interface{} { return map[string]string{"type": "PeerDiscovered"} })
	j.RecordEvent(pub, func() interface{} { return "skipped" })
	j.RecordEvent(evt, func() interface{} { panic("boom") })
	require.NoError(t, j.Close())

	lines := readLines(t, filepath.Join(dir, "journal", currentName))
	require.Len(t, lines, 1)
	require.Equal(t, "mesh", lines[0]["System"])
	require.Equal(t, "event", lines[0]["Event"])
	require.Equal(t, "PeerDiscovered", lines[0]["Data"].(map[string]interface{})["type"])
}

func TestFsJournalRollsAndPrunes(t *testing.T) {
	mock := clock.NewMock()
	prev := build.Clock
	build.Clock = mock
	t.Cleanup(func() { build.Clock = prev })

	dir := t.TempDir()
	jdir := filepath.Join(dir, "journal")

	// every event overflows the limit, so each one rolls the file.
	j, err := OpenFSJournalPath(dir, nil, 1, 2)
	require.NoError(t, err)
	fj := j.(*fsJournal)

	et := j.RegisterEventType("mesh", "event")
	for i := 0; i < 5; i++ {
		mock.Add(time.Second)
		// putEvent is called directly so the clock advances between rolls.
		require.NoError(t, fj.putEvent(&journal.Event{EventType: et, Timestamp: mock.Now(), Data: i}))
	}
	require.NoError(t, j.Close())

	entries, err := os.ReadDir(jdir)
	require.NoError(t, err)

	var rolled []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), rolledPrefix) {
			rolled = append(rolled, e.Name())
		}
	}
	require.Len(t, rolled, 2)

	// the newest two rolls survive.
	last := mock.Now().Format(RFC3339nocolon)
	require.Contains(t, rolled, rolledPrefix+last+".ndjson")
	require.FileExists(t, filepath.Join(jdir, currentName))
}
