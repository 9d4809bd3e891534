package activity

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/gophbank/internal/logging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestRecorder_Events(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorder(logging.NewJSONLogger(&buf, slog.LevelInfo))
	ctx := context.Background()

	r.Login(ctx, "alice", "127.0.0.1:5000", true)
	r.Login(ctx, "alice", "127.0.0.1:5001", false)
	r.Deposit(ctx, "alice", decimal.NewFromInt(50))
	r.Withdrawal(ctx, "alice", decimal.RequireFromString("20.5"), true)
	r.Interest(ctx, decimal.RequireFromString("0.05"), 3)

	recs := decodeLines(t, buf.Bytes())
	require.Len(t, recs, 5)

	assert.Equal(t, EventLogin, recs[0]["event"])
	assert.Equal(t, "successful", recs[0]["outcome"])
	assert.Equal(t, "127.0.0.1:5000", recs[0]["remote"])
	assert.Equal(t, "failed", recs[1]["outcome"])

	assert.Equal(t, EventDeposit, recs[2]["event"])
	assert.Equal(t, "50.00", recs[2]["amount"])

	assert.Equal(t, "20.50", recs[3]["amount"])

	assert.Equal(t, EventInterest, recs[4]["event"])
	assert.Equal(t, "0.05", recs[4]["rate"])
	assert.EqualValues(t, 3, recs[4]["updated"])
}

func TestOpen_AppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "user_activity.log")

	r, closeFn, err := Open(path)
	require.NoError(t, err)
	r.Logout(context.Background(), "bob")
	require.NoError(t, closeFn())

	r, closeFn, err = Open(path)
	require.NoError(t, err)
	r.BalanceCheck(context.Background(), "bob")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	recs := decodeLines(t, data)
	require.Len(t, recs, 2)
	assert.Equal(t, EventLogout, recs[0]["event"])
	assert.Equal(t, EventBalanceCheck, recs[1]["event"])
}
