package main

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"gocausal/domain/causal"
	"gocausal/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeywordFlag(t *testing.T) {
	def, err := parseKeywordFlag("onsite_invite=上门, 到场 ,")
	require.NoError(t, err)
	assert.Equal(t, "onsite_invite", def.Name)
	assert.Equal(t, causal.KindKeyword, def.Kind)
	assert.Equal(t, []string{"上门", "到场"}, def.Keywords)

	def, err = parseKeywordFlag("上门")
	require.NoError(t, err)
	assert.Equal(t, "上门", def.Label())

	_, err = parseKeywordFlag("empty= , ")
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(errors.ConfigInvalid("bad caliper")))
	assert.Equal(t, 3, exitCode(errors.DataUnavailable("d", "outcome_units", stderrors.New("down"))))
	assert.Equal(t, 1, exitCode(stderrors.New("boom")))
}

func TestDemoCmd_JSON(t *testing.T) {
	t.Setenv("LOG_LEVEL", "ERROR")
	t.Setenv("DB_DRIVER", "")

	var out bytes.Buffer
	cmd := newDemoCmd(&globalFlags{})
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--agents", "40", "--format", "json"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var report causal.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	rows := report.RowsFor("empathy_shown")
	require.Len(t, rows, 2)
	assert.Equal(t, causal.MetricWon, rows[0].Metric)
}

func TestRunCmd_NoSource(t *testing.T) {
	t.Setenv("LOG_LEVEL", "ERROR")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GOCAUSAL_DATA_FILE", "")
	t.Setenv("GOCAUSAL_PLAN", "")

	cmd := newRunCmd(&globalFlags{})
	cmd.SetArgs([]string{"--tag", "empathy_shown"})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}
