package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	writes   []string
	readings map[string]float64
	failOn   string
}

func (r *recorder) Write(ctx context.Context, command string) error {
	if command == r.failOn {
		return errors.New("io error")
	}
	r.writes = append(r.writes, command)
	return nil
}

func (r *recorder) QueryNumeric(ctx context.Context, command string) (float64, error) {
	return r.readings[command], nil
}

func TestSource_StandardInit(t *testing.T) {
	p, err := NewSource(Standard, 8)
	require.NoError(t, err)

	rec := &recorder{}
	require.NoError(t, p.Initialize(context.Background(), rec))
	assert.Equal(t, []string{"curr 8", "volt 0", "output on"}, rec.writes)
}

func TestSource_RemoteSenseInit(t *testing.T) {
	p, err := NewSource(RemoteSense, 2.5)
	require.NoError(t, err)

	rec := &recorder{}
	require.NoError(t, p.Initialize(context.Background(), rec))
	assert.Equal(t, []string{"syst:rem", "outp:par", "volt 0", "curr 2.5", "output on"}, rec.writes)
}

func TestSource_VariantsConverge(t *testing.T) {
	std, err := NewSource(Standard, 4)
	require.NoError(t, err)
	rs, err := NewSource(RemoteSense, 4)
	require.NoError(t, err)

	stdCmds := std.InitCommands()
	rsCmds := rs.InitCommands()
	assert.Equal(t, "output on", stdCmds[len(stdCmds)-1])
	assert.Equal(t, "output on", rsCmds[len(rsCmds)-1])
	assert.Contains(t, stdCmds, "volt 0")
	assert.Contains(t, rsCmds, "volt 0")
	assert.Contains(t, stdCmds, "curr 4")
	assert.Contains(t, rsCmds, "curr 4")
}

func TestSource_InitStopsOnFirstError(t *testing.T) {
	p, err := NewSource(Standard, 8)
	require.NoError(t, err)

	rec := &recorder{failOn: "volt 0"}
	assert.Error(t, p.Initialize(context.Background(), rec))
	assert.Equal(t, []string{"curr 8"}, rec.writes)
}

func TestSource_Validation(t *testing.T) {
	_, err := NewSource("bk", 1)
	assert.Error(t, err)
	_, err = NewSource(Standard, 0)
	assert.Error(t, err)

	v, err := ParseVariant("remote-sense")
	require.NoError(t, err)
	assert.Equal(t, RemoteSense, v)
}

func TestLoad_Commands(t *testing.T) {
	p, err := NewLoad(7)
	require.NoError(t, err)

	rec := &recorder{}
	ctx := context.Background()
	require.NoError(t, p.Initialize(ctx, rec))
	require.NoError(t, p.SetCurrent(ctx, rec, 2.5))
	require.NoError(t, p.Disable(ctx, rec))

	assert.Equal(t, []string{"chan 7", "mode cch", "curr:stat:l1 0", "load on", "curr:stat:l1 2.5", "load off"}, rec.writes)

	_, err = NewLoad(0)
	assert.Error(t, err)
}

func TestMeasure(t *testing.T) {
	p, err := NewLoad(1)
	require.NoError(t, err)

	rec := &recorder{readings: map[string]float64{
		MeasureVoltageCommand: 11.8,
		MeasureCurrentCommand: 1.0,
	}}
	v, i, err := p.Measure(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 11.8, v)
	assert.Equal(t, 1.0, i)
}
