package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmcare/ventpanel/internal/notify"
	"github.com/farmcare/ventpanel/internal/session"
)

type fakeControlAPI struct {
	saved   map[string]any
	echo    map[string]any
	saveErr error
	calls   int
}

func (f *fakeControlAPI) SaveControl(_ context.Context, values map[string]any) (map[string]any, error) {
	f.calls++
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.saved = values
	if f.echo != nil {
		return f.echo, nil
	}
	return values, nil
}

func newForm(api *fakeControlAPI) (*Form, *session.Tracker, *notify.Center) {
	tracker := session.NewTracker()
	notices := notify.NewCenter(time.Minute)
	return NewForm(api, tracker, notices, zerolog.Nop()), tracker, notices
}

func TestFormRefresh_PopulatesFromConfig(t *testing.T) {
	form, _, _ := newForm(&fakeControlAPI{})
	form.Refresh(map[string]any{
		"target_temp_c":           24.5,
		"allow_humidity_override": true,
	})

	assert.Equal(t, "24.5", form.Input("target_temp_c"))
	assert.True(t, form.Checked("allow_humidity_override"))
	assert.Equal(t, "", form.Input("humidity_thr"))
}

func TestFormRefresh_DirtyFormIsLeftAlone(t *testing.T) {
	form, tracker, _ := newForm(&fakeControlAPI{})
	form.Refresh(map[string]any{"target_temp_c": 24.0})

	form.SetInput("target_temp_c", "26")
	require.True(t, tracker.FormDirty())

	form.Refresh(map[string]any{"target_temp_c": 23.0})
	assert.Equal(t, "26", form.Input("target_temp_c"), "poll must not overwrite typed input")
}

func TestFormSave_UnparseableBlocksWithoutNetwork(t *testing.T) {
	api := &fakeControlAPI{}
	form, tracker, notices := newForm(api)
	form.Refresh(map[string]any{})

	form.SetInput("target_temp_c", "abc")
	err := form.Save(context.Background())
	require.NoError(t, err, "validation failure is local, not an error return")

	assert.Equal(t, 0, api.calls, "nothing goes to the network")
	assert.True(t, form.FieldError("target_temp_c"))
	assert.True(t, tracker.FormDirty(), "edits stay pending")

	active := notices.Active()
	require.Len(t, active, 1)
	assert.Equal(t, notify.LevelWarning, active[0].Level)
}

func TestFormSave_EmptyNumericOmittedCheckboxAlwaysSent(t *testing.T) {
	api := &fakeControlAPI{}
	form, _, _ := newForm(api)
	form.Refresh(map[string]any{})

	form.SetInput("target_temp_c", "24.5")
	form.SetChecked("allow_humidity_override", false)
	require.NoError(t, form.Save(context.Background()))

	require.NotNil(t, api.saved)
	assert.Equal(t, 24.5, api.saved["target_temp_c"])
	assert.Equal(t, false, api.saved["allow_humidity_override"])
	_, present := api.saved["humidity_thr"]
	assert.False(t, present, "untouched numeric fields are omitted")
}

func TestFormSave_SuccessClearsDirtyAndAdoptsEcho(t *testing.T) {
	api := &fakeControlAPI{echo: map[string]any{"target_temp_c": 25.0}}
	form, tracker, _ := newForm(api)
	form.Refresh(map[string]any{})

	form.SetInput("target_temp_c", "25")
	require.NoError(t, form.Save(context.Background()))

	assert.False(t, tracker.FormDirty())
	assert.Equal(t, 25.0, form.Config()["target_temp_c"])
}

func TestFormSave_ServerFailureKeepsDirty(t *testing.T) {
	api := &fakeControlAPI{saveErr: errors.New("500")}
	form, tracker, notices := newForm(api)
	form.Refresh(map[string]any{})

	form.SetInput("target_temp_c", "25")
	err := form.Save(context.Background())
	assert.Error(t, err)
	assert.True(t, tracker.FormDirty())

	active := notices.Active()
	require.Len(t, active, 1)
	assert.Equal(t, notify.LevelError, active[0].Level)
}
