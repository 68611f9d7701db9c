package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmcare/ventpanel/internal/controller"
	"github.com/farmcare/ventpanel/internal/model"
)

type fakeConfigAPI struct {
	snapshot *controller.ConfigSnapshot
	control  *model.ControlMeta
	saveErr  error

	savedVents   []model.Vent
	savedGroups  []model.Group
	savedDevices []model.BoneIODevice
	savedControl map[string]any
}

func (f *fakeConfigAPI) ConfigSnapshot(context.Context) (*controller.ConfigSnapshot, error) {
	return f.snapshot, nil
}

func (f *fakeConfigAPI) SaveBoneIO(_ context.Context, devices []model.BoneIODevice) ([]model.BoneIODevice, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.savedDevices = devices
	return devices, nil
}

func (f *fakeConfigAPI) SaveVents(_ context.Context, vents []model.Vent) ([]model.Vent, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.savedVents = vents
	return vents, nil
}

func (f *fakeConfigAPI) SaveGroups(_ context.Context, groups []model.Group) ([]model.Group, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.savedGroups = groups
	return groups, nil
}

func (f *fakeConfigAPI) SavePlan(_ context.Context, plan model.Plan) (*model.Plan, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return &plan, nil
}

func (f *fakeConfigAPI) SaveHeating(_ context.Context, heating model.Heating) (*model.Heating, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return &heating, nil
}

func (f *fakeConfigAPI) SaveExternal(_ context.Context, external model.External) (*model.External, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return &external, nil
}

func (f *fakeConfigAPI) ControlSettings(context.Context) (*model.ControlMeta, error) {
	return f.control, nil
}

func (f *fakeConfigAPI) SaveControlSettings(_ context.Context, values map[string]any) (*model.ControlMeta, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.savedControl = values
	return f.control, nil
}

func loadedEditor(t *testing.T) (*Editor, *fakeConfigAPI) {
	t.Helper()
	api := &fakeConfigAPI{
		snapshot: &controller.ConfigSnapshot{
			BoneIO: []model.BoneIODevice{{ID: "boneio-1", Description: "north wall"}},
			Vents: []model.Vent{
				{ID: 1, Name: "North 1", BoneIODevice: "boneio-1"},
				{ID: 3, Name: "South 1"},
			},
			Groups: []model.Group{{ID: "north", Name: "North", Vents: []int{1}}},
			Plan:   &model.Plan{Stages: []model.Stage{{ID: "s1"}, {ID: "s2"}}},
		},
	}
	e := New(api, zerolog.Nop())
	require.NoError(t, e.Load(context.Background()))
	return e, api
}

func TestEditorLoad_Projections(t *testing.T) {
	e, _ := loadedEditor(t)

	devices := e.DeviceOptions()
	require.Len(t, devices, 1)
	assert.Equal(t, "boneio-1", devices[0].Value)
	assert.Equal(t, "boneio-1 (north wall)", devices[0].Label)

	vents := e.VentOptions()
	require.Len(t, vents, 2)
	assert.Equal(t, "1", vents[0].Value)
	assert.Equal(t, "3", vents[1].Value)

	groups := e.GroupOptions()
	require.Len(t, groups, 1)
	assert.Equal(t, "north", groups[0].Value)
}

func TestEditorAddVent_AssignsNextFreeID(t *testing.T) {
	e, _ := loadedEditor(t)

	added := e.AddVent(model.Vent{Name: "East 1"})
	assert.Equal(t, 4, added.ID, "next free id after max existing")

	// Projections recompute synchronously.
	assert.Len(t, e.VentOptions(), 3)
}

func TestEditorRemoveVent_NoCascade(t *testing.T) {
	e, _ := loadedEditor(t)

	require.True(t, e.RemoveVent(1))
	assert.Len(t, e.Vents(), 1)
	assert.Len(t, e.VentOptions(), 1)

	// Group membership is untouched; the reference is now dangling.
	groups := e.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, []int{1}, groups[0].Vents)

	dangling := e.DanglingVentRefs()
	require.Contains(t, dangling, "north")
	assert.Equal(t, []int{1}, dangling["north"])
}

func TestEditorRemoveDevice_KeepsVentReference(t *testing.T) {
	e, _ := loadedEditor(t)

	require.True(t, e.RemoveDevice(0))
	assert.Empty(t, e.DeviceOptions())

	vents := e.Vents()
	require.Len(t, vents, 2)
	assert.Equal(t, "boneio-1", vents[0].BoneIODevice)
}

func TestEditorSave_FailureKeepsEdits(t *testing.T) {
	e, api := loadedEditor(t)

	e.AddVent(model.Vent{Name: "East 1"})
	api.saveErr = errors.New("controller down")

	err := e.SaveVents(context.Background())
	assert.Error(t, err)
	assert.Len(t, e.Vents(), 3, "local edits survive the failed save")
	assert.Nil(t, api.savedVents)
}

func TestEditorSave_AdoptsServerEcho(t *testing.T) {
	e, api := loadedEditor(t)

	e.AddGroup(model.Group{ID: "south", Name: "South", Vents: []int{3}})
	require.NoError(t, e.SaveGroups(context.Background()))

	assert.Len(t, api.savedGroups, 2, "wholesale save of the collection")
	assert.Len(t, e.GroupOptions(), 2)
}

func TestEditorMoveStage(t *testing.T) {
	e, _ := loadedEditor(t)

	require.True(t, e.MoveStage(0, 1))
	plan := e.Plan()
	assert.Equal(t, "s2", plan.Stages[0].ID)
	assert.Equal(t, "s1", plan.Stages[1].ID)

	assert.False(t, e.MoveStage(1, 1), "cannot move past the end")
}

func controlEditor(t *testing.T) (*Editor, *fakeConfigAPI) {
	t.Helper()
	api := &fakeConfigAPI{
		control: &model.ControlMeta{
			Dashboard: []model.ControlField{
				{Key: "target_temp_c", Value: 24.0, Type: model.ControlFloat},
				{Key: "allow_humidity_override", Value: true, Type: model.ControlBool},
			},
			Advanced: []model.ControlField{
				{Key: "step_delay_s", Value: 5.0, Type: model.ControlInt},
				{Key: "close_strategy", Value: "fifo", Type: model.ControlString},
			},
		},
	}
	e := New(api, zerolog.Nop())
	require.NoError(t, e.LoadControl(context.Background()))
	return e, api
}

func TestEditorLoadControl_ProjectsInputs(t *testing.T) {
	e, _ := controlEditor(t)

	assert.Equal(t, "24", e.ControlInput("target_temp_c"))
	assert.Equal(t, "5", e.ControlInput("step_delay_s"))
	assert.Equal(t, "fifo", e.ControlInput("close_strategy"))
	assert.True(t, e.ControlChecked("allow_humidity_override"))
}

func TestEditorSaveControl_BlocksOnBadInput(t *testing.T) {
	e, api := controlEditor(t)

	e.SetControlInput("target_temp_c", "abc")
	err := e.SaveControl(context.Background())
	assert.ErrorIs(t, err, ErrInvalidValues)
	assert.True(t, e.ControlFieldError("target_temp_c"))
	assert.Nil(t, api.savedControl, "validation failure never reaches the network")

	// Correcting the input clears the flag.
	e.SetControlInput("target_temp_c", "25.5")
	assert.False(t, e.ControlFieldError("target_temp_c"))
}

func TestEditorSaveControl_PayloadShape(t *testing.T) {
	e, api := controlEditor(t)

	e.SetControlInput("target_temp_c", "")
	e.SetControlChecked("allow_humidity_override", false)
	require.NoError(t, e.SaveControl(context.Background()))

	_, present := api.savedControl["target_temp_c"]
	assert.False(t, present, "empty numeric input is omitted")
	assert.Equal(t, false, api.savedControl["allow_humidity_override"], "bool fields always go out")
	assert.Equal(t, 5, api.savedControl["step_delay_s"], "int fields are sent as integers")
	assert.Equal(t, "fifo", api.savedControl["close_strategy"])
}

func TestEditorSaveControl_RejectsFractionalInt(t *testing.T) {
	e, api := controlEditor(t)

	e.SetControlInput("step_delay_s", "2.5")
	err := e.SaveControl(context.Background())
	assert.ErrorIs(t, err, ErrInvalidValues)
	assert.True(t, e.ControlFieldError("step_delay_s"))
	assert.Nil(t, api.savedControl)
}

func TestEditorSaveControl_FailureKeepsEdits(t *testing.T) {
	e, api := controlEditor(t)

	e.SetControlInput("target_temp_c", "26")
	api.saveErr = errors.New("controller down")

	assert.Error(t, e.SaveControl(context.Background()))
	assert.Equal(t, "26", e.ControlInput("target_temp_c"), "local edits survive the failed save")
}
