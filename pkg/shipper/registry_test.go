package shipper_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/printship/pkg/shipper"
	"github.com/tournevent/printship/pkg/shipper/mock"
)

func enabled(priority int) shipper.ModuleConfig {
	return shipper.ModuleConfig{Enabled: true, Priority: priority}
}

func TestRegistry_Register(t *testing.T) {
	registry := shipper.NewRegistry()

	require.NoError(t, registry.Register(mock.New("test-shipper"), enabled(1)))

	got, err := registry.Module("test-shipper")
	require.NoError(t, err, "shipper should be registered")
	assert.Equal(t, "test-shipper", got.ID)
	assert.Equal(t, "test-shipper", got.Provider.Name())
	assert.True(t, got.Config.Enabled)
}

func TestRegistry_Register_Override(t *testing.T) {
	registry := shipper.NewRegistry()

	// Register first shipper
	require.NoError(t, registry.Register(mock.New("test-shipper"), enabled(1)))
	assert.Equal(t, 1, registry.Count())

	// Register again with same name should override
	require.NoError(t, registry.Register(mock.New("test-shipper"), shipper.ModuleConfig{Priority: 5}))
	assert.Equal(t, 1, registry.Count())

	got, err := registry.Module("test-shipper")
	require.NoError(t, err)
	assert.False(t, got.Config.Enabled)
	assert.Equal(t, 5, got.Config.Priority)
}

func TestRegistry_Register_Misconfigured(t *testing.T) {
	registry := shipper.NewRegistry()

	broken := mock.New("broken")
	broken.ConfigErr = shipper.NewConfigurationError("broken", "missing API key", nil)

	err := registry.Register(broken, enabled(1))
	require.Error(t, err)
	assert.True(t, shipper.IsConfigurationError(err))

	// Registered but forced disabled.
	got, err := registry.Module("broken")
	require.NoError(t, err)
	assert.False(t, got.Config.Enabled)
	assert.Empty(t, registry.EnabledModules())

	status := registry.Status()
	require.Len(t, status, 1)
	assert.Contains(t, status[0].ConfigError, "missing API key")
}

func TestRegistry_Register_PlainValidationError(t *testing.T) {
	registry := shipper.NewRegistry()

	broken := mock.New("broken")
	broken.ConfigErr = errors.New("bad table")

	err := registry.Register(broken, enabled(1))
	assert.True(t, shipper.IsConfigurationError(err), "validation errors are wrapped as configuration errors")
}

func TestRegistry_Module_NotFound(t *testing.T) {
	registry := shipper.NewRegistry()

	_, err := registry.Module("nonexistent")
	assert.Error(t, err, "should return error for unregistered shipper")
	assert.True(t, errors.Is(err, shipper.ErrCarrierNotFound))
}

func TestRegistry_EnabledModules_PriorityOrder(t *testing.T) {
	registry := shipper.NewRegistry()

	require.NoError(t, registry.Register(mock.New("ups"), enabled(30)))
	require.NoError(t, registry.Register(mock.New("southwest"), enabled(10)))
	require.NoError(t, registry.Register(mock.New("fedex"), enabled(20)))
	require.NoError(t, registry.Register(mock.New("dhl"), shipper.ModuleConfig{Priority: 1}))
	require.NoError(t, registry.Register(mock.New("acme"), enabled(20)))

	var ids []string
	for _, m := range registry.EnabledModules() {
		ids = append(ids, m.ID)
	}
	// Ties are broken by id.
	assert.Equal(t, []string{"southwest", "acme", "fedex", "ups"}, ids)
	assert.Len(t, registry.Modules(), 5)
}

func TestRegistry_EnableDisable(t *testing.T) {
	registry := shipper.NewRegistry()
	require.NoError(t, registry.Register(mock.New("fedex"), shipper.ModuleConfig{Priority: 1}))

	require.NoError(t, registry.Enable("fedex"))
	assert.Len(t, registry.EnabledModules(), 1)

	require.NoError(t, registry.Disable("fedex"))
	assert.Empty(t, registry.EnabledModules())

	assert.ErrorIs(t, registry.Enable("nope"), shipper.ErrCarrierNotFound)
	assert.ErrorIs(t, registry.Disable("nope"), shipper.ErrCarrierNotFound)
}

func TestRegistry_Enable_RevalidatesProvider(t *testing.T) {
	registry := shipper.NewRegistry()

	broken := mock.New("broken")
	broken.ConfigErr = shipper.NewConfigurationError("broken", "missing API key", nil)
	require.Error(t, registry.Register(broken, enabled(1)))

	err := registry.Enable("broken")
	assert.True(t, shipper.IsConfigurationError(err))
	assert.Empty(t, registry.EnabledModules())

	// Once fixed, enabling succeeds and the status error clears.
	broken.ConfigErr = nil
	require.NoError(t, registry.Enable("broken"))
	assert.Len(t, registry.EnabledModules(), 1)
	assert.Empty(t, registry.Status()[0].ConfigError)
}

func TestRegistry_UpdateConfig(t *testing.T) {
	registry := shipper.NewRegistry()
	require.NoError(t, registry.Register(mock.New("fedex"), shipper.ModuleConfig{
		Enabled:  true,
		Priority: 10,
		Config:   map[string]any{"account": "A1"},
	}))

	priority := 3
	testMode := true
	require.NoError(t, registry.UpdateConfig("fedex", shipper.ConfigPatch{
		Priority: &priority,
		TestMode: &testMode,
		Config:   map[string]any{"region": "west"},
	}))

	got, err := registry.Module("fedex")
	require.NoError(t, err)
	assert.True(t, got.Config.Enabled, "untouched fields are kept")
	assert.Equal(t, 3, got.Config.Priority)
	assert.True(t, got.Config.TestMode)
	assert.Equal(t, map[string]any{"account": "A1", "region": "west"}, got.Config.Config)
}

func TestRegistry_UpdateConfig_RefusesEnablingMisconfigured(t *testing.T) {
	registry := shipper.NewRegistry()

	broken := mock.New("broken")
	broken.ConfigErr = shipper.NewConfigurationError("broken", "missing API key", nil)
	require.Error(t, registry.Register(broken, shipper.ModuleConfig{Priority: 1}))

	on := true
	priority := 9
	err := registry.UpdateConfig("broken", shipper.ConfigPatch{Enabled: &on, Priority: &priority})
	assert.True(t, shipper.IsConfigurationError(err))

	// A refused patch leaves the whole configuration untouched.
	got, err := registry.Module("broken")
	require.NoError(t, err)
	assert.False(t, got.Config.Enabled)
	assert.Equal(t, 1, got.Config.Priority)
}

func TestRegistry_AppliesModuleConfig(t *testing.T) {
	registry := shipper.NewRegistry()

	var applied []shipper.ModuleConfig
	fedex := mock.New("fedex")
	fedex.OnApplyConfig = func(cfg shipper.ModuleConfig) error {
		applied = append(applied, cfg)
		return nil
	}
	require.NoError(t, registry.Register(fedex, shipper.ModuleConfig{
		Enabled: true,
		Config:  map[string]any{"account": "A1"},
	}))
	require.Len(t, applied, 1)
	assert.Equal(t, "A1", applied[0].Config["account"])

	on := true
	require.NoError(t, registry.UpdateConfig("fedex", shipper.ConfigPatch{
		TestMode: &on,
		Config:   map[string]any{"region": "west"},
	}))
	require.Len(t, applied, 2)
	assert.True(t, applied[1].TestMode)
	assert.Equal(t, map[string]any{"account": "A1", "region": "west"}, applied[1].Config, "the merged config is applied")

	// Priority and enablement are registry concerns only.
	priority := 4
	require.NoError(t, registry.UpdateConfig("fedex", shipper.ConfigPatch{Priority: &priority}))
	assert.Len(t, applied, 2)
}

func TestRegistry_Register_RejectedModuleConfig(t *testing.T) {
	registry := shipper.NewRegistry()

	fedex := mock.New("fedex")
	fedex.OnApplyConfig = func(cfg shipper.ModuleConfig) error {
		return errors.New("unknown region")
	}

	err := registry.Register(fedex, enabled(1))
	assert.True(t, shipper.IsConfigurationError(err))
	assert.Empty(t, registry.EnabledModules())
	assert.Contains(t, registry.Status()[0].ConfigError, "unknown region")
}

func TestRegistry_UpdateConfig_RejectedModuleConfig(t *testing.T) {
	registry := shipper.NewRegistry()

	fedex := mock.New("fedex")
	fedex.OnApplyConfig = func(cfg shipper.ModuleConfig) error {
		if cfg.Config["region"] == "mars" {
			return errors.New("unknown region")
		}
		return nil
	}
	require.NoError(t, registry.Register(fedex, shipper.ModuleConfig{
		Enabled:  true,
		Priority: 2,
		Config:   map[string]any{"region": "west"},
	}))

	priority := 7
	err := registry.UpdateConfig("fedex", shipper.ConfigPatch{
		Priority: &priority,
		Config:   map[string]any{"region": "mars"},
	})
	require.Error(t, err)
	assert.True(t, shipper.IsConfigurationError(err))

	got, err := registry.Module("fedex")
	require.NoError(t, err)
	assert.True(t, got.Config.Enabled)
	assert.Equal(t, 2, got.Config.Priority)
	assert.Equal(t, "west", got.Config.Config["region"])
}

func TestRegistry_UpdateConfig_AppliedConfigBreaksCarrier(t *testing.T) {
	registry := shipper.NewRegistry()

	fedex := mock.New("fedex")
	fedex.OnApplyConfig = func(cfg shipper.ModuleConfig) error {
		if !cfg.TestMode {
			fedex.ConfigErr = shipper.NewConfigurationError("fedex", "missing API key", nil)
		}
		return nil
	}
	require.NoError(t, registry.Register(fedex, shipper.ModuleConfig{Enabled: true, TestMode: true}))

	off := false
	err := registry.UpdateConfig("fedex", shipper.ConfigPatch{TestMode: &off})
	assert.True(t, shipper.IsConfigurationError(err))
	assert.Empty(t, registry.EnabledModules())
	assert.Contains(t, registry.Status()[0].ConfigError, "missing API key")
}

func TestRegistry_ReadersGetCopies(t *testing.T) {
	registry := shipper.NewRegistry()
	require.NoError(t, registry.Register(mock.New("fedex"), shipper.ModuleConfig{
		Enabled: true,
		Config:  map[string]any{"account": "A1"},
	}))

	got, err := registry.Module("fedex")
	require.NoError(t, err)
	got.Config.Config["account"] = "mutated"
	got.Config.Enabled = false

	again, err := registry.Module("fedex")
	require.NoError(t, err)
	assert.Equal(t, "A1", again.Config.Config["account"])
	assert.True(t, again.Config.Enabled)
}

func TestRegistry_ConcurrentUpdatesAreAtomic(t *testing.T) {
	registry := shipper.NewRegistry()
	require.NoError(t, registry.Register(mock.New("fedex"), shipper.ModuleConfig{Priority: 0}))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Writers always set Priority and TestMode together.
	for i := range 4 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for n := 0; n < 200; n++ {
				priority := i*1000 + n
				even := priority%2 == 0
				_ = registry.UpdateConfig("fedex", shipper.ConfigPatch{Priority: &priority, TestMode: &even})
			}
		}(i)
	}

	var readErr error
	var readWG sync.WaitGroup
	readWG.Add(1)
	go func() {
		defer readWG.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			m, err := registry.Module("fedex")
			if err != nil {
				readErr = err
				return
			}
			if m.Config.Priority != 0 && (m.Config.Priority%2 == 0) != m.Config.TestMode {
				readErr = errors.New("observed a partially applied update")
				return
			}
		}
	}()

	wg.Wait()
	close(stop)
	readWG.Wait()
	assert.NoError(t, readErr)
}

func TestRegistry_Names(t *testing.T) {
	registry := shipper.NewRegistry()

	require.NoError(t, registry.Register(mock.New("southwest"), enabled(1)))
	require.NoError(t, registry.Register(mock.New("fedex"), enabled(2)))
	require.NoError(t, registry.Register(mock.New("ups"), enabled(3)))

	assert.Equal(t, []string{"fedex", "southwest", "ups"}, registry.Names())
}

func TestRegistry_Count(t *testing.T) {
	registry := shipper.NewRegistry()
	assert.Equal(t, 0, registry.Count())

	require.NoError(t, registry.Register(mock.New("shipper-a"), enabled(1)))
	assert.Equal(t, 1, registry.Count())

	require.NoError(t, registry.Register(mock.New("shipper-b"), enabled(2)))
	assert.Equal(t, 2, registry.Count())
}
