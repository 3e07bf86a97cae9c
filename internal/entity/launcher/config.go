package launcher

import (
	"golang.org/x/exp/slices"
)

const (
	ClientDefaultMemoryMax = 1024
	HostDefaultMemoryMax   = 1536
)

type LauncherConfig struct {
	Authentication  *Authentication `json:"authentication,omitempty"`
	MemoryMax       int             `json:"memory_max"`
	SelectedOptions []string        `json:"selected_options,omitempty"`
	Providers       []string        `json:"providers,omitempty"`
}

func DefaultLauncherConfig() LauncherConfig {
	return LauncherConfig{
		MemoryMax: ClientDefaultMemoryMax,
	}
}

func (c LauncherConfig) Clone() LauncherConfig {
	result := c
	result.Authentication = c.Authentication.Clone()
	result.SelectedOptions = slices.Clone(c.SelectedOptions)
	result.Providers = slices.Clone(c.Providers)
	return result
}

func (c LauncherConfig) WithoutAuthentication() LauncherConfig {
	result := c.Clone()
	result.Authentication = nil
	return result
}

func (c LauncherConfig) IsLoggedIn() bool {
	return c.Authentication != nil
}

func (c LauncherConfig) IsSelected(id string) bool {
	return slices.Contains(c.SelectedOptions, id)
}

// SelectOption adds id to the selected options. Every selected optional that
// conflicts with id, in either direction, is unselected.
func (c LauncherConfig) SelectOption(id string, info *ModpackInfo) LauncherConfig {
	result := c.Clone()

	var target *Optional
	if info != nil {
		target = info.Optional(id)
	}

	result.SelectedOptions = slices.DeleteFunc(result.SelectedOptions, func(selected string) bool {
		if selected == id {
			return true
		}
		if info == nil {
			return false
		}
		if target != nil && slices.Contains(target.IncompatibleWith, selected) {
			return true
		}
		if other := info.Optional(selected); other != nil && slices.Contains(other.IncompatibleWith, id) {
			return true
		}
		return false
	})
	result.SelectedOptions = append(result.SelectedOptions, id)
	slices.Sort(result.SelectedOptions)

	return result
}

func (c LauncherConfig) UnselectOption(id string) LauncherConfig {
	result := c.Clone()
	result.SelectedOptions = slices.DeleteFunc(result.SelectedOptions, func(selected string) bool {
		return selected == id
	})
	if len(result.SelectedOptions) == 0 {
		result.SelectedOptions = nil
	}
	return result
}
