package launcher

type Optional struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Icon             string   `json:"icon"`
	IncompatibleWith []string `json:"incompatible_with,omitempty"`
}

type ModpackInfo struct {
	ForgeVersion     string     `json:"forgeVersion"`
	MinecraftVersion string     `json:"minecraftVersion"`
	Optionals        []Optional `json:"optionals"`
}

func (m *ModpackInfo) Optional(id string) *Optional {
	if m == nil {
		return nil
	}
	for i := range m.Optionals {
		if m.Optionals[i].ID == id {
			return &m.Optionals[i]
		}
	}
	return nil
}
