package settings

// Item is one element of the declarative settings form.
type Item struct {
	Type         string      `json:"type"`
	MessageKey   string      `json:"messageKey,omitempty"`
	Label        string      `json:"label,omitempty"`
	DefaultValue string      `json:"defaultValue"`
	Attributes   *Attributes `json:"attributes,omitempty"`
	Items        []Item      `json:"items,omitempty"`
}

type Attributes struct {
	Placeholder string `json:"placeholder,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Type        string `json:"type,omitempty"`
}

// Schema returns the settings form rendered by the phone.
func Schema() []Item {
	return []Item{
		{Type: "heading", DefaultValue: "Boris Configuration"},
		{Type: "text", DefaultValue: "Enter your desired values below."},
		{
			Type: "section",
			Items: []Item{
				{Type: "heading", DefaultValue: "Weather (OpenWeatherMap)"},
				{
					Type:       "input",
					MessageKey: KeyWeatherCity,
					Label:      "Show weather for city",
					Attributes: &Attributes{Placeholder: "eg: Copenhagen", Limit: 32, Type: "text"},
				},
				{
					Type:       "input",
					MessageKey: KeyWeatherKey,
					Label:      "OpenWeatherMap API key",
					Attributes: &Attributes{Placeholder: "Get one at https://openweathermap.org/appid", Limit: 32, Type: "text"},
				},
			},
		},
		{
			Type: "section",
			Items: []Item{
				{Type: "heading", DefaultValue: "Sleep schedule"},
				{
					Type:         "input",
					MessageKey:   KeyBedtime,
					Label:        "Boris goes to bed at",
					DefaultValue: "22:00",
					Attributes:   &Attributes{Placeholder: "HH:MM", Limit: 5, Type: "text"},
				},
				{
					Type:         "input",
					MessageKey:   KeyGetUpTime,
					Label:        "Boris gets up at",
					DefaultValue: "08:00",
					Attributes:   &Attributes{Placeholder: "HH:MM", Limit: 5, Type: "text"},
				},
			},
		},
		{
			Type: "section",
			Items: []Item{
				{Type: "heading", DefaultValue: "Look & feel"},
				{
					Type:         "color",
					MessageKey:   KeyBackgroundColor,
					Label:        "Background color",
					DefaultValue: "0x000000",
				},
			},
		},
		{Type: "submit", DefaultValue: "Save"},
	}
}

// Fields returns the form items that carry a message key, in form order.
func Fields() []Item {
	var out []Item
	var walk func(items []Item)
	walk = func(items []Item) {
		for _, it := range items {
			if it.MessageKey != "" {
				out = append(out, it)
			}
			walk(it.Items)
		}
	}
	walk(Schema())
	return out
}

// Defaults returns the form's default value for every field.
func Defaults() Record {
	rec := Record{}
	for _, f := range Fields() {
		rec[f.MessageKey] = f.DefaultValue
	}
	return rec
}
