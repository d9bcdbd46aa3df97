package settings

// Setting names shared by the form, the local storage blob and the device.
const (
	KeyWeatherCity     = "WeatherCity"
	KeyWeatherKey      = "WeatherKey"
	KeyBedtime         = "Bedtime"
	KeyGetUpTime       = "GetUpTime"
	KeyBackgroundColor = "BackgroundColor"
)

// Record is the flat settings mapping persisted by the settings form.
// Values are not validated; missing keys read as "".
type Record map[string]string

func (r Record) WeatherCity() string     { return r[KeyWeatherCity] }
func (r Record) WeatherKey() string      { return r[KeyWeatherKey] }
func (r Record) Bedtime() string         { return r[KeyBedtime] }
func (r Record) GetUpTime() string       { return r[KeyGetUpTime] }
func (r Record) BackgroundColor() string { return r[KeyBackgroundColor] }

// Clone returns an independent copy. A nil record clones to an empty one.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
