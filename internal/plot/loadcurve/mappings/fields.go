package mappings

// FieldMapping describes how a sample column is labelled and bounded on an
// axis. Min and Max are either a float64 or "auto".
type FieldMapping struct {
	Name       string
	Label      string
	ShortLabel string
	Min        interface{}
	Max        interface{}
}

var FieldMappings = map[string]FieldMapping{
	"iout": {
		Name:       "iout",
		Label:      "Load Current (A)",
		ShortLabel: "Load current",
		Min:        0.0,
		Max:        "auto",
	},
	"eff": {
		Name:       "eff",
		Label:      "Efficiency (\\%)",
		ShortLabel: "Efficiency",
		Min:        40.0,
		Max:        100.0,
	},
	"vout": {
		Name:       "vout",
		Label:      "Output Voltage (V)",
		ShortLabel: "Output voltage",
		Min:        "auto",
		Max:        "auto",
	},
}

func GetFieldMapping(name string) (FieldMapping, bool) {
	m, ok := FieldMappings[name]
	return m, ok
}
