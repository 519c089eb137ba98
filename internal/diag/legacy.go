package diag

// legacyCatalog maps logical codes to the legacy numeric catalog. The mapping
// is a host-facing translation table; core invariants never depend on it.
var legacyCatalog = map[Code]string{
	ParseUnexpected:    "F001",
	ParseIndent:        "F002",
	ParseTab:           "F003",
	ResolveNotFound:    "F401",
	ResolveCycle:       "F402",
	ResolvePath:        "F404",
	ValidateUndef:      "F451",
	ValidateType:       "F452",
	ValidateConstraint: "F453",
	ValidateLens:       "F505",
	EngineCycle:        "F601",
	EngineGas:          "F602",
	Budget:             "F801",
	EngineLens:         "F802",
	ValidateInput:      "F901",
	ValidateFwd:        "F902",
}

// LegacyCode translates a logical code to its legacy numeric form. Codes
// introduced after the legacy catalog froze (P-UNCLOSED, R-DEPTH, V-DUP,
// IC-INTERNAL) have no legacy equivalent and report ok=false.
func LegacyCode(code Code) (string, bool) {
	legacy, ok := legacyCatalog[code]
	return legacy, ok
}
