package catalog

// EnumMember pairs the symbolic name exposed over JSON with the value stored in
// the database.
type EnumMember struct {
	Name  string
	Value string
}

// EnumType is a named set of members, e.g. the MPAA film rating.
type EnumType struct {
	Name    string
	Members []EnumMember
}

// ByName returns the member with the given symbolic name.
func (e *EnumType) ByName(name string) (EnumMember, bool) {
	for _, m := range e.Members {
		if m.Name == name {
			return m, true
		}
	}
	return EnumMember{}, false
}

// ByValue returns the member stored as value.
func (e *EnumType) ByValue(value string) (EnumMember, bool) {
	for _, m := range e.Members {
		if m.Value == value {
			return m, true
		}
	}
	return EnumMember{}, false
}

// Names lists the symbolic names in declaration order.
func (e *EnumType) Names() []string {
	names := make([]string, len(e.Members))
	for i, m := range e.Members {
		names[i] = m.Name
	}
	return names
}
