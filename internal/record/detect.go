package record

// IsUpdated compares a freshly extracted candidate against the stored record.
// A missing previous record always counts as an update. Only the candidate's
// fields are compared; fields that exist only in previous are ignored.
func IsUpdated(candidate Record, previous *Record) bool {
	if previous == nil {
		return true
	}
	for name, value := range candidate.fields {
		prevValue, ok := previous.fields[name]
		if !ok || prevValue != value {
			return true
		}
	}
	return false
}
