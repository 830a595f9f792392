package reading

// ToDTO converts a stored reading to its wire form.
func ToDTO(r Reading) DTO {
	id := r.ID
	return DTO{
		ID:       &id,
		Value:    r.Value,
		LoggedAt: r.LoggedAt,
	}
}

// ToDTOs converts a slice of readings. The result is never nil, so an empty
// list encodes as [] rather than null.
func ToDTOs(readings []Reading) []DTO {
	dtos := make([]DTO, 0, len(readings))
	for _, r := range readings {
		dtos = append(dtos, ToDTO(r))
	}
	return dtos
}

// ToEntity converts a DTO to a reading. A nil ID becomes zero, which
// storage replaces on insert.
func ToEntity(d DTO) Reading {
	r := Reading{
		Value:    d.Value,
		LoggedAt: d.LoggedAt,
	}
	if d.ID != nil {
		r.ID = *d.ID
	}
	return r
}

// ApplyUpdate copies every field of d onto existing and returns it.
// The identity is left alone when d carries none.
func ApplyUpdate(d DTO, existing *Reading) *Reading {
	if d.ID != nil {
		existing.ID = *d.ID
	}
	existing.Value = d.Value
	existing.LoggedAt = d.LoggedAt
	return existing
}

// CheckIdentity reports ErrIDMismatch unless d carries exactly id.
func CheckIdentity(id int64, d DTO) error {
	if d.ID == nil || *d.ID != id {
		return ErrIDMismatch
	}
	return nil
}
