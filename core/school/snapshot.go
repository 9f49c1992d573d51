package school

// Snapshot is the full in-memory state of one teacher's schools and
// classes at a point in time.
type Snapshot struct {
	Schools []School    `json:"schools"`
	Classes []ClassRoom `json:"classes"`
}

func (s Snapshot) Clone() Snapshot {
	cp := Snapshot{
		Schools: make([]School, len(s.Schools)),
		Classes: make([]ClassRoom, 0, len(s.Classes)),
	}
	copy(cp.Schools, s.Schools)
	for _, c := range s.Classes {
		cp.Classes = append(cp.Classes, c.Clone())
	}
	return cp
}

func (s *Snapshot) SchoolByID(id string) (*School, bool) {
	for i := range s.Schools {
		if s.Schools[i].ID == id {
			return &s.Schools[i], true
		}
	}
	return nil, false
}

func (s *Snapshot) ClassByID(id string) (*ClassRoom, bool) {
	for i := range s.Classes {
		if s.Classes[i].ID == id {
			return &s.Classes[i], true
		}
	}
	return nil, false
}

// SchoolClasses filters classes belonging to a school, optionally by status.
func (s Snapshot) SchoolClasses(schoolID string, status ...ClassStatus) []ClassRoom {
	classes := make([]ClassRoom, 0, len(s.Classes))
	for _, c := range s.Classes {
		if c.SchoolID != schoolID {
			continue
		}
		if len(status) > 0 && c.Status != status[0] {
			continue
		}
		classes = append(classes, c)
	}
	return classes
}

// RemoveSchool deletes a school and cascades to all classes whose
// SchoolID matches, in the same logical operation.
func (s *Snapshot) RemoveSchool(id string) bool {
	var found bool
	for i := range s.Schools {
		if s.Schools[i].ID == id {
			s.Schools = append(s.Schools[:i], s.Schools[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return false
	}
	kept := s.Classes[:0]
	for _, c := range s.Classes {
		if c.SchoolID != id {
			kept = append(kept, c)
		}
	}
	s.Classes = kept
	return true
}

func (s *Snapshot) RemoveClass(id string) bool {
	for i := range s.Classes {
		if s.Classes[i].ID == id {
			s.Classes = append(s.Classes[:i], s.Classes[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Snapshot) putClass(c ClassRoom) {
	for i := range s.Classes {
		if s.Classes[i].ID == c.ID {
			s.Classes[i] = c
			return
		}
	}
	s.Classes = append(s.Classes, c)
}
