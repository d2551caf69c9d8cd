package scan

// Intent is the typed result of interpreting a scanned or typed payload.
// Exactly one of the variants below implements it.
type Intent interface {
	intent()
}

// EnrollIntent asks to enroll the student in a subject.
type EnrollIntent struct {
	SubjectName string
	SubjectCode string
}

// CheckInIntent asks to open an attendance record in the subject's
// active session.
type CheckInIntent struct {
	SubjectName string
	SubjectCode string
}

// CheckOutIntent asks to finalize the student's pending record.
type CheckOutIntent struct {
	SubjectName string
	SubjectCode string
}

// InvalidIntent is anything that matches no known payload shape.
type InvalidIntent struct {
	Payload string
}

func (EnrollIntent) intent()   {}
func (CheckInIntent) intent()  {}
func (CheckOutIntent) intent() {}
func (InvalidIntent) intent()  {}
