// Package student contains the domain model of a dance studio student.
//
// It is part of the business core: no external dependencies besides the
// money type. The package defines:
//
//   - Entity: Student
//   - Value objects: ClassSet (enrolled class ids)
//   - Repository interface: Repository
//
// # Billing-relevant state
//
// Only a handful of fields are consulted by the fee ledger and the absence
// streak detector:
//
//   - EnrollmentDate: no fee is ever owed for months before it
//   - MonthlyFee: zero means "does not pay a monthly fee"
//   - Active: inactive students never owe and are never flagged
//   - EnrolledClassIDs: membership only, no ordering semantics
//
// # Usage
//
//	s, err := student.NewStudent(student.NewStudentParams{
//	    ID:             uuid.NewString(),
//	    Name:           "Lucía Gómez",
//	    Phone:          "612 34 56 78",
//	    EnrollmentDate: &enrolled,
//	    MonthlyFee:     decimal.NewFromInt(19),
//	    ClassIDs:       []string{salsaID, bachataID},
//	})
//	if err != nil {
//	    return err
//	}
//	if s.IsBillable() { ... }
package student
