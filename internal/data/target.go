package data

// DefaultIdentifierColumns are never considered as a target.
var DefaultIdentifierColumns = []string{"Patient_ID", "patient_id", "ID", "id"}

const (
	minTargetClasses = 2
	maxTargetClasses = 10
)

type TargetCandidate struct {
	Column       string
	Distinct     int
	Distribution []ValueCount
}

type TargetChoice struct {
	Column     string
	Candidates []TargetCandidate
	// Fallback is set when no column qualified and the last column was taken.
	Fallback bool
}

// IdentifyTarget picks the last column with 2..10 distinct values, skipping the
// excluded identifier columns. With no candidate the dataset's last column is used.
func IdentifyTarget(ds *Dataset, exclude []string) TargetChoice {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	var choice TargetChoice
	for _, c := range ds.Columns() {
		if skip[c.Name] {
			continue
		}
		n := len(c.Distinct())
		if n < minTargetClasses || n > maxTargetClasses {
			continue
		}
		choice.Candidates = append(choice.Candidates, TargetCandidate{
			Column:       c.Name,
			Distinct:     n,
			Distribution: c.ValueCounts(),
		})
		choice.Column = c.Name
	}

	if choice.Column == "" && ds.NumCols() > 0 {
		cols := ds.Columns()
		choice.Column = cols[len(cols)-1].Name
		choice.Fallback = true
	}
	return choice
}

// ExploreCandidates lists every non-identifier column with fewer than maxDistinct values.
func ExploreCandidates(ds *Dataset, exclude []string, maxDistinct int) []TargetCandidate {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}
	var out []TargetCandidate
	for _, c := range ds.Columns() {
		if skip[c.Name] {
			continue
		}
		if n := len(c.Distinct()); n < maxDistinct {
			out = append(out, TargetCandidate{Column: c.Name, Distinct: n, Distribution: c.ValueCounts()})
		}
	}
	return out
}
