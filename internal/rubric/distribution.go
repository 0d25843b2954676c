package rubric

import "fmt"

// Distribution is the running level histogram of a cohort.
//
// Invariant: TotalStudents equals Overall.Total() and every skill histogram's total.
type Distribution struct {
	TotalStudents int                   `json:"total_students"`
	Overall       LevelCounts           `json:"overall_level_distribution"`
	Categories    map[Skill]LevelCounts `json:"category_level_distributions"`
}

// NewDistribution returns an empty distribution with every skill histogram present.
func NewDistribution() Distribution {
	d := Distribution{Categories: make(map[Skill]LevelCounts, SkillCount)}
	for _, s := range Skills() {
		d.Categories[s] = LevelCounts{}
	}
	return d
}

func (d Distribution) Clone() Distribution {
	out := Distribution{
		TotalStudents: d.TotalStudents,
		Overall:       d.Overall,
		Categories:    make(map[Skill]LevelCounts, SkillCount),
	}
	for s, c := range d.Categories {
		out.Categories[s] = c
	}
	for _, s := range Skills() {
		if _, ok := out.Categories[s]; !ok {
			out.Categories[s] = LevelCounts{}
		}
	}
	return out
}

// ApplyOne returns d with one more student counted in the bands of r. d is not modified.
func ApplyOne(d Distribution, r Result) Distribution {
	out := d.Clone()
	out.TotalStudents++
	out.Overall.Inc(Classify(r.Overall))
	for _, s := range Skills() {
		c := out.Categories[s]
		c.Inc(Classify(r.SkillScores[s]))
		out.Categories[s] = c
	}
	return out
}

// RemoveOne is the inverse of ApplyOne. It fails rather than drive a band negative.
func RemoveOne(d Distribution, r Result) (Distribution, error) {
	out := d.Clone()
	if out.TotalStudents <= 0 {
		return d, fmt.Errorf("%w: no students to remove", ErrInvariant)
	}
	out.TotalStudents--
	if err := out.Overall.Dec(Classify(r.Overall)); err != nil {
		return d, fmt.Errorf("overall: %w", err)
	}
	for _, s := range Skills() {
		c := out.Categories[s]
		if err := c.Dec(Classify(r.SkillScores[s])); err != nil {
			return d, fmt.Errorf("%s: %w", s, err)
		}
		out.Categories[s] = c
	}
	return out, nil
}

// Validate checks the counting invariant.
func (d Distribution) Validate() error {
	if d.TotalStudents < 0 {
		return fmt.Errorf("%w: negative total_students %d", ErrInvariant, d.TotalStudents)
	}
	if d.Overall.negative() {
		return fmt.Errorf("%w: negative overall count", ErrInvariant)
	}
	if got := d.Overall.Total(); got != d.TotalStudents {
		return fmt.Errorf("%w: overall histogram sums to %d, total_students is %d", ErrInvariant, got, d.TotalStudents)
	}
	for _, s := range Skills() {
		c, ok := d.Categories[s]
		if !ok {
			return fmt.Errorf("%w: missing histogram for %s", ErrInvariant, s)
		}
		if c.negative() {
			return fmt.Errorf("%w: negative count for %s", ErrInvariant, s)
		}
		if got := c.Total(); got != d.TotalStudents {
			return fmt.Errorf("%w: %s histogram sums to %d, total_students is %d", ErrInvariant, s, got, d.TotalStudents)
		}
	}
	return nil
}
