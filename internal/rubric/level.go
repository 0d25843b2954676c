package rubric

import "fmt"

// Level is the band a score falls into.
type Level string

const (
	LevelBeginner Level = "beginner"
	LevelGrowth   Level = "growth"
	LevelExpert   Level = "expert"
)

const (
	GrowthThreshold = 1.66
	ExpertThreshold = 3.0
)

// Levels lists the bands from lowest to highest.
func Levels() []Level {
	return []Level{LevelBeginner, LevelGrowth, LevelExpert}
}

// Classify maps a skill or overall score to its band. NaN is beginner.
func Classify(score float64) Level {
	switch {
	case score >= ExpertThreshold:
		return LevelExpert
	case score >= GrowthThreshold:
		return LevelGrowth
	default:
		return LevelBeginner
	}
}

// LevelCounts is a histogram over the three bands.
type LevelCounts struct {
	Beginner int `json:"beginner"`
	Growth   int `json:"growth"`
	Expert   int `json:"expert"`
}

func (c LevelCounts) Total() int {
	return c.Beginner + c.Growth + c.Expert
}

func (c LevelCounts) Get(l Level) int {
	switch l {
	case LevelGrowth:
		return c.Growth
	case LevelExpert:
		return c.Expert
	default:
		return c.Beginner
	}
}

func (c *LevelCounts) Inc(l Level) {
	switch l {
	case LevelGrowth:
		c.Growth++
	case LevelExpert:
		c.Expert++
	default:
		c.Beginner++
	}
}

// Dec removes one count from the band, refusing to go below zero.
func (c *LevelCounts) Dec(l Level) error {
	if c.Get(l) <= 0 {
		return fmt.Errorf("%w: %s band is already empty", ErrInvariant, l)
	}
	switch l {
	case LevelGrowth:
		c.Growth--
	case LevelExpert:
		c.Expert--
	default:
		c.Beginner--
	}
	return nil
}

func (c LevelCounts) negative() bool {
	return c.Beginner < 0 || c.Growth < 0 || c.Expert < 0
}
