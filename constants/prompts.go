package constants

// Default minimum word counts applied when a task row carries no word limit.
const (
	DefaultTask1WordLimit = 150
	DefaultTask2WordLimit = 250
)

// TaskNumbers in display order.
var TaskNumbers = []int{1, 2}

var defaultPrompts = map[Mode]map[int]string{
	ModeAcademic: {
		1: "The chart below shows the percentage of households in owned and rented accommodation " +
			"in one country between 1918 and 2011. Summarise the information by selecting and " +
			"reporting the main features, and make comparisons where relevant.",
		2: "Some people believe that universities should focus on providing academic knowledge, " +
			"while others think they should prepare students for employment. Discuss both views " +
			"and give your own opinion.",
	},
	ModeGeneral: {
		1: "You recently stayed at a hotel and left a personal item behind. Write a letter to the " +
			"hotel manager. In your letter describe the item, explain where you think you left it, " +
			"and say what you would like the manager to do.",
		2: "In many countries people are spending more time working and less time with their " +
			"families. What are the causes of this, and what can be done to improve the situation?",
	},
}

// DefaultPrompt returns the canned prompt for a task in the given mode.
// Unknown modes use the academic set.
func DefaultPrompt(mode Mode, task int) string {
	set, ok := defaultPrompts[mode]
	if !ok {
		set = defaultPrompts[ModeAcademic]
	}
	return set[task]
}

// DefaultWordLimit returns the minimum word count for a task.
func DefaultWordLimit(task int) int {
	if task == 1 {
		return DefaultTask1WordLimit
	}
	return DefaultTask2WordLimit
}
