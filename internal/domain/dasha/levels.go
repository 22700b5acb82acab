package dasha

// MaxDepth is the deepest level the engine subdivides to.
const MaxDepth = 5

var levelNames = [...]string{
	"Mahadasha",
	"Antardasha",
	"Pratyantardasha",
	"Sookshma",
	"Prana",
}

// LevelName returns the conventional name of a nesting level (1-based).
func LevelName(level int) string {
	if level < 1 || level > len(levelNames) {
		return ""
	}
	return levelNames[level-1]
}
