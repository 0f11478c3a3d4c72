package sandbox

import (
	"fmt"
	"sort"
)

// languageIDs maps language names to Judge0 language ids.
var languageIDs = map[string]int{
	"javascript": 63, // Node.js
	"python":     71, // Python 3
	"java":       62,
	"cpp":        54,
	"c":          50,
	"csharp":     51,
	"go":         60,
	"rust":       73,
	"php":        68,
	"ruby":       72,
	"swift":      83,
	"kotlin":     78,
	"typescript": 74,
}

// LanguageID resolves a language name to the provider's numeric id.
func LanguageID(language string) (int, error) {
	id, ok := languageIDs[language]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}
	return id, nil
}

// Languages returns the supported language names in sorted order.
func Languages() []string {
	langs := make([]string, 0, len(languageIDs))
	for name := range languageIDs {
		langs = append(langs, name)
	}
	sort.Strings(langs)
	return langs
}
