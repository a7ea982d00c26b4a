package diagram

import (
	"errors"
	"strings"
)

// ErrInvalidPlantUML indicates source not delimited by @startuml/@enduml.
var ErrInvalidPlantUML = errors.New("generated diagram is not valid PlantUML")

const (
	startTag   = "@startuml"
	endTag     = "@enduml"
	fenceOpen  = "```plantuml"
	fenceClose = "```"
)

// ExtractPlantUML returns the contents of the first ```plantuml fenced block
// in text, or the trimmed text when there is no such block.
func ExtractPlantUML(text string) string {
	_, after, ok := strings.Cut(text, fenceOpen)
	if !ok {
		return strings.TrimSpace(text)
	}
	body, _, _ := strings.Cut(after, fenceClose)
	return strings.TrimSpace(body)
}

// EnsureTitle inserts "title <title>" directly after the @startuml line when
// the diagram has no title.
func EnsureTitle(code, title string) string {
	lines := strings.Split(code, "\n")
	if len(lines) == 0 || !strings.Contains(lines[0], startTag) {
		return code
	}
	for _, l := range lines[1:] {
		if strings.HasPrefix(strings.TrimSpace(l), "title ") {
			return code
		}
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[0], "title "+title)
	out = append(out, lines[1:]...)
	return strings.Join(out, "\n")
}

// Validate checks that code starts with @startuml and ends with @enduml.
func Validate(code string) error {
	code = strings.TrimSpace(code)
	if !strings.HasPrefix(code, startTag) || !strings.HasSuffix(code, endTag) {
		return ErrInvalidPlantUML
	}
	return nil
}
