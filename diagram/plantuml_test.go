package diagram

import (
	"errors"
	"testing"
)

func TestExtractPlantUML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "fenced",
			in:   "Here you go:\n```plantuml\n@startuml\nA -> B\n@enduml\n```\nNo explanation.",
			want: "@startuml\nA -> B\n@enduml",
		},
		{
			name: "bare",
			in:   "  @startuml\nA -> B\n@enduml\n",
			want: "@startuml\nA -> B\n@enduml",
		},
		{
			name: "unterminated fence",
			in:   "```plantuml\n@startuml\n@enduml",
			want: "@startuml\n@enduml",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractPlantUML(tt.in); got != tt.want {
				t.Errorf("ExtractPlantUML() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnsureTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "inserts after startuml",
			in:   "@startuml\nA -> B\n@enduml",
			want: "@startuml\ntitle application System Architecture\nA -> B\n@enduml",
		},
		{
			name: "keeps existing title",
			in:   "@startuml\ntitle Mine\n@enduml",
			want: "@startuml\ntitle Mine\n@enduml",
		},
		{
			name: "no startuml",
			in:   "A -> B",
			want: "A -> B",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EnsureTitle(tt.in, "application System Architecture"); got != tt.want {
				t.Errorf("EnsureTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		code    string
		wantErr bool
	}{
		{"@startuml\nA -> B\n@enduml", false},
		{"\n@startuml\n@enduml\n", false},
		{"A -> B\n@enduml", true},
		{"@startuml\nA -> B", true},
		{"", true},
	}
	for _, tt := range tests {
		err := Validate(tt.code)
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%q) error = %v, wantErr %v", tt.code, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidPlantUML) {
			t.Errorf("Validate(%q) error = %v, want ErrInvalidPlantUML", tt.code, err)
		}
	}
}
