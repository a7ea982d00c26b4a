// Package diagram encodes PlantUML source into renderer tokens and builds
// image references for rendered diagrams.
//
// Encode produces the token understood by PlantUML servers: the raw DEFLATE
// stream of the UTF-8 source, packed six bits at a time over the alphabet
// 0-9A-Za-z-_ with no padding. The result is deterministic for a given
// source, so identical diagrams always map to identical URLs.
//
//	r := diagram.URLRenderer{BaseURL: "https://plantuml.example.com"}
//	url := r.ImageURL("@startuml\nA -> B\n@enduml")
//	// https://plantuml.example.com/svg/<token>
//
// LocalRenderer renders PNG files with the PlantUML jar instead of a server.
package diagram
