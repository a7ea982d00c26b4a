// Package prompt loads the text templates sent to the text-generation
// oracle.
//
// Templates are looked up in override directories, in order, before the
// defaults embedded in the binary. The prompts_dir setting names the first
// override; .blueprint/prompts and prompts under the working directory
// follow.
//
//	loader := prompt.NewLoader(prompt.ProjectDirs(".")...)
//	text, err := loader.Render(prompt.GuideChunk, map[string]any{
//	    "Paradigm":     "application",
//	    "ArtifactType": "entities",
//	    "Artifacts":    chunkJSON,
//	})
package prompt
