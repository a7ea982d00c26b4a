// Package config resolves blueprint settings from layered sources.
//
// Precedence, highest first:
//  1. Command-line flags (ResolveWithFlags)
//  2. Environment variables: BLUEPRINT_<KEY>, then unprefixed aliases such
//     as OPENAI_API_KEY, MONGODB_URI and PLANTUML_SERVER_URL
//  3. Local config: .blueprint.yaml in the git root
//  4. Global config: ~/.config/blueprint/config.yaml
//  5. Built-in defaults
//
// A .env file may be loaded into the environment first with LoadDotEnv.
//
// Resolution yields strings with their sources; Load converts them once into
// a typed, validated Settings value that callers pass to constructors:
//
//	_ = config.LoadDotEnv()
//	resolved := config.NewStandardResolver().ResolveWithFlags(flags)
//	settings, err := config.Load(resolved)
//	if err != nil {
//	    return err // wraps config.ErrInvalid
//	}
package config
