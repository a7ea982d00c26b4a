// Package store loads project artifacts for blueprint generation.
//
// Implementations:
//   - Mongo: Reads the project_map document and the per-type collections it
//     references, plus the diagrams collection
//   - File: Reads YAML or JSON fixtures with the same layout, one file per
//     project
//
// Both satisfy artifact.Store and artifact.DiagramSource and resolve project
// maps the same way: every entry of artifact.ProjectMapCollections becomes
// one artifact type, in that order, holding the documents whose ID field is
// listed in the map.
//
// Example usage:
//
//	st, err := store.ConnectMongo(ctx, store.MongoConfig{URI: uri, Database: "Raina"})
//	if err != nil {
//	    return err
//	}
//	defer st.Close(ctx)
//
//	project, err := st.LoadProject(ctx, "proj-42")
package store
