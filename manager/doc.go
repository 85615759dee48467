// Package manager gives cached, concurrent access to a single configuration
// file.
//
// A Manager owns one document and one cache engine. Values and sections are
// read through the engine; writes update the in-memory document and drop
// every cached entry they make stale, so the two views never disagree.
// Changes reach disk only on Save.
//
//	m, err := manager.New("app.yaml", manager.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	host, err := m.GetValue(ctx, cache.Dot("database.host"), "localhost")
//	db, err := m.GetSection(ctx, cache.Dot("database"), manager.SectionOptions{})
//
// NewModule wires a Manager into an Fx application.
package manager
