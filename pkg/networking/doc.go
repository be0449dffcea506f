// Package networking holds the templating tools the agents use to shape
// LinkedIn networking content: profile analysis, target company lookup,
// hashtag generation, and networking calls to action.
//
// Everything except live profile fetching is deterministic and pure. The
// tool constructors in tools.go wrap these functions as toolbox tools.
package networking
