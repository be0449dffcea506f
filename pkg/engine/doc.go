// Package engine is the composition root that assembles postcraft's
// providers, tools, agents and content team from configuration and exposes
// them through a frontend-agnostic API. Frontends call Engine.Generate with a
// brief.Request, observe progress through an EventBus, and never wire
// lower-level packages themselves.
package engine
